package presence

import (
	"MedChat/internal/pkg/identity"
	"hash/maphash"
	"sort"
	"sync"
)

const shardCount = 64

// Conn 在线登记只关心连接 ID
type Conn interface {
	ID() string
}

// Listener 在线状态切换回调，在分段锁内同步调用，实现方不能阻塞
type Listener func(user identity.UserID, online bool)

type shard[C Conn] struct {
	mu    sync.RWMutex
	users map[identity.UserID]map[string]C
}

// Registry 用户 -> 活跃连接集合
// 按用户哈希分段加锁，不同用户的上下线互不阻塞
type Registry[C Conn] struct {
	seed      maphash.Seed
	shards    [shardCount]*shard[C]
	listeners []Listener
}

func NewRegistry[C Conn](listeners ...Listener) *Registry[C] {
	r := &Registry[C]{seed: maphash.MakeSeed(), listeners: listeners}
	for i := range r.shards {
		r.shards[i] = &shard[C]{users: make(map[identity.UserID]map[string]C)}
	}
	return r
}

// OnTransition 注册回调，须在开始接收连接之前调用
func (r *Registry[C]) OnTransition(l Listener) {
	r.listeners = append(r.listeners, l)
}

func (r *Registry[C]) shardOf(user identity.UserID) *shard[C] {
	return r.shards[maphash.String(r.seed, user.String())%shardCount]
}

// Register 登记连接，返回是否发生了 Offline -> Online
func (r *Registry[C]) Register(user identity.UserID, conn C) bool {
	s := r.shardOf(user)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[user]
	if !ok {
		conns = make(map[string]C)
		s.users[user] = conns
	}
	conns[conn.ID()] = conn

	if ok {
		return false
	}
	r.notify(user, true)
	return true
}

// Unregister 注销连接，返回是否发生了 Online -> Offline
// 重复注销或未登记的连接不会产生状态切换
func (r *Registry[C]) Unregister(user identity.UserID, conn C) bool {
	s := r.shardOf(user)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[user]
	if !ok {
		return false
	}
	if _, exists := conns[conn.ID()]; !exists {
		return false
	}
	delete(conns, conn.ID())
	if len(conns) > 0 {
		return false
	}
	delete(s.users, user)
	r.notify(user, false)
	return true
}

func (r *Registry[C]) notify(user identity.UserID, online bool) {
	for _, l := range r.listeners {
		l(user, online)
	}
}

func (r *Registry[C]) IsOnline(user identity.UserID) bool {
	s := r.shardOf(user)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[user]) > 0
}

// ConnectionsOf 用户的连接 ID，升序
func (r *Registry[C]) ConnectionsOf(user identity.UserID) []string {
	s := r.shardOf(user)
	s.mu.RLock()
	ids := make([]string, 0, len(s.users[user]))
	for id := range s.users[user] {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Connections 用户连接的快照
func (r *Registry[C]) Connections(user identity.UserID) []C {
	s := r.shardOf(user)
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]C, 0, len(s.users[user]))
	for _, c := range s.users[user] {
		res = append(res, c)
	}
	return res
}

// OnlineUsers 当前在线用户快照
func (r *Registry[C]) OnlineUsers() []identity.UserID {
	var res []identity.UserID
	for _, s := range r.shards {
		s.mu.RLock()
		for u := range s.users {
			res = append(res, u)
		}
		s.mu.RUnlock()
	}
	return res
}

// Each 遍历所有连接，fn 返回 false 时停止
func (r *Registry[C]) Each(fn func(user identity.UserID, conn C) bool) {
	for _, s := range r.shards {
		s.mu.RLock()
		snapshot := make(map[identity.UserID][]C, len(s.users))
		for u, conns := range s.users {
			for _, c := range conns {
				snapshot[u] = append(snapshot[u], c)
			}
		}
		s.mu.RUnlock()

		for u, conns := range snapshot {
			for _, c := range conns {
				if !fn(u, c) {
					return
				}
			}
		}
	}
}

// Clear 进程退出时清空，不触发回调
func (r *Registry[C]) Clear() {
	for _, s := range r.shards {
		s.mu.Lock()
		s.users = make(map[identity.UserID]map[string]C)
		s.mu.Unlock()
	}
}
