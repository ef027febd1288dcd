package realtime

import (
	"MedChat/internal/pkg/identity"
	"MedChat/internal/pkg/logger"
	"MedChat/internal/pkg/presence"
	"MedChat/internal/pkg/workerpool"
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"
)

// UserStatus user_status 事件体
type UserStatus struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// Hub 本节点的连接中心
// 登记表以连接建立时的规范 UserID 为键；映射可能在连接期间出现或变化，
// 所以查找时按用户的全部标识形式逐一查
type Hub struct {
	nodeID   string
	registry *presence.Registry[Conn]
	resolver *identity.Resolver
	bus      Bus
	mirror   *PresenceMirror

	// 上下线广播走单 worker 队列，保证同一用户的事件顺序
	events *workerpool.Pool
}

// HubOption 可选组件
type HubOption func(*Hub)

func WithBus(bus Bus) HubOption {
	return func(h *Hub) { h.bus = bus }
}

// WithMirror 多节点部署时启用
func WithMirror(m *PresenceMirror) HubOption {
	return func(h *Hub) { h.mirror = m }
}

func NewHub(nodeID string, resolver *identity.Resolver, queueSize int, opts ...HubOption) *Hub {
	if nodeID == "" {
		nodeID = uuid.NewString()
	}
	h := &Hub{
		nodeID:   nodeID,
		registry: presence.NewRegistry[Conn](),
		resolver: resolver,
		events:   workerpool.New("presence-"+nodeID, 1, queueSize),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.bus == nil {
		h.bus = NewLocalBus()
	}
	h.registry.OnTransition(h.onTransition)
	return h
}

func (h *Hub) NodeID() string { return h.nodeID }

// onTransition 在登记表分段锁内调用，只投递任务不做 IO
func (h *Hub) onTransition(user identity.UserID, online bool) {
	ok := h.events.TrySubmit(func() {
		ctx := logger.WithTrace(context.Background(), "presence")
		h.announce(ctx, user, online)
	})
	if !ok {
		log.Warn("Presence event dropped, queue full", "user_id", user.String(), "online", online)
	}
}

func (h *Hub) announce(ctx context.Context, user identity.UserID, online bool) {
	// 上线与下线使用同一个镜像键，不受期间映射变化影响
	corr := mirrorKey(user)

	if h.mirror != nil {
		var nodes int64
		var err error
		if online {
			nodes, err = h.mirror.Add(ctx, corr)
		} else {
			nodes, err = h.mirror.Remove(ctx, corr)
		}
		switch {
		case err != nil:
			log.WarnContext(ctx, "Presence mirror update failed", "user_id", user.String(), "err", err)
		case online && nodes > 1:
			// 其他节点上已在线
			return
		case !online && nodes > 0:
			// 其他节点上仍在线
			return
		}
	}

	status := StatusOffline
	if online {
		status = StatusOnline
	}
	frame, err := Encode(EventUserStatus, &UserStatus{UserID: user.String(), Status: status})
	if err != nil {
		log.ErrorContext(ctx, "Encode user_status failed", "err", err)
		return
	}
	log.InfoContext(ctx, "User presence changed", "user_id", user.String(), "status", status)
	h.Broadcast(ctx, frame, user)
}

// Register 登记连接
func (h *Hub) Register(conn Conn) {
	h.registry.Register(conn.User(), conn)
}

// Unregister 注销连接，可重复调用
func (h *Hub) Unregister(conn Conn) {
	h.registry.Unregister(conn.User(), conn)
}

// forms 用户的全部已知标识形式
func (h *Hub) forms(ctx context.Context, user identity.UserID) []identity.UserID {
	a := h.resolver.Aliases(ctx, user)
	res := make([]identity.UserID, 0, len(a.Legacy)+len(a.External))
	for _, id := range a.Legacy {
		res = append(res, identity.Legacy(id))
	}
	for _, id := range a.External {
		res = append(res, identity.External(id))
	}
	return res
}

// mirrorKey 登记键对应的镜像键，旧 ID 使用合成 UUID
func mirrorKey(user identity.UserID) uuid.UUID {
	if ext, ok := user.ExternalID(); ok {
		return ext
	}
	id, _ := user.LegacyID()
	return identity.Synthetic(id)
}

// IsOnline 本节点或其他节点上存在连接
func (h *Hub) IsOnline(ctx context.Context, user identity.UserID) bool {
	forms := h.forms(ctx, user)
	for _, f := range forms {
		if h.registry.IsOnline(f) {
			return true
		}
	}
	if h.mirror == nil {
		return false
	}
	for _, f := range forms {
		nodes, err := h.mirror.Nodes(ctx, mirrorKey(f))
		if err != nil {
			log.WarnContext(ctx, "Presence mirror lookup failed", "user_id", user.String(), "err", err)
			return false
		}
		if nodes > 0 {
			return true
		}
	}
	return false
}

// ConnectionsOf 本节点上该用户的连接 ID
func (h *Hub) ConnectionsOf(ctx context.Context, user identity.UserID) []string {
	var res []string
	for _, f := range h.forms(ctx, user) {
		res = append(res, h.registry.ConnectionsOf(f)...)
	}
	return res
}

// OnlineUsers 本节点在线用户
func (h *Hub) OnlineUsers() []identity.UserID {
	return h.registry.OnlineUsers()
}

// Deliver 投递到用户的所有连接，返回本节点成功写入的连接数
// 单个连接失败只影响该连接
func (h *Hub) Deliver(ctx context.Context, user identity.UserID, frame []byte) int {
	user = h.resolver.Canonical(ctx, user)
	n := h.dispatch(ctx, user, frame)

	env := &Envelope{Origin: h.nodeID, Target: h.resolver.CorrelationID(ctx, user), Frame: frame}
	if err := h.bus.Publish(ctx, env); err != nil {
		log.WarnContext(ctx, "Bus publish failed", "user_id", user.String(), "err", err)
	}
	return n
}

// Broadcast 发给除 exclude 以外的所有在线用户
func (h *Hub) Broadcast(ctx context.Context, frame []byte, exclude identity.UserID) {
	h.broadcastLocal(ctx, frame, exclude)

	env := &Envelope{Origin: h.nodeID, Target: uuid.Nil, Frame: frame}
	if !exclude.IsZero() {
		env.Exclude = h.resolver.CorrelationID(ctx, exclude)
	}
	if err := h.bus.Publish(ctx, env); err != nil {
		log.WarnContext(ctx, "Bus publish failed", "err", err)
	}
}

func (h *Hub) dispatch(ctx context.Context, user identity.UserID, frame []byte) int {
	n := 0
	for _, f := range h.forms(ctx, user) {
		for _, c := range h.registry.Connections(f) {
			if err := c.Send(frame); err != nil {
				h.drop(ctx, c, err)
				continue
			}
			n++
		}
	}
	return n
}

func (h *Hub) broadcastLocal(ctx context.Context, frame []byte, exclude identity.UserID) {
	skip := make(map[identity.UserID]struct{})
	if !exclude.IsZero() {
		for _, f := range h.forms(ctx, exclude) {
			skip[f] = struct{}{}
		}
	}
	h.registry.Each(func(user identity.UserID, c Conn) bool {
		if _, ok := skip[user]; ok {
			return true
		}
		if err := c.Send(frame); err != nil {
			h.drop(ctx, c, err)
		}
		return true
	})
}

func (h *Hub) drop(ctx context.Context, c Conn, cause error) {
	log.WarnContext(ctx, "Delivery failed, dropping connection",
		"user_id", c.User().String(), "conn_id", c.ID(), "err", cause)
	h.registry.Unregister(c.User(), c)
	c.Close()
}

// onEnvelope 处理其他节点的投递
func (h *Hub) onEnvelope(ctx context.Context, env *Envelope) {
	if env.Origin == h.nodeID {
		return
	}
	if env.Target == uuid.Nil {
		var exclude identity.UserID
		if env.Exclude != uuid.Nil {
			exclude = h.resolver.Canonical(ctx, identity.FromCorrelation(env.Exclude))
		}
		h.broadcastLocal(ctx, env.Frame, exclude)
		return
	}
	user := h.resolver.Canonical(ctx, identity.FromCorrelation(env.Target))
	h.dispatch(ctx, user, env.Frame)
}

// Run 监听总线，阻塞到 ctx 结束
func (h *Hub) Run(ctx context.Context) error {
	return h.bus.Listen(ctx, h.onEnvelope)
}

// SweepIdle 关闭超过 timeout 没有任何活动的连接
func (h *Hub) SweepIdle(ctx context.Context, timeout time.Duration) int {
	var stale []Conn
	now := time.Now()
	h.registry.Each(func(_ identity.UserID, c Conn) bool {
		if now.Sub(c.LastActive()) > timeout {
			stale = append(stale, c)
		}
		return true
	})
	for _, c := range stale {
		log.InfoContext(ctx, "Closing idle connection", "user_id", c.User().String(), "conn_id", c.ID())
		h.registry.Unregister(c.User(), c)
		c.Close()
	}
	return len(stale)
}

// RefreshMirror 续期在线镜像
func (h *Hub) RefreshMirror(ctx context.Context) error {
	if h.mirror == nil {
		return nil
	}
	users := h.registry.OnlineUsers()
	corrs := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		corrs = append(corrs, mirrorKey(u))
	}
	return h.mirror.Refresh(ctx, corrs)
}

// Shutdown 关闭所有连接并清空登记表，不广播下线
func (h *Hub) Shutdown(ctx context.Context) {
	users := h.registry.OnlineUsers()
	h.registry.Each(func(_ identity.UserID, c Conn) bool {
		c.Close()
		return true
	})
	h.registry.Clear()
	h.events.Shutdown()

	if h.mirror != nil {
		for _, u := range users {
			if _, err := h.mirror.Remove(ctx, mirrorKey(u)); err != nil {
				log.WarnContext(ctx, "Presence mirror cleanup failed", "user_id", u.String(), "err", err)
				break
			}
		}
	}
	log.InfoContext(ctx, "Hub shut down", "node_id", h.nodeID, "users", len(users))
}
