package realtime

import (
	"MedChat/internal/pkg/identity"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id   string
	user identity.UserID

	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
	last   time.Time
}

func newFakeConn(user identity.UserID) *fakeConn {
	return &fakeConn{id: uuid.NewString(), user: user, last: time.Now()}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) User() identity.UserID { return c.user }

func (c *fakeConn) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *fakeConn) setLastActive(t time.Time) {
	c.mu.Lock()
	c.last = t
	c.mu.Unlock()
}

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if c.fail {
		return ErrSendBufferFull
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// events 按事件名过滤收到的帧
func (c *fakeConn) events(name string) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var res []json.RawMessage
	for _, raw := range c.frames {
		f, err := Decode(raw)
		if err == nil && f.Event == name {
			res = append(res, f.Data)
		}
	}
	return res
}

func newTestHub(t *testing.T, opts ...HubOption) *Hub {
	t.Helper()
	h := NewHub("", identity.NewResolver(nil, 0), 64, opts...)
	t.Cleanup(func() { h.Shutdown(context.Background()) })
	return h
}

func TestDeliverIsolatesFailingConnection(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)
	user := identity.Legacy(42)

	good1, bad, good2 := newFakeConn(user), newFakeConn(user), newFakeConn(user)
	bad.fail = true
	for _, c := range []*fakeConn{good1, bad, good2} {
		h.Register(c)
	}

	frame, err := Encode(EventNewMessage, map[string]any{"message": "hola"})
	require.NoError(t, err)

	n := h.Deliver(ctx, user, frame)
	require.Equal(t, 2, n)
	require.Len(t, good1.events(EventNewMessage), 1)
	require.Len(t, good2.events(EventNewMessage), 1)

	require.True(t, bad.isClosed())
	require.ElementsMatch(t, []string{good1.ID(), good2.ID()}, h.ConnectionsOf(ctx, user))
	require.True(t, h.IsOnline(ctx, user))
}

func TestDeliverReachesEveryFormOfUser(t *testing.T) {
	ctx := context.Background()
	ext := uuid.MustParse("11111111-1111-4111-8111-111111111111")
	h := NewHub("", identity.NewResolver(identity.StaticMapping{7: ext}, 0), 64)
	defer h.Shutdown(ctx)

	// 连接以规范形式登记
	c := newFakeConn(identity.External(ext))
	h.Register(c)

	require.True(t, h.IsOnline(ctx, identity.Legacy(7)))
	require.Equal(t, 1, h.Deliver(ctx, identity.Legacy(7), []byte(`{"event":"x","data":{}}`)))
}

// lockedMapping 测试中可并发修改的映射
type lockedMapping struct {
	mu sync.Mutex
	m  identity.StaticMapping
}

func (l *lockedMapping) set(legacy uint64, ext uuid.UUID) {
	l.mu.Lock()
	l.m[legacy] = ext
	l.mu.Unlock()
}

func (l *lockedMapping) ExternalByLegacy(ctx context.Context, legacy uint64) (uuid.UUID, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.m.ExternalByLegacy(ctx, legacy)
}

func (l *lockedMapping) LegacyByExternal(ctx context.Context, external uuid.UUID) (uint64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.m.LegacyByExternal(ctx, external)
}

func TestMappingAppearsAfterConnect(t *testing.T) {
	ctx := context.Background()
	ext := uuid.MustParse("42424242-4242-4242-8242-424242424242")
	mapping := &lockedMapping{m: identity.StaticMapping{}}
	resolver := identity.NewResolver(mapping, 0)
	h := NewHub("", resolver, 64)
	defer h.Shutdown(ctx)

	watcher := newFakeConn(identity.Legacy(1))
	h.Register(watcher)

	// 连接时还没有外部 ID
	c := newFakeConn(resolver.Canonical(ctx, identity.Legacy(42)))
	require.Equal(t, identity.Legacy(42), c.User())
	h.Register(c)

	mapping.set(42, ext)
	resolver.Forget(42, ext)
	require.Equal(t, identity.External(ext), resolver.Canonical(ctx, identity.Legacy(42)))

	require.True(t, h.IsOnline(ctx, identity.Legacy(42)))
	require.True(t, h.IsOnline(ctx, identity.External(ext)))
	require.Equal(t, []string{c.ID()}, h.ConnectionsOf(ctx, identity.External(ext)))

	frame := []byte(`{"event":"new_message","data":{}}`)
	require.Equal(t, 1, h.Deliver(ctx, identity.Legacy(42), frame))
	require.Equal(t, 1, h.Deliver(ctx, identity.External(ext), frame))
	require.Len(t, c.events(EventNewMessage), 2)

	// 以新形式排除时仍不把广播发给本人
	h.Broadcast(ctx, []byte(`{"event":"user_typing","data":{}}`), identity.External(ext))
	require.Empty(t, c.events(EventUserTyping))
	require.Len(t, watcher.events(EventUserTyping), 1)
}

func TestUserStatusExcludesChangedUser(t *testing.T) {
	h := newTestHub(t)
	watcher := newFakeConn(identity.Legacy(1))
	h.Register(watcher)

	alice := newFakeConn(identity.Legacy(2))
	h.Register(alice)

	require.Eventually(t, func() bool {
		return len(statusesAbout(t, watcher, "2")) == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, UserStatus{UserID: "2", Status: StatusOnline}, statusesAbout(t, watcher, "2")[0])

	// 第二个连接不产生上线事件
	alice2 := newFakeConn(identity.Legacy(2))
	h.Register(alice2)
	h.Unregister(alice)

	h.Unregister(alice2)
	require.Eventually(t, func() bool {
		return len(statusesAbout(t, watcher, "2")) == 2
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, StatusOffline, statusesAbout(t, watcher, "2")[1].Status)
	require.Empty(t, statusesAbout(t, watcher, "1"))

	require.Empty(t, statusesAbout(t, alice, "2"))
	require.Empty(t, statusesAbout(t, alice2, "2"))
}

func statusesAbout(t *testing.T, c *fakeConn, user string) []UserStatus {
	var res []UserStatus
	for _, raw := range c.events(EventUserStatus) {
		var st UserStatus
		require.NoError(t, json.Unmarshal(raw, &st))
		if st.UserID == user {
			res = append(res, st)
		}
	}
	return res
}

func TestSweepIdle(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t)

	fresh := newFakeConn(identity.Legacy(1))
	stale := newFakeConn(identity.Legacy(2))
	stale.setLastActive(time.Now().Add(-time.Hour))
	h.Register(fresh)
	h.Register(stale)

	require.Equal(t, 1, h.SweepIdle(ctx, time.Minute))
	require.True(t, stale.isClosed())
	require.False(t, fresh.isClosed())
	require.False(t, h.IsOnline(ctx, identity.Legacy(2)))
}

func TestShutdownClosesEverything(t *testing.T) {
	ctx := context.Background()
	h := NewHub("", identity.NewResolver(nil, 0), 8)
	a, b := newFakeConn(identity.Legacy(1)), newFakeConn(identity.Legacy(2))
	h.Register(a)
	h.Register(b)

	h.Shutdown(ctx)
	require.True(t, a.isClosed())
	require.True(t, b.isClosed())
	require.Empty(t, h.OnlineUsers())
}

func TestCrossNodeDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewLocalBus()
	resolver := identity.NewResolver(nil, 0)
	nodeA := NewHub("node-a", resolver, 64, WithBus(bus))
	nodeB := NewHub("node-b", resolver, 64, WithBus(bus))
	defer nodeA.Shutdown(ctx)
	defer nodeB.Shutdown(ctx)

	go func() { _ = nodeA.Run(ctx) }()
	go func() { _ = nodeB.Run(ctx) }()
	require.Eventually(t, func() bool { return bus.Subscribers() == 2 }, time.Second, 5*time.Millisecond)

	onA := newFakeConn(identity.Legacy(42))
	nodeA.Register(onA)

	n := nodeB.Deliver(ctx, identity.Legacy(42), []byte(`{"event":"new_message","data":{}}`))
	require.Equal(t, 0, n)
	require.Len(t, onA.events(EventNewMessage), 1)
}

func TestFrameDecode(t *testing.T) {
	f, err := Decode([]byte(`{"event":"typing","data":{"receiver_id":"42","is_typing":true}}`))
	require.NoError(t, err)
	require.Equal(t, EventTyping, f.Event)

	var body struct {
		ReceiverID string `json:"receiver_id"`
		IsTyping   bool   `json:"is_typing"`
	}
	require.NoError(t, f.Bind(&body))
	require.True(t, body.IsTyping)

	_, err = Decode([]byte(`not json`))
	require.ErrorIs(t, err, ErrMalformedFrame)
	_, err = Decode([]byte(`{"data":{}}`))
	require.ErrorIs(t, err, ErrMalformedFrame)
}
