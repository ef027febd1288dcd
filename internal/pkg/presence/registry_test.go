package presence

import (
	"MedChat/internal/pkg/identity"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn string

func (c fakeConn) ID() string { return string(c) }

type transition struct {
	user   identity.UserID
	online bool
}

type recorder struct {
	mu     sync.Mutex
	events []transition
}

func (r *recorder) listen(u identity.UserID, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, transition{u, online})
}

func TestRegistry_TransitionsFireOncePerChange(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry[fakeConn](rec.listen)
	u := identity.Legacy(42)

	require.False(t, reg.IsOnline(u))
	require.True(t, reg.Register(u, "c1"))
	require.True(t, reg.IsOnline(u))
	require.False(t, reg.Register(u, "c2"))
	require.Equal(t, []string{"c1", "c2"}, reg.ConnectionsOf(u))

	require.False(t, reg.Unregister(u, "c1"))
	require.True(t, reg.IsOnline(u))
	require.False(t, reg.Unregister(u, "c1"))
	require.True(t, reg.Unregister(u, "c2"))
	require.False(t, reg.IsOnline(u))
	require.Empty(t, reg.ConnectionsOf(u))

	require.Equal(t, []transition{{u, true}, {u, false}}, rec.events)
}

func TestRegistry_UnknownConnectionIsIgnored(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry[fakeConn](rec.listen)
	require.False(t, reg.Unregister(identity.Legacy(1), "nope"))
	require.Empty(t, rec.events)
}

func TestRegistry_ConcurrentUsers(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry[fakeConn](rec.listen)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		u := identity.Legacy(uint64(i))
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func(c fakeConn) {
				defer wg.Done()
				reg.Register(u, c)
			}(fakeConn(strconv.Itoa(i) + "-" + strconv.Itoa(j)))
		}
	}
	wg.Wait()

	require.Len(t, reg.OnlineUsers(), 50)
	require.Len(t, rec.events, 50)

	count := 0
	reg.Each(func(identity.UserID, fakeConn) bool {
		count++
		return true
	})
	require.Equal(t, 200, count)

	reg.Clear()
	require.Empty(t, reg.OnlineUsers())
	require.Len(t, rec.events, 50)
}
