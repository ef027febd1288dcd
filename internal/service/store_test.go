package service

import (
	"MedChat/internal/pkg/identity"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPersistentStore_SendThenHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := identity.External(extA), identity.Legacy(42)

	msg, err := f.store.Send(ctx, a, b, "hello")
	require.NoError(t, err)
	require.NotZero(t, msg.ID)
	require.Equal(t, extA.String(), *msg.SenderSupabaseID)
	require.Nil(t, msg.SenderID)
	require.Equal(t, uint64(42), *msg.ReceiverID)
	require.Nil(t, msg.ReceiverSupabaseID)

	history, err := f.store.History(ctx, a, b, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "hello", history[0].Message)
	require.Equal(t, msg.ID, history[0].ID)
}

func TestPersistentStore_StoresEveryKnownForm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	msg, err := f.store.Send(ctx, identity.Legacy(42), identity.Legacy(5), "hola")
	require.NoError(t, err)
	require.Equal(t, uint64(5), *msg.ReceiverID)
	require.Equal(t, ext5.String(), *msg.ReceiverSupabaseID)
}

func TestPersistentStore_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.store.Send(ctx, identity.Legacy(1), identity.Legacy(2), "   ")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.store.Send(ctx, identity.Legacy(1), identity.Legacy(1), "self")
	require.ErrorIs(t, err, ErrInvalidInput)

	// 不同形式的同一人
	_, err = f.store.Send(ctx, identity.Legacy(5), identity.External(ext5), "self")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestPersistentStore_SyntheticIDNeverPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// 客户端拿到的合成 ID 被当作旧 ID 存储
	msg, err := f.store.Send(ctx, identity.Legacy(1), identity.External(identity.Synthetic(77)), "hi")
	require.NoError(t, err)
	require.Equal(t, uint64(77), *msg.ReceiverID)
	require.Nil(t, msg.ReceiverSupabaseID)
}

func TestPersistentStore_MarkReadIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := identity.External(extA), identity.Legacy(42)

	for i := 0; i < 3; i++ {
		_, err := f.store.Send(ctx, a, b, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	_, err := f.store.Send(ctx, b, a, "reply")
	require.NoError(t, err)

	unread, err := f.store.UnreadCount(ctx, b, a)
	require.NoError(t, err)
	require.Equal(t, int64(3), unread)

	n, err := f.store.MarkRead(ctx, b, a)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	n, err = f.store.MarkRead(ctx, b, a)
	require.NoError(t, err)
	require.Zero(t, n)

	// 反方向不受影响
	unread, err = f.store.UnreadCount(ctx, a, b)
	require.NoError(t, err)
	require.Equal(t, int64(1), unread)
}

func TestPersistentStore_OrderUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := identity.External(extA), identity.Legacy(42)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			_, _ = f.store.Send(ctx, b, a, fmt.Sprintf("b%d", i))
		}
	}()
	for i := 1; i <= 3; i++ {
		_, err := f.store.Send(ctx, a, b, fmt.Sprintf("M%d", i))
		require.NoError(t, err)
	}
	wg.Wait()

	history, err := f.store.History(ctx, a, b, 0)
	require.NoError(t, err)
	require.Len(t, history, 13)

	var mine []string
	for i, m := range history {
		if i > 0 {
			prev := history[i-1]
			require.False(t, m.Timestamp.Before(prev.Timestamp))
		}
		if m.Sender() == a {
			mine = append(mine, m.Message)
		}
	}
	require.Equal(t, []string{"M1", "M2", "M3"}, mine)
}

func TestPersistentStore_IdentityMerge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := identity.External(extA)

	_, err := f.store.Send(ctx, a, identity.Legacy(5), "to legacy")
	require.NoError(t, err)
	_, err = f.store.Send(ctx, a, identity.External(ext5), "to external")
	require.NoError(t, err)

	history, err := f.store.History(ctx, identity.Legacy(5), a, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "to legacy", history[0].Message)
	require.Equal(t, "to external", history[1].Message)

	counts, err := f.store.UnreadCounts(ctx, identity.Legacy(5))
	require.NoError(t, err)
	require.Equal(t, map[identity.UserID]int64{a: 2}, counts)
}

func TestPersistentStore_HistoryLimitKeepsNewest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := identity.Legacy(1), identity.Legacy(2)
	for i := 0; i < 5; i++ {
		_, err := f.store.Send(ctx, a, b, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	history, err := f.store.History(ctx, a, b, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "m3", history[0].Message)
	require.Equal(t, "m4", history[1].Message)
}

func TestPersistentStore_UnavailableWhenDatabaseGone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = f.store.Send(ctx, identity.Legacy(1), identity.Legacy(2), "lost")
	require.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = f.store.History(ctx, identity.Legacy(1), identity.Legacy(2), 0)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestEphemeralNullStore(t *testing.T) {
	ctx := context.Background()
	s := NewEphemeralNullStore(identity.NewResolver(nil, 0))
	require.False(t, s.Persistent())

	m1, err := s.Send(ctx, identity.Legacy(1), identity.External(uuid.New()), "a")
	require.NoError(t, err)
	m2, err := s.Send(ctx, identity.Legacy(1), identity.Legacy(2), "b")
	require.NoError(t, err)
	require.Greater(t, m2.ID, m1.ID)
	require.True(t, m2.Timestamp.After(m1.Timestamp))

	_, err = s.Send(ctx, identity.Legacy(1), identity.Legacy(1), "self")
	require.ErrorIs(t, err, ErrInvalidInput)

	history, err := s.History(ctx, identity.Legacy(1), identity.Legacy(2), 0)
	require.NoError(t, err)
	require.Empty(t, history)

	n, err := s.MarkRead(ctx, identity.Legacy(2), identity.Legacy(1))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMonotonicClock(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &monotonicClock{now: func() time.Time { return fixed }}

	t1, t2, t3 := c.Next(), c.Next(), c.Next()
	require.Equal(t, fixed, t1)
	require.Equal(t, fixed.Add(time.Microsecond), t2)
	require.Equal(t, fixed.Add(2*time.Microsecond), t3)
}
