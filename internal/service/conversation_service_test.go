package service

import (
	"MedChat/internal/pkg/identity"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetThreads_MergesIdentityForms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := identity.External(extA)

	send := func(from, to identity.UserID, body string) {
		_, err := f.store.Send(ctx, from, to, body)
		require.NoError(t, err)
	}
	send(a, identity.Legacy(5), "to legacy")
	send(identity.Legacy(9), a, "from nine")
	send(a, identity.External(ext5), "to external")
	send(identity.Legacy(5), a, "reply from five")

	threads, err := f.threads.GetThreads(ctx, session(a))
	require.NoError(t, err)
	require.Len(t, threads, 2)

	// 最新的会话在前
	require.Equal(t, identity.External(ext5), threads[0].Counterpart)
	require.Equal(t, "reply from five", threads[0].LastMessage.Message)
	require.Equal(t, int64(1), threads[0].UnreadCount)

	require.Equal(t, identity.Legacy(9), threads[1].Counterpart)
	require.Equal(t, int64(1), threads[1].UnreadCount)

	// 对方视角：同一人的两种形式只出现一次
	threads, err = f.threads.GetThreads(ctx, session(identity.Legacy(5)))
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.Equal(t, a, threads[0].Counterpart)
	require.Equal(t, int64(2), threads[0].UnreadCount)

	dtos, err := f.threads.GetThreadDTOs(ctx, session(identity.Legacy(5)))
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	require.Equal(t, extA.String(), dtos[0].Counterpart)
	require.True(t, dtos[0].LastMessage.IsMine)
}

func TestGetThreads_KeepsOldCounterparts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := identity.External(extA)

	_, err := f.store.Send(ctx, identity.Legacy(9), a, "old unread")
	require.NoError(t, err)
	// 远多于历史上限的新消息
	for i := 0; i < 250; i++ {
		_, err := f.store.Send(ctx, a, identity.Legacy(7), fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	threads, err := f.threads.GetThreads(ctx, session(a))
	require.NoError(t, err)
	require.Len(t, threads, 2)

	require.Equal(t, identity.Legacy(7), threads[0].Counterpart)
	require.Equal(t, "m249", threads[0].LastMessage.Message)
	require.Zero(t, threads[0].UnreadCount)

	require.Equal(t, identity.Legacy(9), threads[1].Counterpart)
	require.Equal(t, "old unread", threads[1].LastMessage.Message)
	require.Equal(t, int64(1), threads[1].UnreadCount)
}

func TestGetThreads_Empty(t *testing.T) {
	f := newFixture(t)
	threads, err := f.threads.GetThreads(context.Background(), session(identity.Legacy(77)))
	require.NoError(t, err)
	require.Empty(t, threads)
}
