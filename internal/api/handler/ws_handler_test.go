package handler

import (
	"MedChat/internal/api/dto"
	"MedChat/internal/pkg/consts"
	"MedChat/internal/pkg/identity"
	"MedChat/internal/pkg/realtime"
	"MedChat/internal/service"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

type stubChat struct {
	service.ChatService
	sendErr error
	typing  []*dto.TypingReq
}

func (s *stubChat) SendMessage(_ context.Context, _ *service.Session, req *dto.SendMessageReq) (*dto.MessageSentEvent, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &dto.MessageSentEvent{ID: 1, ReceiverID: req.ReceiverID, Message: req.Message, Success: true}, nil
}

func (s *stubChat) Typing(_ context.Context, _ *service.Session, req *dto.TypingReq) error {
	s.typing = append(s.typing, req)
	return nil
}

type replyConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *replyConn) ID() string { return "conn" }

func (c *replyConn) User() identity.UserID { return identity.Legacy(1) }

func (c *replyConn) LastActive() time.Time { return time.Now() }

func (c *replyConn) Close() {}

func (c *replyConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *replyConn) last(t *testing.T) *realtime.InboundFrame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.frames)
	f, err := realtime.Decode(c.frames[len(c.frames)-1])
	require.NoError(t, err)
	return f
}

func errorText(t *testing.T, f *realtime.InboundFrame) string {
	t.Helper()
	require.Equal(t, realtime.EventMessageError, f.Event)
	var ev dto.MessageErrorEvent
	require.NoError(t, json.Unmarshal(f.Data, &ev))
	return ev.Error
}

func TestHandleFrame(t *testing.T) {
	ctx := context.Background()
	sess := &service.Session{User: identity.Legacy(1)}
	chat := &stubChat{}
	h := &WsHandler{chatService: chat}
	conn := &replyConn{}

	h.handleFrame(ctx, sess, conn, []byte(`{"event":"send_message","data":{"receiver_id":"2","message":"hi"}}`))
	require.Equal(t, realtime.EventMessageSent, conn.last(t).Event)

	h.handleFrame(ctx, sess, conn, []byte(`{"event":"typing","data":{"receiver_id":"2","is_typing":true}}`))
	require.Len(t, chat.typing, 1)
	require.True(t, chat.typing[0].IsTyping)

	h.handleFrame(ctx, sess, conn, []byte(`not json`))
	require.NotEmpty(t, errorText(t, conn.last(t)))

	h.handleFrame(ctx, sess, conn, []byte(`{"event":"join_room","data":{}}`))
	require.Equal(t, "unknown event: join_room", errorText(t, conn.last(t)))

	chat.sendErr = service.ErrInvalidReceiver
	h.handleFrame(ctx, sess, conn, []byte(`{"event":"send_message","data":{"receiver_id":"x","message":"hi"}}`))
	require.Equal(t, service.ErrInvalidReceiver.Error(), errorText(t, conn.last(t)))

	// 内部错误不外泄
	chat.sendErr = errors.New("dial tcp 10.0.0.3:3306: connection refused")
	h.handleFrame(ctx, sess, conn, []byte(`{"event":"send_message","data":{"receiver_id":"2","message":"hi"}}`))
	require.Equal(t, consts.SendFailedMessage, errorText(t, conn.last(t)))
}
