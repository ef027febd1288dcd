package handler

import (
	"MedChat/internal/api/dto"
	"MedChat/internal/pkg/consts"
	"MedChat/internal/pkg/logger"
	"MedChat/internal/pkg/realtime"
	"MedChat/internal/pkg/response"
	"MedChat/internal/service"
	"context"
	"errors"
	log "log/slog"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WsHandler struct {
	chatService service.ChatService
	hub         *realtime.Hub
	opts        realtime.Options
	upgrader    websocket.Upgrader
}

// NewWsHandler allowedOrigins 为空时不校验 Origin
func NewWsHandler(chat service.ChatService, hub *realtime.Hub, opts realtime.Options, allowedOrigins []string) *WsHandler {
	return &WsHandler{
		chatService: chat,
		hub:         hub,
		opts:        opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Connect 升级为 WebSocket，连接存活期间持续占用本 goroutine
func (s *WsHandler) Connect(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		response.Unauthenticated(c)
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WarnContext(c.Request.Context(), "WS upgrade failed", "user_id", sess.User.String(), "err", err)
		return
	}

	// 连接寿命独立于 HTTP 请求
	ctx := logger.WithTrace(context.Background(), "ws")
	conn := realtime.NewConnection(ws, sess.User, s.opts)
	s.hub.Register(conn)
	log.InfoContext(ctx, "WS connected", "user_id", sess.User.String(), "conn_id", conn.ID())

	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
		log.InfoContext(ctx, "WS disconnected", "user_id", sess.User.String(), "conn_id", conn.ID())
	}()

	go conn.WritePump(ctx)
	conn.ReadPump(ctx, func(raw []byte) {
		s.handleFrame(ctx, sess, conn, raw)
	})
}

// handleFrame 处理一帧客户端事件，错误只回给当前连接
func (s *WsHandler) handleFrame(ctx context.Context, sess *service.Session, conn realtime.Conn, raw []byte) {
	frame, err := realtime.Decode(raw)
	if err != nil {
		s.reply(ctx, conn, realtime.EventMessageError, dto.MessageErrorEvent{Error: err.Error()})
		return
	}

	switch frame.Event {
	case realtime.EventSendMessage:
		var req dto.SendMessageReq
		if err := frame.Bind(&req); err != nil {
			s.reply(ctx, conn, realtime.EventMessageError, dto.MessageErrorEvent{Error: service.ErrParamInvalid.Error()})
			return
		}
		ack, err := s.chatService.SendMessage(ctx, sess, &req)
		if err != nil {
			log.WarnContext(ctx, "WS send_message failed", "user_id", sess.User.String(), "err", err)
			s.reply(ctx, conn, realtime.EventMessageError, dto.MessageErrorEvent{Error: clientError(err)})
			return
		}
		s.reply(ctx, conn, realtime.EventMessageSent, ack)

	case realtime.EventTyping:
		var req dto.TypingReq
		if err := frame.Bind(&req); err != nil {
			s.reply(ctx, conn, realtime.EventMessageError, dto.MessageErrorEvent{Error: service.ErrParamInvalid.Error()})
			return
		}
		if err := s.chatService.Typing(ctx, sess, &req); err != nil {
			log.DebugContext(ctx, "WS typing ignored", "user_id", sess.User.String(), "err", err)
		}

	default:
		s.reply(ctx, conn, realtime.EventMessageError, dto.MessageErrorEvent{Error: service.ErrUnknownEvent.Error() + ": " + frame.Event})
	}
}

func (s *WsHandler) reply(ctx context.Context, conn realtime.Conn, event string, data any) {
	frame, err := realtime.Encode(event, data)
	if err != nil {
		log.ErrorContext(ctx, "WS encode reply failed", "event", event, "err", err)
		return
	}
	if err := conn.Send(frame); err != nil {
		log.DebugContext(ctx, "WS reply dropped", "conn_id", conn.ID(), "err", err)
	}
}

// clientError 只把可预期的校验错误透给客户端
func clientError(err error) string {
	for _, known := range []error{service.ErrInvalidReceiver, service.ErrInvalidInput, service.ErrUnauthenticated} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return consts.SendFailedMessage
}
