package wire

import (
	"MedChat/internal/api/config"
	"MedChat/internal/api/dto"
	"MedChat/internal/model"
	"MedChat/internal/pkg/identity"
	"MedChat/internal/pkg/realtime"
	"MedChat/internal/pkg/redis"
	"MedChat/internal/pkg/security"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ext5 = uuid.MustParse("55555555-5555-4555-8555-555555555555")

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testApp struct {
	*ApplicationContainer
	server *httptest.Server
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	redis.Rdb = goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redis.Close() })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	cfg := config.Default()
	cfg.Chat.UseDatabase = true
	cfg.Chat.NodeID = "node-test"
	cfg.DB.AutoMigrate = true

	app, err := BuildApplication(cfg, db, nil)
	require.NoError(t, err)
	require.Nil(t, app.KafkaManager)

	ext := ext5.String()
	require.NoError(t, db.Create(&model.Doctor{ID: 5, IdentifierCode: "D5", FirstName: "Eva", LastName1: "Ruiz", SupabaseID: &ext}).Error)

	srv := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		app.Hub.Shutdown(context.Background())
		srv.Close()
	})
	return &testApp{ApplicationContainer: app, server: srv}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) (int, *envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, &env
}

func (a *testApp) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/api/chat/ws?token=" + token
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// readEvent 读到指定事件为止，跳过其它推送
func readEvent(t *testing.T, ws *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, raw, err := ws.ReadMessage()
		require.NoError(t, err)
		frame, err := realtime.Decode(raw)
		require.NoError(t, err)
		if frame.Event == event {
			return frame.Data
		}
	}
}

func TestUnauthenticatedRequestsGet401(t *testing.T) {
	app := newTestApp(t)

	code, env := app.do(t, http.MethodGet, "/api/chat/threads", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, 401, env.Code)

	code, _ = app.do(t, http.MethodGet, "/api/chat/unread-counts", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, code)

	// 握手同样拒绝
	url := "ws" + strings.TrimPrefix(app.server.URL, "http") + "/api/chat/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	code, env = app.do(t, http.MethodGet, "/api/ping", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "pong", env.Message)
}

func TestChatFlow(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	// A：演示登录落到拥有外部 ID 的医生 5
	code, env := app.do(t, http.MethodPost, "/api/chat/demo-login", "", dto.DemoLoginReq{})
	require.Equal(t, http.StatusOK, code)
	var login dto.DemoLoginResp
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.Equal(t, ext5.String(), login.UserID)
	tokenA := login.Token

	// B：只有旧 ID
	tokenB, err := security.GenerateToken(42, "", "Beto")
	require.NoError(t, err)
	wsB := app.dial(t, tokenB)
	require.Eventually(t, func() bool { return app.Hub.IsOnline(ctx, identity.Legacy(42)) }, time.Second, 10*time.Millisecond)

	// HTTP 发送，B 实时收到
	code, env = app.do(t, http.MethodPost, "/api/chat/messages", tokenA, dto.SendMessageReq{ReceiverID: "42", Message: "hola"})
	require.Equal(t, http.StatusOK, code)
	var ack dto.MessageSentEvent
	require.NoError(t, json.Unmarshal(env.Data, &ack))
	require.True(t, ack.Persisted)
	require.True(t, ack.Delivered)

	var msg dto.NewMessageEvent
	require.NoError(t, json.Unmarshal(readEvent(t, wsB, realtime.EventNewMessage), &msg))
	require.Equal(t, ack.ID, msg.ID)
	require.Equal(t, ext5.String(), msg.SenderID)
	require.Equal(t, "Eva Ruiz", msg.SenderName)

	code, env = app.do(t, http.MethodGet, "/api/chat/unread-counts", tokenB, nil)
	require.Equal(t, http.StatusOK, code)
	var counts dto.UnreadCountsResp
	require.NoError(t, json.Unmarshal(env.Data, &counts))
	require.Equal(t, map[string]int64{ext5.String(): 1}, counts.UnreadCounts)

	// 用旧 ID 形式查询同一个人的历史
	code, env = app.do(t, http.MethodGet, "/api/chat/messages/5", tokenB, nil)
	require.Equal(t, http.StatusOK, code)
	var history dto.HistoryResp
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history.Messages, 1)
	require.Equal(t, int64(1), history.MarkedRead)

	// WebSocket 发送，确认回到发送方
	require.NoError(t, wsB.WriteJSON(map[string]any{
		"event": realtime.EventSendMessage,
		"data":  dto.SendMessageReq{ReceiverID: ext5.String(), Message: "gracias"},
	}))
	var sent dto.MessageSentEvent
	require.NoError(t, json.Unmarshal(readEvent(t, wsB, realtime.EventMessageSent), &sent))
	require.True(t, sent.Success)
	require.False(t, sent.Delivered)

	require.NoError(t, wsB.WriteJSON(map[string]any{"event": "dance", "data": map[string]any{}}))
	var bad dto.MessageErrorEvent
	require.NoError(t, json.Unmarshal(readEvent(t, wsB, realtime.EventMessageError), &bad))
	require.Contains(t, bad.Error, "unknown event")

	code, env = app.do(t, http.MethodGet, "/api/chat/threads", tokenA, nil)
	require.Equal(t, http.StatusOK, code)
	var threads []*dto.ThreadDTO
	require.NoError(t, json.Unmarshal(env.Data, &threads))
	require.Len(t, threads, 1)
	require.Equal(t, "42", threads[0].Counterpart)
	require.Equal(t, int64(1), threads[0].UnreadCount)

	// 注销后 token 失效
	code, _ = app.do(t, http.MethodPost, "/api/chat/logout", tokenA, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = app.do(t, http.MethodGet, "/api/chat/threads", tokenA, nil)
	require.Equal(t, http.StatusUnauthorized, code)
}
