package realtime

import (
	"MedChat/internal/pkg/identity"
	"context"
	"errors"
	log "log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn Hub 视角的一条活跃连接
type Conn interface {
	ID() string
	User() identity.UserID
	// Send 非阻塞投递，失败即视为该连接投递失败
	Send(frame []byte) error
	Close()
	LastActive() time.Time
}

// Options 连接参数
type Options struct {
	WriteTimeout  time.Duration
	PingInterval  time.Duration
	PingTimeout   time.Duration
	MaxFrameBytes int64
	SendBuffer    int
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.PingTimeout <= o.PingInterval {
		o.PingTimeout = o.PingInterval * 2
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = 64 * 1024
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	return o
}

// Connection gorilla websocket 连接
// 读在 ReadPump 所在的 goroutine，写只发生在 WritePump
type Connection struct {
	id   string
	user identity.UserID
	ws   *websocket.Conn
	opts Options

	// send 永不关闭，关闭信号走 done
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	lastActive atomic.Int64
}

func NewConnection(ws *websocket.Conn, user identity.UserID, opts Options) *Connection {
	opts = opts.withDefaults()
	c := &Connection{
		id:   uuid.NewString(),
		user: user,
		ws:   ws,
		opts: opts,
		send: make(chan []byte, opts.SendBuffer),
		done: make(chan struct{}),
	}
	c.touch()
	return c
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) User() identity.UserID { return c.user }

func (c *Connection) LastActive() time.Time {
	return time.UnixMilli(c.lastActive.Load())
}

func (c *Connection) touch() {
	c.lastActive.Store(time.Now().UnixMilli())
}

// Done 连接关闭后可读
func (c *Connection) Done() <-chan struct{} { return c.done }

func (c *Connection) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// Close 可重复调用，先发关闭帧再断开底层连接
// WriteControl 可与 WritePump 的写并发调用
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = c.ws.Close()
	})
}

// WritePump 写循环，负责心跳
func (c *Connection) WritePump(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.DebugContext(ctx, "WS write failed", "conn_id", c.id, "err", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.DebugContext(ctx, "WS ping failed", "conn_id", c.id, "err", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// ReadPump 读循环，阻塞到连接断开
// handler 在本 goroutine 中同步执行，一个慢请求只阻塞自己的连接
func (c *Connection) ReadPump(ctx context.Context, handler func(raw []byte)) {
	defer c.Close()

	c.ws.SetReadLimit(c.opts.MaxFrameBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PingTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.touch()
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PingTimeout))
	})

	for {
		msgType, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.InfoContext(ctx, "WS closed unexpectedly", "conn_id", c.id, "err", err)
			}
			return
		}
		c.touch()
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PingTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		handler(raw)
	}
}
