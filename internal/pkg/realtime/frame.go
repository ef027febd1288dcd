package realtime

import (
	"errors"

	"github.com/goccy/go-json"
)

// 客户端 -> 服务端
const (
	EventSendMessage = "send_message"
	EventTyping      = "typing"
)

// 服务端 -> 客户端
const (
	EventNewMessage    = "new_message"
	EventMessageSent   = "message_sent"
	EventUnreadMessage = "unread_message"
	EventUserStatus    = "user_status"
	EventUserTyping    = "user_typing"
	EventMessageError  = "message_error"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

var ErrMalformedFrame = errors.New("malformed frame")

// Frame 出站帧 {"event": ..., "data": ...}
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// InboundFrame 入站帧，data 延迟到按事件解析
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode 编码出站帧
func Encode(event string, data any) ([]byte, error) {
	return json.Marshal(&Frame{Event: event, Data: data})
}

// Decode 解析入站帧，缺少 event 视为格式错误
func Decode(raw []byte) (*InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, ErrMalformedFrame
	}
	if f.Event == "" {
		return nil, ErrMalformedFrame
	}
	return &f, nil
}

// Bind 把 data 解析到 v
func (f *InboundFrame) Bind(v any) error {
	if len(f.Data) == 0 {
		return ErrMalformedFrame
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return ErrMalformedFrame
	}
	return nil
}
