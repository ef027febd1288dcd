package dto

// SendMessageReq send_message 事件体与 POST /messages 请求体
type SendMessageReq struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Message    string `json:"message" binding:"required"`
}

// TypingReq typing 事件体
type TypingReq struct {
	ReceiverID string `json:"receiver_id"`
	IsTyping   bool   `json:"is_typing"`
}

// NewMessageEvent 推送给接收方的新消息
type NewMessageEvent struct {
	ID         uint64 `json:"id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	IsMine     bool   `json:"is_mine"`
}

// MessageSentEvent 发送方确认
type MessageSentEvent struct {
	ID         uint64 `json:"id"`
	ReceiverID string `json:"receiver_id"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	Success    bool   `json:"success"`
	// Persisted=false 表示消息只做了实时转发
	Persisted bool `json:"persisted"`
	// Delivered 发送时接收方是否在线
	Delivered bool `json:"delivered"`
}

// UnreadMessageEvent 接收方的未读提醒
type UnreadMessageEvent struct {
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	MessagePreview string `json:"message_preview"`
	Timestamp      string `json:"timestamp"`
}

type UserTypingEvent struct {
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

type MessageErrorEvent struct {
	Error string `json:"error"`
}

// MessageDTO 历史消息
type MessageDTO struct {
	ID         uint64 `json:"id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	IsRead     bool   `json:"is_read"`
	IsMine     bool   `json:"is_mine"`
}

type HistoryResp struct {
	Messages   []*MessageDTO `json:"messages"`
	MarkedRead int64         `json:"marked_read"`
	DemoMode   bool          `json:"demo_mode"`
}

type UnreadCountsResp struct {
	UnreadCounts map[string]int64 `json:"unread_counts"`
	DemoMode     bool             `json:"demo_mode"`
}

// ThreadDTO 会话列表项
type ThreadDTO struct {
	Counterpart string      `json:"counterpart"`
	LastMessage *MessageDTO `json:"last_message"`
	UnreadCount int64       `json:"unread_count"`
}

type MarkReadResp struct {
	Count int64 `json:"count"`
}

type PresenceDTO struct {
	UserID      string   `json:"user_id"`
	Online      bool     `json:"online"`
	Connections []string `json:"connections"`
}
