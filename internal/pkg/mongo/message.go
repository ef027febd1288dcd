package mongo

import (
	"time"
)

// ArchivedMessage 已落库消息的归档副本，_id 与 chat_messages.id 一致
type ArchivedMessage struct {
	ID              uint64    `bson:"_id" json:"id"`
	ConversationKey string    `bson:"conversation_key" json:"conversationKey"`
	SenderIDs       []string  `bson:"sender_ids" json:"senderIds"`     // 发送方所有已知标识
	ReceiverIDs     []string  `bson:"receiver_ids" json:"receiverIds"` // 接收方所有已知标识
	Message         string    `bson:"message" json:"message"`
	IsRead          bool      `bson:"is_read" json:"isRead"`
	Timestamp       time.Time `bson:"timestamp" json:"timestamp"`
	ArchivedAt      time.Time `bson:"archived_at" json:"archivedAt"`
}
