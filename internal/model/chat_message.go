package model

import (
	"MedChat/internal/pkg/identity"
	"time"
)

// ChatMessage 单聊消息，双方的旧 ID 与外部 ID 均可为空，至少有一种
type ChatMessage struct {
	ID                 uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID           *uint64   `gorm:"index:idx_msg_sender" json:"senderId"`
	SenderSupabaseID   *string   `gorm:"type:varchar(36);index:idx_msg_sender_ext" json:"senderSupabaseId"`
	SenderType         string    `gorm:"type:varchar(20);not null;default:medico" json:"senderType"`
	ReceiverID         *uint64   `gorm:"index:idx_msg_receiver" json:"receiverId"`
	ReceiverSupabaseID *string   `gorm:"type:varchar(36);index:idx_msg_receiver_ext" json:"receiverSupabaseId"`
	ReceiverType       string    `gorm:"type:varchar(20);not null;default:medico" json:"receiverType"`
	Message            string    `gorm:"type:text;not null" json:"message"`
	Timestamp          time.Time `gorm:"precision:6;not null;index" json:"timestamp"`
	IsRead             bool      `gorm:"not null;default:false" json:"isRead"`
	CreatedBy          string    `gorm:"type:varchar(64)" json:"createdBy"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

// Sender 还原发送方，外部 ID 优先
func (m *ChatMessage) Sender() identity.UserID {
	return participant(m.SenderID, m.SenderSupabaseID)
}

// Receiver 还原接收方，外部 ID 优先
func (m *ChatMessage) Receiver() identity.UserID {
	return participant(m.ReceiverID, m.ReceiverSupabaseID)
}

func participant(legacy *uint64, external *string) identity.UserID {
	if external != nil {
		if ext, ok := identity.ParseExternal(*external); ok {
			return identity.External(ext)
		}
	}
	if legacy != nil && *legacy > 0 {
		return identity.Legacy(*legacy)
	}
	return identity.UserID{}
}
