package identity

import (
	"bytes"

	"github.com/google/uuid"
)

// ConversationKey 无序的会话双方，{a,b} 与 {b,a} 相同
type ConversationKey struct {
	Low  uuid.UUID
	High uuid.UUID
}

// NewConversationKey 参数为双方的 CorrelationID
func NewConversationKey(a, b uuid.UUID) ConversationKey {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return ConversationKey{Low: a, High: b}
}

func (k ConversationKey) String() string {
	return k.Low.String() + "_" + k.High.String()
}
