package consts

// 上下文中的会话字段
const (
	CtxUserID     = "user_id"
	CtxUserName   = "user_name"
	CtxDoctorID   = "doctor_id"
	CtxExternalID = "external_id"
	CtxToken      = "token"
)

// 医生角色，对应 chat_messages.sender_type / receiver_type
const (
	ParticipantDoctor = "medico"
)

const (
	DefaultSenderName = "Usuario"
	PreviewLength     = 50
	PreviewEllipsis   = "..."
)

// TimestampLayout 事件与接口中的时间格式
const TimestampLayout = "2006-01-02 15:04:05"

// SendFailedMessage 未归类错误时 message_error 的提示
const SendFailedMessage = "Error al enviar mensaje"
