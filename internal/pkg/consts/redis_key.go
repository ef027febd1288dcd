package consts

const (
	// TokenBlacklistKey 注销后的 token 签名
	TokenBlacklistKey = "chat:token:blacklist:"
	// ChatPresenceKey 在线镜像，set 成员为持有连接的节点 ID
	ChatPresenceKey = "chat:presence:"
	// ChatBusChannel 跨节点投递频道
	ChatBusChannel = "chat:bus"
)
