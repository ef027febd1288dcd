package handler

import (
	"MedChat/internal/api/dto"
	"MedChat/internal/pkg/response"
	"MedChat/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService         service.ChatService
	conversationService service.ConversationService
	doctorService       service.DoctorService
}

func NewChatHandler(chat service.ChatService, conversations service.ConversationService, doctors service.DoctorService) *ChatHandler {
	return &ChatHandler{
		chatService:         chat,
		conversationService: conversations,
		doctorService:       doctors,
	}
}

// GetHistory 与某人的历史消息，同时标记对方发来的消息为已读
func (s *ChatHandler) GetHistory(c *gin.Context) {
	user, ok := currentSession(c)
	if !ok {
		response.Unauthenticated(c)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	res, err := s.chatService.History(c.Request.Context(), user, c.Param("counterpart"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// SendMessage WebSocket 不可用时的 HTTP 发送通道
func (s *ChatHandler) SendMessage(c *gin.Context) {
	user, ok := currentSession(c)
	if !ok {
		response.Unauthenticated(c)
		return
	}
	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	res, err := s.chatService.SendMessage(c.Request.Context(), user, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *ChatHandler) MarkRead(c *gin.Context) {
	user, ok := currentSession(c)
	if !ok {
		response.Unauthenticated(c)
		return
	}

	count, err := s.chatService.MarkRead(c.Request.Context(), user, c.Param("counterpart"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.MarkReadResp{Count: count})
}

func (s *ChatHandler) GetUnreadCounts(c *gin.Context) {
	user, ok := currentSession(c)
	if !ok {
		response.Unauthenticated(c)
		return
	}

	res, err := s.chatService.UnreadCounts(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetThreads 会话列表，最近的在前
func (s *ChatHandler) GetThreads(c *gin.Context) {
	user, ok := currentSession(c)
	if !ok {
		response.Unauthenticated(c)
		return
	}

	res, err := s.conversationService.GetThreadDTOs(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *ChatHandler) GetPresence(c *gin.Context) {
	res, err := s.chatService.Presence(c.Request.Context(), c.Param("user"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetDoctors 可聊天的医生列表，不包含自己
func (s *ChatHandler) GetDoctors(c *gin.Context) {
	user, ok := currentSession(c)
	if !ok {
		response.Unauthenticated(c)
		return
	}

	res, err := s.doctorService.ListChatDoctors(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
