package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"webinfinitygen/internal/app"
	"webinfinitygen/internal/model"
	"webinfinitygen/internal/transport/http/middleware"
	"webinfinitygen/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type CreateChatRequest struct {
	ChatID   string         `json:"chatId"`
	UserID   string         `json:"userId"`
	Title    string         `json:"title"`
	ChatType model.ChatType `json:"chatType"`
	// FirstMessage is either a bare string or {role?, content, metadata?}.
	FirstMessage json.RawMessage `json:"firstMessage"`
}

type MessageRequest struct {
	Role     string         `json:"role"`
	Content  string         `json:"content"`
	Metadata model.Metadata `json:"metadata"`
}

type RenameRequest struct {
	Title string `json:"title"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Create(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	if !ownerAllowed(c, req.UserID) {
		return
	}

	first, err := parseFirstMessage(req.FirstMessage)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid firstMessage")
		return
	}

	session, err := h.chatService.Create(c.Request.Context(), app.CreateChatInput{
		ChatID:       req.ChatID,
		OwnerID:      req.UserID,
		Title:        req.Title,
		ChatType:     req.ChatType,
		FirstMessage: first,
	})
	if err != nil {
		response.FromError(c, err, "create chat failed")
		return
	}
	response.Created(c, "chat created", session)
}

func (h *ChatHandler) AppendMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	session, err := h.chatService.AppendMessage(c.Request.Context(), c.Param("chatId"), app.MessageInput{
		Role:     req.Role,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		response.FromError(c, err, "append message failed")
		return
	}
	response.OK(c, "message added", session)
}

func (h *ChatHandler) ListByOwner(c *gin.Context) {
	ownerID := c.Param("userId")
	if !ownerAllowed(c, ownerID) {
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.chatService.ListByOwner(c.Request.Context(), app.ListChatsInput{
		OwnerID:  ownerID,
		Page:     page,
		PageSize: limit,
		ChatType: model.ChatType(c.Query("chatType")),
	})
	if err != nil {
		response.FromError(c, err, "list chats failed")
		return
	}
	response.Page(c, "chats listed", result.Items, paginationView(result.Pagination, "total_chats"))
}

func (h *ChatHandler) Get(c *gin.Context) {
	session, err := h.chatService.GetByID(c.Request.Context(), c.Param("chatId"))
	if err != nil {
		response.FromError(c, err, "get chat failed")
		return
	}
	if !ownerAllowed(c, session.OwnerID) {
		return
	}
	response.OK(c, "chat loaded", session)
}

func (h *ChatHandler) Rename(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	summary, err := h.chatService.RenameTitle(c.Request.Context(), c.Param("chatId"), req.Title)
	if err != nil {
		response.FromError(c, err, "rename chat failed")
		return
	}
	response.OK(c, "title updated", summary)
}

func (h *ChatHandler) Delete(c *gin.Context) {
	chatID := c.Param("chatId")
	if err := h.chatService.Delete(c.Request.Context(), chatID); err != nil {
		response.FromError(c, err, "delete chat failed")
		return
	}
	response.OK(c, "chat deleted", gin.H{"chatId": chatID})
}

func parseFirstMessage(raw json.RawMessage) (*app.MessageInput, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var content string
		if err := json.Unmarshal(raw, &content); err != nil {
			return nil, err
		}
		return &app.MessageInput{Role: model.RoleChatUser, Content: content}, nil
	}
	var msg MessageRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return &app.MessageInput{Role: msg.Role, Content: msg.Content, Metadata: msg.Metadata}, nil
}

// ownerAllowed rejects an authenticated caller acting on another user's
// chats. Unauthenticated requests pass; route protection is configured on the
// router.
func ownerAllowed(c *gin.Context, ownerID string) bool {
	id, ok := middleware.UserID(c)
	if !ok || strconv.FormatUint(uint64(id), 10) == ownerID {
		return true
	}
	response.Error(c, http.StatusForbidden, "chat belongs to another user")
	return false
}
