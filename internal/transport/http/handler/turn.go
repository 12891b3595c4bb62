package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"webinfinitygen/internal/ai"
	"webinfinitygen/internal/app"
	"webinfinitygen/internal/model"
	"webinfinitygen/internal/transport/http/response"
)

type TurnHandler struct {
	turnService *app.TurnService
}

type AttachmentRequest struct {
	Data     string `json:"data" binding:"required"`
	MimeType string `json:"mimeType"`
	Name     string `json:"name"`
}

type TurnRequest struct {
	ChatID   string             `json:"chatId"`
	UserID   string             `json:"userId"`
	Text     string             `json:"text"`
	ChatType model.ChatType     `json:"chatType"`
	Image    *AttachmentRequest `json:"image"`
	File     *AttachmentRequest `json:"file"`
}

func NewTurnHandler(turnService *app.TurnService) *TurnHandler {
	return &TurnHandler{turnService: turnService}
}

// Submit runs one chat turn. A failed AI call is still a 200: the answer
// carries the error text and upstreamError is set.
func (h *TurnHandler) Submit(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	if !ownerAllowed(c, req.UserID) {
		return
	}

	result, err := h.turnService.SubmitUserTurn(c.Request.Context(), app.TurnInput{
		ChatID:   req.ChatID,
		OwnerID:  req.UserID,
		Text:     req.Text,
		ChatType: req.ChatType,
		Image:    req.Image.attachment(),
		File:     req.File.attachment(),
	})
	if err != nil {
		response.FromError(c, err, "chat turn failed")
		return
	}
	if result.Created {
		response.Created(c, "chat created", result)
		return
	}
	response.OK(c, "turn completed", result)
}

func (r *AttachmentRequest) attachment() *ai.Attachment {
	if r == nil {
		return nil
	}
	return &ai.Attachment{Data: r.Data, MimeType: r.MimeType, Name: r.Name}
}
