package handler

import (
	"net/http"

	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/honesta/lostfound-api/internal/service"
	"go.uber.org/zap"
)

type MessageHandler struct {
	messageService *service.MessageService
	logger         *zap.Logger
}

func NewMessageHandler(messageService *service.MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		logger:         logger,
	}
}

// List godoc
// @Summary List an item's chat, oldest first
// @Tags Messages
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {array} domain.ChatMessageDTO
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /items/{id}/messages [get]
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	messages, err := h.messageService.List(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "list messages")
		return
	}

	respondJSON(w, http.StatusOK, messages)
}

// Send godoc
// @Summary Send a chat message
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param request body domain.SendMessageRequest true "Message"
// @Success 201 {object} domain.ChatMessageDTO
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /items/{id}/messages [post]
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req domain.SendMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	message, err := h.messageService.Send(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "send message")
		return
	}

	respondJSON(w, http.StatusCreated, message)
}
