package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-service/internal/api/dto"
	"github.com/spec-kit/marketplace-service/internal/service"
)

// MessagesHandler serves direct messaging over HTTP. Sockets use the same service.
type MessagesHandler struct {
	messages *service.MessageService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(messageService *service.MessageService) *MessagesHandler {
	return &MessagesHandler{messages: messageService}
}

// Send POST /api/messages.
func (h *MessagesHandler) Send(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	msg, err := h.messages.SendMessage(c.UserContext(), user, strings.TrimSpace(req.ReceiverID), req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

// Conversations GET /api/messages/conversations.
func (h *MessagesHandler) Conversations(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	convs, err := h.messages.Conversations(c.UserContext(), user)
	if err != nil {
		return err
	}
	items := make([]dto.ConversationResponse, 0, len(convs))
	for i := range convs {
		items = append(items, dto.ConversationResponse{
			UserID:      convs[i].UserID,
			Username:    convs[i].Username,
			AvatarURL:   convs[i].AvatarURL,
			LastMessage: messageResponse(&convs[i].LastMessage),
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Thread GET /api/messages/:userId.
func (h *MessagesHandler) Thread(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	msgs, err := h.messages.Conversation(c.UserContext(), user, c.Params("userId"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.MessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, messageResponse(&msgs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
