package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abkommen-gpt/backend/internal/chat"
	"github.com/abkommen-gpt/backend/internal/llm"
	"github.com/abkommen-gpt/backend/internal/storage/models"
	"github.com/abkommen-gpt/backend/pkg/logger"
)

// HistoryStore lists the persisted turns of a conversation.
type HistoryStore interface {
	HasConversation(ctx context.Context, sessionID string) (bool, error)
	ListMessages(ctx context.Context, sessionID string) ([]models.Message, error)
}

type ChatHandler struct {
	engine  *chat.Engine
	history HistoryStore
}

func NewChatHandler(engine *chat.Engine, history HistoryStore) *ChatHandler {
	return &ChatHandler{
		engine:  engine,
		history: history,
	}
}

// HandleChat runs one conversation turn. An absent session_id starts a new
// conversation; the minted ID comes back in the response.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	response, err := h.engine.ProcessTurn(c.Context(), req.SessionID, req.Message)
	if err != nil {
		logger.Error("Failed to process turn", zap.Error(err))
		if llm.IsCapabilityError(err) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Language model unavailable",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process message",
		})
	}

	return c.JSON(response)
}

// GetHistory returns the persisted turns of one conversation in order.
func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	sessionID := c.Params("sessionID")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	known, err := h.history.HasConversation(c.Context(), sessionID)
	if err != nil {
		logger.Error("Failed to check conversation", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}
	if !known {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	}

	messages, err := h.history.ListMessages(c.Context(), sessionID)
	if err != nil {
		logger.Error("Failed to list messages", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	turns := make([]fiber.Map, 0, len(messages))
	for _, msg := range messages {
		turns = append(turns, fiber.Map{
			"question":   msg.Question,
			"answer":     msg.Answer,
			"sources":    msg.Sources,
			"created_at": msg.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"turns":      turns,
	})
}
