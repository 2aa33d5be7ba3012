package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/abkommen-gpt/backend/internal/chat"
	"github.com/abkommen-gpt/backend/internal/llm"
	"github.com/abkommen-gpt/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine *chat.Engine
}

func NewWebSocketHandler(engine *chat.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			Content   string `json:"content"`
			SessionID string `json:"session_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "question" {
			continue
		}

		err = h.streamTurn(c, msg.SessionID, msg.Content)
		if err != nil {
			logger.Error("Failed to stream turn", zap.Error(err))
			if llm.IsCapabilityError(err) {
				h.sendError(c, "Language model unavailable")
			} else {
				h.sendError(c, "Failed to process message")
			}
		}
	}
}

func (h *WebSocketHandler) streamTurn(c *websocket.Conn, sessionID, question string) error {
	ctx := context.Background()

	h.sendChunk(c, "status", "Frage wird verarbeitet...")

	response, err := h.engine.ProcessTurn(ctx, sessionID, question)
	if err != nil {
		return err
	}

	words := splitIntoWords(response.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 && word != "\n" {
			chunk += " "
		}

		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return h.sendComplete(c, response)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, response *chat.TurnResponse) error {
	return c.WriteJSON(map[string]interface{}{
		"type":       "complete",
		"session_id": response.SessionID,
		"sources":    response.Sources,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
