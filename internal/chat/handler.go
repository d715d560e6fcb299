package chat

import (
	"errors"
	"log"
	"net/http"

	"parley/internal/auth"

	"github.com/gin-gonic/gin"
)

// Handler handles chat HTTP requests
type Handler struct {
	service Service
}

// NewHandler creates a new chat handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Chat handles POST /api/chat
// @Summary Relay a conversation to the generation API
// @Description Sends the message history upstream under the selected persona and returns the reply
// @Accept json
// @Produce json
// @Param request body ChatRequest true "Message history, optional model selector and inline image"
// @Success 200 {object} ChatResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/chat [post]
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "messages must be a non-empty array",
		})
		return
	}

	result, err := h.service.Generate(c.Request.Context(), &req)
	if err != nil {
		email, _ := auth.GetEmail(c)
		log.Printf("Chat request failed for %s: %v", email, err)

		switch {
		case errors.Is(err, ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, ErrNoKeys):
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": ErrNoKeys.Error()})
		case errors.Is(err, ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "the service is receiving too many requests, please retry shortly",
				"retry":   true,
			})
		case errors.Is(err, ErrSafetyBlocked), errors.Is(err, ErrEmptyResponse), errors.Is(err, ErrUpstream):
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to generate response"})
		}
		return
	}

	c.JSON(http.StatusOK, ChatResponse{
		Success:      true,
		Response:     result.Text,
		FinishReason: result.FinishReason,
		Model:        result.Model,
	})
}
