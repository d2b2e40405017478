package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/aphorist/aphorist/errors"
	"github.com/aphorist/aphorist/llm"
	"github.com/aphorist/aphorist/logger"
	"github.com/aphorist/aphorist/observability"
	"github.com/aphorist/aphorist/server"
	"github.com/aphorist/aphorist/server/middleware"
	"github.com/aphorist/aphorist/validation"
)

const chatSystemPrompt = "You are a helpful assistant. You should only answer questions related to the service."

type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// Chat handles POST /chat. The request has already passed the bearer-token
// gate. Provider failures respond 500 carrying the provider's error text;
// masking that detail is a deliberate non-change from the service this
// replaces.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("message", err.Error()))
		return
	}
	if err := validation.Validate(req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.providerTimeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "llm.chat")
	defer span.End()
	if u, ok := middleware.UserFromContext(c); ok {
		observability.SetSpanAttribute(ctx, "user.name", u.Username)
	}

	resp, err := h.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: chatSystemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: req.Message},
		},
		Temperature: 0.7,
		MaxTokens:   800,
		TopP:        0.95,
	})
	if err != nil {
		observability.SetSpanError(ctx, err)
		h.metrics.RecordChat(ctx, false)
		h.log.Error("Chat completion failed", logger.Fields("provider", h.provider.Name(), logger.FieldError, err.Error()))
		c.JSON(http.StatusInternalServerError, apperrors.New(
			apperrors.ErrCodeExternalService, err.Error(), http.StatusInternalServerError,
		).ToResponse())
		return
	}

	h.metrics.RecordChat(ctx, true)
	c.JSON(http.StatusOK, chatResponse{Response: resp.Content})
}
