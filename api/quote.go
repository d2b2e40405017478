package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aphorist/aphorist/llm"
	"github.com/aphorist/aphorist/logger"
	"github.com/aphorist/aphorist/observability"
)

const quoteSystemPrompt = `You are a whimsical, humorous philosopher.
Generate one single-sentence "aphorism" following these rules:

1. It should sound profound at first, then land as funny, absurd, or oddly clever.
2. Use everyday objects or situations as philosophical metaphors.
3. Vary the opening; do not always start the same way.
4. Exactly one sentence for the quote, with no explanation inside it.
5. The reader should think "what is this" and still nod along.
6. Mix styles so repeated calls do not sound alike.
7. Also provide a short interpretation of the quote: what it means and why it matters.
8. Return the quote and interpretation as JSON.
Example:
{
    "quote": "Life is like yogurt in the fridge: you never know when the mold arrives.",
    "interpretation": "This compares life's uncertainty to yogurt going bad. It means very little. Perhaps it just says: check your fridge more often."
}`

// quotePayload is the structured output expected from the model.
type quotePayload struct {
	Quote          string `json:"quote"`
	Interpretation string `json:"interpretation"`
}

// fallbackQuote is returned when the model's output is not valid JSON.
var fallbackQuote = quotePayload{
	Quote:          "An error occurred. Please try again.",
	Interpretation: "Something went wrong while generating the quote.",
}

// Quote handles GET /quote. It never fails with a non-200 status: provider
// errors and unparseable model output are both embedded in a 200 body. This
// differs from /chat's 500-on-failure on purpose; the asymmetry is inherited
// behavior, kept rather than silently unified.
func (h *Handler) Quote(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.providerTimeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "llm.quote")
	defer span.End()

	resp, err := h.provider.CompleteStructured(ctx, llm.CompletionRequest{
		SystemPrompt: quoteSystemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: "Please create a new aphorism."},
		},
		Temperature:      0.9,
		MaxTokens:        200,
		TopP:             0.95,
		FrequencyPenalty: 0.5,
		PresencePenalty:  0.5,
	})
	if err != nil {
		observability.SetSpanError(ctx, err)
		h.metrics.RecordQuote(ctx, false)
		h.log.Error("Quote generation failed", logger.Fields("provider", h.provider.Name(), logger.FieldError, err.Error()))
		c.JSON(http.StatusOK, gin.H{"error": "An error occurred while generating the quote: " + err.Error()})
		return
	}

	var payload quotePayload
	if err := json.Unmarshal([]byte(resp.Content), &payload); err != nil {
		observability.SetSpanError(ctx, err)
		h.metrics.RecordQuote(ctx, false)
		h.log.Warn("Quote output was not valid JSON", logger.Fields("provider", h.provider.Name()))
		c.JSON(http.StatusOK, fallbackQuote)
		return
	}

	h.metrics.RecordQuote(ctx, true)
	c.JSON(http.StatusOK, payload)
}
