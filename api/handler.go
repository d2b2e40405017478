// Package api implements the service's HTTP endpoints: registration, token
// login, the authenticated chat proxy, and the unauthenticated quote
// generator.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aphorist/aphorist/auth"
	"github.com/aphorist/aphorist/llm"
	"github.com/aphorist/aphorist/logger"
	"github.com/aphorist/aphorist/observability"
	"github.com/aphorist/aphorist/server/middleware"
)

const defaultProviderTimeout = 60 * time.Second

// Handler carries the injected collaborators for all endpoints.
type Handler struct {
	auth            *auth.Service
	provider        llm.Provider
	metrics         *observability.Metrics
	log             *logger.Logger
	providerTimeout time.Duration
}

// Option customizes a Handler.
type Option func(*Handler)

// WithProviderTimeout bounds each LLM provider call. The provider may have
// its own client timeout; this is the caller-side ceiling.
func WithProviderTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.providerTimeout = d
		}
	}
}

// NewHandler creates the endpoint handler set.
func NewHandler(authSvc *auth.Service, provider llm.Provider, metrics *observability.Metrics, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{
		auth:            authSvc,
		provider:        provider,
		metrics:         metrics,
		log:             log.WithComponent("api"),
		providerTimeout: defaultProviderTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts all endpoints on the engine. The chat endpoint sits
// behind the bearer-token gate; the quote endpoint is deliberately open.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/register", h.Register)
	r.POST("/token", h.Token)
	r.POST("/chat", middleware.RequireUser(h.auth), h.Chat)
	r.GET("/quote", h.Quote)
}
