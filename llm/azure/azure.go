// Package azure implements llm.Provider against the Azure OpenAI
// chat-completions API.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aphorist/aphorist/llm"
)

const (
	// ProviderName is the registered name for the Azure OpenAI provider.
	ProviderName = "azure-openai"

	defaultAPIVersion = "2023-05-15"
	defaultTimeout    = 60 * time.Second
)

// Config holds configuration for the Azure OpenAI provider.
type Config struct {
	// Endpoint is the resource endpoint, e.g. "https://myres.openai.azure.com".
	Endpoint string `mapstructure:"endpoint"`

	// APIKey authenticates requests via the api-key header.
	APIKey string `mapstructure:"api_key"`

	// Deployment is the deployed model name, e.g. "gpt-4".
	Deployment string `mapstructure:"deployment"`

	// APIVersion selects the REST API version (default: "2023-05-15").
	APIVersion string `mapstructure:"api_version"`

	// Timeout bounds each HTTP request (default: 60s).
	Timeout time.Duration `mapstructure:"timeout"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.Deployment == "" {
		c.Deployment = "gpt-4"
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("azure endpoint is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("azure api_key is required")
	}
	return nil
}

// Provider implements llm.Provider using Azure OpenAI's HTTP API.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates a new Azure OpenAI provider.
func NewProvider(cfg Config) (*Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("azure config: %w", err)
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the Azure OpenAI resource is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	url := fmt.Sprintf("%s/openai/deployments?api-version=%s", p.cfg.Endpoint, p.cfg.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("api-key", p.cfg.APIKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Complete sends a completion request and returns the full response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.doRequest(ctx, p.buildChatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("azure complete: %w", err)
	}
	return toCompletionResponse(resp)
}

// CompleteStructured sends a completion request whose system prompt demands
// JSON output. The pinned API version (2023-05-15) predates the JSON response
// mode, so no response_format hint is sent; callers must still parse the
// content defensively.
func (p *Provider) CompleteStructured(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.doRequest(ctx, p.buildChatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("azure complete structured: %w", err)
	}
	return toCompletionResponse(resp)
}

// --- internal Azure API types ---

type azureChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type azureChatRequest struct {
	Messages         []azureChatMessage `json:"messages"`
	Temperature      float64            `json:"temperature,omitempty"`
	MaxTokens        int                `json:"max_tokens,omitempty"`
	TopP             float64            `json:"top_p,omitempty"`
	FrequencyPenalty float64            `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64            `json:"presence_penalty,omitempty"`
}

type azureChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message azureChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// buildChatRequest maps a universal request to the Azure wire format.
func (p *Provider) buildChatRequest(req llm.CompletionRequest) azureChatRequest {
	msgs := make([]azureChatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, azureChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, azureChatMessage{Role: m.Role, Content: m.Content})
	}

	return azureChatRequest{
		Messages:         msgs,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
	}
}

// doRequest marshals the request, sends it to the deployment's
// chat-completions endpoint, and decodes the response.
func (p *Provider) doRequest(ctx context.Context, req azureChatRequest) (*azureChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.cfg.Endpoint, p.cfg.Deployment, p.cfg.APIVersion)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", p.cfg.APIKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp azureChatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

func toCompletionResponse(resp *azureChatResponse) (*llm.CompletionResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("azure: response contains no choices")
	}
	return &llm.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// compile-time assertion
var _ llm.Provider = (*Provider)(nil)
