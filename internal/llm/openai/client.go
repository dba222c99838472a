// Package openai adapts OpenAI-compatible chat-completions endpoints to
// the pipeline's adapter contract.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tlacour/invoice-extractor/constants"
	"github.com/tlacour/invoice-extractor/internal/common"
	"github.com/tlacour/invoice-extractor/internal/llm"
)

// Config for the OpenAI adapter.
type Config struct {
	APIKey  string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL string        // default https://api.openai.com/v1
	Timeout time.Duration // http client timeout
}

type Adapter struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

var _ llm.Adapter = (*Adapter)(nil)

func New(cfg Config, logger *slog.Logger) *Adapter {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (a *Adapter) Family() constants.ModelFamily { return constants.FamilyOpenAI }

// Invoke implements llm.Adapter via the chat-completions endpoint.
func (a *Adapter) Invoke(ctx context.Context, modelID, prompt string, params llm.GenerationParams) (string, error) {
	body := map[string]any{
		"model":       llm.StripProviderPrefix(modelID),
		"temperature": params.Temperature,
		"max_tokens":  params.MaxTokens,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}

	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + a.cfg.APIKey}

	raw, status, err := llm.SendJSON(ctx, a.http, endpoint, body, headers, a.logger)
	if err != nil {
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return "", fmt.Errorf("%w: %s: status %d", common.ErrModelUnavailable, modelID, status)
		default:
			return "", fmt.Errorf("%w: %s: %v", common.ErrModelInvocation, modelID, err)
		}
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", common.ErrModelInvocation, err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", common.ErrModelInvocation)
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}
