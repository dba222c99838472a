// Package ollama adapts locally served models to the pipeline's adapter
// contract.
package ollama

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	langollama "github.com/tmc/langchaingo/llms/ollama"

	"github.com/tlacour/invoice-extractor/constants"
	"github.com/tlacour/invoice-extractor/internal/common"
	"github.com/tlacour/invoice-extractor/internal/llm"
)

type Adapter struct {
	serverURL string
	logger    *slog.Logger
}

var _ llm.Adapter = (*Adapter)(nil)

func New(serverURL string, logger *slog.Logger) *Adapter {
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{serverURL: serverURL, logger: logger}
}

func (a *Adapter) Family() constants.ModelFamily { return constants.FamilyOllama }

// Invoke implements llm.Adapter. The model handle is cheap to build, so
// one is created per call; modelID arrives as ollama:<name>.
func (a *Adapter) Invoke(ctx context.Context, modelID, prompt string, params llm.GenerationParams) (string, error) {
	model, err := langollama.New(
		langollama.WithModel(llm.StripProviderPrefix(modelID)),
		langollama.WithServerURL(a.serverURL),
	)
	if err != nil {
		return "", fmt.Errorf("%w: create ollama model: %v", common.ErrModelUnavailable, err)
	}

	response, err := llms.GenerateFromSinglePrompt(ctx, model, prompt,
		llms.WithTemperature(float64(params.Temperature)),
		llms.WithMaxTokens(params.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", common.ErrModelInvocation, modelID, err)
	}
	return response, nil
}
