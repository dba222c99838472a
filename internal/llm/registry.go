package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tlacour/invoice-extractor/constants"
	"github.com/tlacour/invoice-extractor/internal/common"
)

// Registry maps a model identifier to the adapter owning its wire format.
// Read-only after construction, safe for concurrent use.
type Registry struct {
	adapters map[constants.ModelFamily]Adapter
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		adapters: make(map[constants.ModelFamily]Adapter),
		logger:   logger,
	}
}

// Register installs an adapter for its family. Call during setup only.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Family()] = a
}

// Resolve returns the adapter responsible for modelID, or
// ErrUnsupportedModel when the identifier maps to no registered family.
func (r *Registry) Resolve(modelID string) (Adapter, error) {
	family, ok := DetectFamily(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedModel, modelID)
	}
	a, ok := r.adapters[family]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter registered for family %q (model %q)",
			common.ErrUnsupportedModel, family, modelID)
	}
	return a, nil
}

// Invoke resolves modelID and runs one model call, timing it.
func (r *Registry) Invoke(ctx context.Context, modelID, prompt string, params GenerationParams) (Invocation, error) {
	adapter, err := r.Resolve(modelID)
	if err != nil {
		return Invocation{ModelID: modelID, Prompt: prompt}, err
	}

	start := time.Now()
	r.logger.Info("llm.invoke.start",
		"req_id", common.RequestIDFromContext(ctx),
		"model", modelID, "family", adapter.Family(),
		"prompt_len", len(prompt),
		"max_tokens", params.MaxTokens, "temperature", params.Temperature,
	)

	raw, err := adapter.Invoke(ctx, modelID, prompt, params)
	inv := Invocation{
		ModelID:     modelID,
		Prompt:      prompt,
		RawResponse: raw,
		Latency:     time.Since(start),
	}
	if err != nil {
		r.logger.Error("llm.invoke.error",
			"req_id", common.RequestIDFromContext(ctx),
			"model", modelID, "error", err,
			"elapsed_ms", inv.Latency.Milliseconds(),
		)
		return inv, err
	}

	r.logger.Info("llm.invoke.ok",
		"req_id", common.RequestIDFromContext(ctx),
		"model", modelID, "response_len", len(raw),
		"elapsed_ms", inv.Latency.Milliseconds(),
	)
	return inv, nil
}

// DetectFamily determines the wire-format family from the model
// identifier. Bedrock ids carry their vendor as a dotted prefix
// (anthropic.claude-v2, eu.meta.llama3-...); OpenAI ids start with gpt-
// or o; local models use an explicit ollama: prefix.
func DetectFamily(modelID string) (constants.ModelFamily, bool) {
	id := strings.ToLower(strings.TrimSpace(modelID))
	switch {
	case id == "":
		return "", false
	case strings.HasPrefix(id, "ollama:"):
		return constants.FamilyOllama, true
	case strings.Contains(id, "anthropic"):
		return constants.FamilyAnthropic, true
	case strings.Contains(id, "meta"):
		return constants.FamilyMeta, true
	case strings.Contains(id, "amazon"):
		return constants.FamilyTitan, true
	case strings.Contains(id, "ai21"):
		return constants.FamilyAI21, true
	case strings.Contains(id, "cohere"):
		return constants.FamilyCohere, true
	case strings.HasPrefix(id, "gpt-"), strings.HasPrefix(id, "openai"),
		strings.HasPrefix(id, "o1"), strings.HasPrefix(id, "o3"), strings.HasPrefix(id, "o4"):
		return constants.FamilyOpenAI, true
	}
	return "", false
}

// StripProviderPrefix removes an explicit provider prefix (ollama:mistral
// -> mistral, openai:gpt-4o -> gpt-4o) so adapters receive the bare model
// name their API expects.
func StripProviderPrefix(modelID string) string {
	if i := strings.Index(modelID, ":"); i >= 0 {
		return modelID[i+1:]
	}
	return modelID
}
