package llm

import (
	"context"
	"time"

	"github.com/tlacour/invoice-extractor/constants"
)

// GenerationParams are numeric generation knobs passed through to the
// adapter unchanged; each family maps them onto its own envelope fields.
type GenerationParams struct {
	MaxTokens   int
	Temperature float32
}

// Invocation records one model call. One per extraction attempt; repeats
// under retry.
type Invocation struct {
	ModelID     string
	Prompt      string
	RawResponse string
	Latency     time.Duration
}

// Adapter owns the model-family-specific request envelope and the
// extraction of generated text from the family-specific response
// envelope. Adding a model family means adding one Adapter and one
// Register call; the orchestrator never learns about wire formats.
type Adapter interface {
	Family() constants.ModelFamily
	Invoke(ctx context.Context, modelID, prompt string, params GenerationParams) (string, error)
}
