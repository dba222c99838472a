// Package bedrock adapts AWS Bedrock model families to the pipeline's
// uniform adapter contract. One Adapter instance serves one family; the
// request/response envelopes live in families.go.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/tlacour/invoice-extractor/constants"
	"github.com/tlacour/invoice-extractor/internal/common"
	"github.com/tlacour/invoice-extractor/internal/llm"
)

// runtimeAPI is the slice of bedrockruntime.Client this adapter needs.
type runtimeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type Adapter struct {
	rt     runtimeAPI
	family constants.ModelFamily
	logger *slog.Logger
}

var _ llm.Adapter = (*Adapter)(nil)

// New creates an adapter for one Bedrock family using the default AWS
// credential/region chain.
func New(ctx context.Context, family constants.ModelFamily, logger *slog.Logger) (*Adapter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithClient(bedrockruntime.NewFromConfig(cfg), family, logger), nil
}

// NewWithClient wires an existing runtime client (tests, custom config).
func NewWithClient(rt runtimeAPI, family constants.ModelFamily, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{rt: rt, family: family, logger: logger}
}

func (a *Adapter) Family() constants.ModelFamily { return a.family }

// Invoke implements llm.Adapter.
func (a *Adapter) Invoke(ctx context.Context, modelID, prompt string, params llm.GenerationParams) (string, error) {
	body, err := requestBody(a.family, prompt, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUnsupportedModel, err)
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request envelope: %w", err)
	}

	out, err := a.rt.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        bs,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", a.classify(modelID, err)
	}

	text, err := parseResponse(a.family, out.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrModelInvocation, err)
	}
	return text, nil
}

// classify maps Bedrock API errors onto the pipeline taxonomy: access and
// permission problems are fatal, everything transport-shaped is
// retryable.
func (a *Adapter) classify(modelID string, err error) error {
	var accessDenied *brtypes.AccessDeniedException
	var notFound *brtypes.ResourceNotFoundException
	if errors.As(err, &accessDenied) || errors.As(err, &notFound) {
		a.logger.Error("bedrock.unavailable", "model", modelID, "error", err)
		return fmt.Errorf("%w: %s: %v", common.ErrModelUnavailable, modelID, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", common.ErrModelInvocation, modelID, err)
	}
	// throttles, model timeouts, validation and server errors: retryable
	a.logger.Warn("bedrock.invoke_error", "model", modelID, "error", err)
	return fmt.Errorf("%w: %s: %v", common.ErrModelInvocation, modelID, err)
}
