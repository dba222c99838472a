// Package pipeline composes text extraction, model invocation, response
// parsing and normalization into one request-response cycle, and emits
// the canonical record to the storage collaborator.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/tlacour/invoice-extractor/constants"
	"github.com/tlacour/invoice-extractor/internal/common"
	"github.com/tlacour/invoice-extractor/internal/extract"
	"github.com/tlacour/invoice-extractor/internal/llm"
	"github.com/tlacour/invoice-extractor/internal/normalize"
	"github.com/tlacour/invoice-extractor/internal/parser"
	"github.com/tlacour/invoice-extractor/internal/repository"
)

// Request is one extraction job. Immutable; created per invocation.
type Request struct {
	SourceID string // filename or object key
	Data     []byte
	ModelID  string // optional, defaults to the configured model
}

// Orchestrator owns the lifecycle of all intermediate entities for the
// duration of one request. Safe for concurrent use across requests: all
// collaborators are read-only after construction and every entity is
// request-scoped.
type Orchestrator struct {
	cfg       common.PipelineConfig
	modelCfg  common.ModelConfig
	extractor extract.TextExtractor
	registry  *llm.Registry
	parser    *parser.Parser
	norm      *normalize.Normalizer
	corrector *normalize.SupplierCorrector
	store     repository.InvoiceStore
	logger    *slog.Logger
}

func NewOrchestrator(
	cfg common.PipelineConfig,
	modelCfg common.ModelConfig,
	extractor extract.TextExtractor,
	registry *llm.Registry,
	p *parser.Parser,
	norm *normalize.Normalizer,
	corrector *normalize.SupplierCorrector,
	store repository.InvoiceStore,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 3
	}
	if cfg.BackoffInterval <= 0 {
		cfg.BackoffInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:       cfg,
		modelCfg:  modelCfg,
		extractor: extractor,
		registry:  registry,
		parser:    p,
		norm:      norm,
		corrector: corrector,
		store:     store,
		logger:    logger,
	}
}

// Run executes the full cycle: Extracting -> Invoking -> Parsing ->
// Normalizing -> Done. The Invoking+Parsing pair retries with backoff on
// transient errors; fatal errors short-circuit. Whatever the outcome, a
// record is emitted to storage — the design favors "record what we could"
// over complete loss — and on failure the returned error carries the
// stage, the cause and the last raw model response.
func (o *Orchestrator) Run(ctx context.Context, req Request) (normalize.InvoiceRecord, error) {
	reqID := uuid.New().String()
	ctx = common.WithRequestID(ctx, reqID)
	filename := filepath.Base(req.SourceID)

	modelID := req.ModelID
	if modelID == "" {
		modelID = o.modelCfg.DefaultModelID
	}

	o.logger.Info("pipeline.start",
		"req_id", reqID, "source", req.SourceID, "model", modelID, "bytes", len(req.Data))

	// Extracting
	ectx, cancel := context.WithTimeout(ctx, o.cfg.ExtractTimeout)
	text, err := o.extractor.Extract(ectx, req.SourceID, req.Data)
	cancel()
	if err != nil {
		o.logger.Error("pipeline.extract_failed", "req_id", reqID, "source", req.SourceID, "error", err)
		rec := o.failedRecord(ctx, normalize.Fields{}, req, filename, modelID, 0, err)
		return rec, common.NewExtractionError(constants.StageExtracting, err, "")
	}

	prompt := llm.BuildInvoicePrompt(text.Text, filename)
	params := llm.GenerationParams{
		MaxTokens:   o.modelCfg.MaxTokens,
		Temperature: o.modelCfg.Temperature,
	}

	// Invoking + Parsing, under bounded retry: LLM output is
	// non-deterministic, a parse failure may succeed on re-invocation.
	var (
		rawObj   map[string]any
		lastInv  llm.Invocation
		attempts int
		stage    = constants.StageInvoking
	)
	operation := func() error {
		attempts++
		stage = constants.StageInvoking
		ictx, cancel := context.WithTimeout(ctx, o.cfg.InvokeTimeout)
		defer cancel()

		inv, err := o.registry.Invoke(ictx, modelID, prompt, params)
		lastInv = inv
		if err != nil {
			if !common.Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		stage = constants.StageParsing
		obj, err := o.parser.Parse(inv.RawResponse)
		if err != nil {
			o.logger.Warn("pipeline.parse_failed",
				"req_id", reqID, "attempt", attempts, "error", err,
				"response_len", len(inv.RawResponse))
			return err
		}
		rawObj = obj
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.cfg.BackoffInterval
	err = backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(o.cfg.RetryAttempts-1)), ctx))
	if err != nil {
		o.logger.Error("pipeline.retries_exhausted",
			"req_id", reqID, "source", req.SourceID, "stage", stage,
			"attempts", attempts, "error", err)
		// Salvage what we can from the last response before giving up.
		fields := o.norm.Normalize(parser.Salvage(lastInv.RawResponse))
		rec := o.failedRecord(ctx, fields, req, filename, modelID, attempts, err)
		return rec, common.NewExtractionError(stage, err, lastInv.RawResponse)
	}

	// Normalizing
	fields := o.norm.Normalize(rawObj)
	o.corrector.Apply(&fields, filename)
	rec := normalize.BuildRecord(fields, req.Data, filename, modelID, attempts)
	if verr := normalize.ValidateRecord(rec); verr != nil {
		// advisory: partial extraction is expected, not an error
		o.logger.Warn("pipeline.record_schema_violation", "req_id", reqID, "error", verr)
	}

	// Storing
	if err := o.store.Put(ctx, rec); err != nil {
		o.logger.Error("pipeline.store_failed", "req_id", reqID, "invoice_id", rec.InvoiceID, "error", err)
		return rec, common.NewExtractionError(constants.StageStoring, err, lastInv.RawResponse)
	}

	o.logger.Info("pipeline.done",
		"req_id", reqID, "invoice_id", rec.InvoiceID, "status", rec.Status,
		"attempts", attempts, "extractor", text.Extractor,
		"supplier", deref(rec.Supplier), "invoice_number", deref(rec.InvoiceNumber),
	)
	return rec, nil
}

// failedRecord builds, persists (best effort) and returns the terminal
// record for a failed extraction.
func (o *Orchestrator) failedRecord(ctx context.Context, fields normalize.Fields, req Request, filename, modelID string, attempts int, cause error) normalize.InvoiceRecord {
	if o.corrector != nil {
		o.corrector.Apply(&fields, filename)
	}
	rec := normalize.BuildRecord(fields, req.Data, filename, modelID, attempts)
	rec.MarkFailed(cause.Error())
	if err := o.store.Put(ctx, rec); err != nil {
		o.logger.Error("pipeline.store_failed_record",
			"req_id", common.RequestIDFromContext(ctx), "invoice_id", rec.InvoiceID, "error", err)
	}
	return rec
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
