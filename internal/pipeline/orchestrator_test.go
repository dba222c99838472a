package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tlacour/invoice-extractor/constants"
	"github.com/tlacour/invoice-extractor/internal/common"
	"github.com/tlacour/invoice-extractor/internal/extract"
	"github.com/tlacour/invoice-extractor/internal/llm"
	"github.com/tlacour/invoice-extractor/internal/normalize"
	"github.com/tlacour/invoice-extractor/internal/parser"
	"github.com/tlacour/invoice-extractor/internal/repository"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, sourceID string, data []byte) (extract.Result, error) {
	if f.err != nil {
		return extract.Result{SourceID: sourceID}, f.err
	}
	return extract.Result{SourceID: sourceID, Text: f.text, Extractor: extract.ExtractorPrimary, Pages: 1}, nil
}

// scriptedAdapter returns one scripted response (or error) per call.
type scriptedAdapter struct {
	family    constants.ModelFamily
	responses []string
	errs      []error
	calls     int
}

func (a *scriptedAdapter) Family() constants.ModelFamily { return a.family }

func (a *scriptedAdapter) Invoke(ctx context.Context, modelID, prompt string, params llm.GenerationParams) (string, error) {
	i := a.calls
	a.calls++
	if i < len(a.errs) && a.errs[i] != nil {
		return "", a.errs[i]
	}
	if i < len(a.responses) {
		return a.responses[i], nil
	}
	return "", fmt.Errorf("%w: no scripted response %d", common.ErrModelInvocation, i)
}

type memStore struct {
	mu   sync.Mutex
	recs map[string]normalize.InvoiceRecord
	err  error
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]normalize.InvoiceRecord)}
}

func (s *memStore) Put(ctx context.Context, rec normalize.InvoiceRecord) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.InvoiceID] = rec
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (*normalize.InvoiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (s *memStore) Search(ctx context.Context, f repository.Filter) ([]normalize.InvoiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]normalize.InvoiceRecord, 0, len(s.recs))
	for _, r := range s.recs {
		out = append(out, r)
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

func testOrchestrator(adapter llm.Adapter, store repository.InvoiceStore, extractor extract.TextExtractor) *Orchestrator {
	registry := llm.NewRegistry(nil)
	registry.Register(adapter)
	synonyms := normalize.DefaultSynonyms()
	return NewOrchestrator(
		common.PipelineConfig{
			RetryAttempts:   3,
			ExtractTimeout:  5 * time.Second,
			InvokeTimeout:   5 * time.Second,
			BackoffInterval: time.Millisecond,
		},
		common.ModelConfig{DefaultModelID: "anthropic.claude-v2", MaxTokens: 100, Temperature: 0.1},
		extractor,
		registry,
		parser.New(synonyms.RecognizedKeys(), nil),
		normalize.NewNormalizer(synonyms, nil),
		normalize.NewSupplierCorrector(nil, nil, nil),
		store,
		nil,
	)
}

func TestRun_HappyPath(t *testing.T) {
	adapter := &scriptedAdapter{
		family: constants.FamilyAnthropic,
		responses: []string{
			"Voici le JSON :\n```json\n" +
				`{"fournisseur": "ORANGE", "montant_ht": "102,50", "numero_facture": "FAC-0042", "date_facture": "19/11/2025"}` +
				"\n```",
		},
	}
	store := newMemStore()
	orch := testOrchestrator(adapter, store, &fakeExtractor{text: "Facture ORANGE"})

	rec, err := orch.Run(context.Background(), Request{
		SourceID: "/invoices/facture_orange.pdf",
		Data:     []byte("%PDF-1.4 bytes"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rec.Status != constants.StatusExtracted {
		t.Errorf("Status = %s, want EXTRACTED", rec.Status)
	}
	if rec.Supplier == nil || *rec.Supplier != "ORANGE" {
		t.Errorf("Supplier = %v, want ORANGE", rec.Supplier)
	}
	if rec.AmountExclTax == nil || *rec.AmountExclTax != 102.50 {
		t.Errorf("AmountExclTax = %v, want 102.50", rec.AmountExclTax)
	}
	if rec.InvoiceDate == nil || *rec.InvoiceDate != "2025-11-19" {
		t.Errorf("InvoiceDate = %v, want 2025-11-19", rec.InvoiceDate)
	}
	if rec.SourceFilename != "facture_orange.pdf" {
		t.Errorf("SourceFilename = %q", rec.SourceFilename)
	}
	if rec.ModelUsed != "anthropic.claude-v2" {
		t.Errorf("ModelUsed = %q", rec.ModelUsed)
	}
	if rec.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", rec.Attempts)
	}
	if got, err := store.GetByID(context.Background(), rec.InvoiceID); err != nil || got.Status != constants.StatusExtracted {
		t.Errorf("stored record = %v, err = %v", got, err)
	}
}

func TestRun_PartialFields(t *testing.T) {
	adapter := &scriptedAdapter{
		family:    constants.FamilyAnthropic,
		responses: []string{`{"fournisseur": "Acme", "montant_ht": "50.00"}`},
	}
	store := newMemStore()
	orch := testOrchestrator(adapter, store, &fakeExtractor{text: "Facture Acme"})

	rec, err := orch.Run(context.Background(), Request{SourceID: "acme.pdf", Data: []byte("x")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rec.Status != constants.StatusPartial {
		t.Errorf("Status = %s, want PARTIAL", rec.Status)
	}
	if rec.Supplier == nil || *rec.Supplier != "Acme" {
		t.Errorf("Supplier = %v, want Acme", rec.Supplier)
	}
	if rec.AmountExclTax == nil || *rec.AmountExclTax != 50.0 {
		t.Errorf("AmountExclTax = %v, want 50", rec.AmountExclTax)
	}
	if rec.InvoiceNumber != nil {
		t.Errorf("InvoiceNumber = %v, want nil", *rec.InvoiceNumber)
	}
	if rec.InvoiceDate != nil {
		t.Errorf("InvoiceDate = %v, want nil", *rec.InvoiceDate)
	}
}

func TestRun_RetryAfterGarbageResponse(t *testing.T) {
	adapter := &scriptedAdapter{
		family: constants.FamilyAnthropic,
		responses: []string{
			"je ne peux pas répondre",
			`{"fournisseur": "SFR", "montant_ht": 10, "numero_facture": "F1", "date_facture": "2025-01-02"}`,
		},
	}
	store := newMemStore()
	orch := testOrchestrator(adapter, store, &fakeExtractor{text: "Facture SFR"})

	rec, err := orch.Run(context.Background(), Request{SourceID: "sfr.pdf", Data: []byte("x")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if adapter.calls != 2 {
		t.Errorf("adapter calls = %d, want 2", adapter.calls)
	}
	if rec.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", rec.Attempts)
	}
	if rec.Status != constants.StatusExtracted {
		t.Errorf("Status = %s, want EXTRACTED", rec.Status)
	}
}

func TestRun_RetriesExhausted(t *testing.T) {
	adapter := &scriptedAdapter{
		family: constants.FamilyAnthropic,
		responses: []string{
			"garbage with Fournisseur : ORANGE\nMontant : 102,50 €",
			"garbage",
			"garbage",
		},
	}
	store := newMemStore()
	orch := testOrchestrator(adapter, store, &fakeExtractor{text: "Facture"})

	rec, err := orch.Run(context.Background(), Request{SourceID: "bad.pdf", Data: []byte("x")})
	if err == nil {
		t.Fatal("Run() error = nil, want terminal failure")
	}
	if adapter.calls != 3 {
		t.Errorf("adapter calls = %d, want 3", adapter.calls)
	}
	var ee *common.ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("error type = %T, want *ExtractionError", err)
	}
	if ee.Stage != constants.StageParsing {
		t.Errorf("Stage = %s, want PARSING", ee.Stage)
	}
	if ee.RawResponse == "" {
		t.Error("RawResponse is empty, want the last model output")
	}
	if rec.Status != constants.StatusFailed {
		t.Errorf("Status = %s, want FAILED", rec.Status)
	}
	// the failed record is still persisted
	if got, gerr := store.GetByID(context.Background(), rec.InvoiceID); gerr != nil || got.Status != constants.StatusFailed {
		t.Errorf("stored record = %v, err = %v", got, gerr)
	}
}

func TestRun_FatalModelErrorSkipsRetry(t *testing.T) {
	adapter := &scriptedAdapter{
		family: constants.FamilyAnthropic,
		errs:   []error{fmt.Errorf("%w: access denied", common.ErrModelUnavailable)},
	}
	store := newMemStore()
	orch := testOrchestrator(adapter, store, &fakeExtractor{text: "Facture"})

	_, err := orch.Run(context.Background(), Request{SourceID: "x.pdf", Data: []byte("x")})
	if !errors.Is(err, common.ErrModelUnavailable) {
		t.Fatalf("Run() error = %v, want ErrModelUnavailable", err)
	}
	if adapter.calls != 1 {
		t.Errorf("adapter calls = %d, want 1 (no retry on fatal error)", adapter.calls)
	}
	var ee *common.ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("error type = %T", err)
	}
	if ee.Stage != constants.StageInvoking {
		t.Errorf("Stage = %s, want INVOKING", ee.Stage)
	}
}

func TestRun_TransientModelErrorRetries(t *testing.T) {
	adapter := &scriptedAdapter{
		family:    constants.FamilyAnthropic,
		errs:      []error{fmt.Errorf("%w: throttled", common.ErrModelInvocation), nil},
		responses: []string{"", `{"fournisseur": "OVH", "montant_ht": 5, "numero_facture": "F2", "date_facture": "2025-03-04"}`},
	}
	store := newMemStore()
	orch := testOrchestrator(adapter, store, &fakeExtractor{text: "Facture"})

	rec, err := orch.Run(context.Background(), Request{SourceID: "ovh.pdf", Data: []byte("x")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if adapter.calls != 2 {
		t.Errorf("adapter calls = %d, want 2", adapter.calls)
	}
	if rec.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", rec.Attempts)
	}
}

func TestRun_UnreadableDocument(t *testing.T) {
	adapter := &scriptedAdapter{family: constants.FamilyAnthropic}
	store := newMemStore()
	orch := testOrchestrator(adapter, store,
		&fakeExtractor{err: fmt.Errorf("%w: no text layer", common.ErrUnreadableDocument)})

	rec, err := orch.Run(context.Background(), Request{SourceID: "scan.pdf", Data: []byte("x")})
	if !errors.Is(err, common.ErrUnreadableDocument) {
		t.Fatalf("Run() error = %v, want ErrUnreadableDocument", err)
	}
	if adapter.calls != 0 {
		t.Errorf("adapter calls = %d, want 0", adapter.calls)
	}
	var ee *common.ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("error type = %T", err)
	}
	if ee.Stage != constants.StageExtracting {
		t.Errorf("Stage = %s, want EXTRACTING", ee.Stage)
	}
	if rec.Status != constants.StatusFailed {
		t.Errorf("Status = %s, want FAILED", rec.Status)
	}
}

func TestRun_SalvageOnTerminalFailure(t *testing.T) {
	adapter := &scriptedAdapter{
		family: constants.FamilyAnthropic,
		responses: []string{
			"no json here",
			"no json here",
			"Fournisseur : ORANGE\nMontant : 102,50 €\nDate : 19/11/2025",
		},
	}
	store := newMemStore()
	orch := testOrchestrator(adapter, store, &fakeExtractor{text: "Facture"})

	rec, err := orch.Run(context.Background(), Request{SourceID: "f.pdf", Data: []byte("x")})
	if err == nil {
		t.Fatal("Run() error = nil, want failure")
	}
	if rec.Supplier == nil || *rec.Supplier != "ORANGE" {
		t.Errorf("Supplier = %v, want ORANGE salvaged from the last response", rec.Supplier)
	}
	if rec.AmountExclTax == nil || *rec.AmountExclTax != 102.50 {
		t.Errorf("AmountExclTax = %v, want 102.50", rec.AmountExclTax)
	}
	if rec.Status != constants.StatusFailed {
		t.Errorf("Status = %s, want FAILED", rec.Status)
	}
}

func TestRun_StoreFailure(t *testing.T) {
	adapter := &scriptedAdapter{
		family:    constants.FamilyAnthropic,
		responses: []string{`{"fournisseur": "FREE", "montant_ht": 1, "numero_facture": "F3", "date_facture": "2025-05-06"}`},
	}
	store := newMemStore()
	store.err = errors.New("disk full")
	orch := testOrchestrator(adapter, store, &fakeExtractor{text: "Facture"})

	rec, err := orch.Run(context.Background(), Request{SourceID: "f.pdf", Data: []byte("x")})
	var ee *common.ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("Run() error = %v, want *ExtractionError", err)
	}
	if ee.Stage != constants.StageStoring {
		t.Errorf("Stage = %s, want STORING", ee.Stage)
	}
	// the record itself is intact, only persistence failed
	if rec.Status != constants.StatusExtracted {
		t.Errorf("Status = %s, want EXTRACTED", rec.Status)
	}
}

func TestRun_ExplicitModelOverride(t *testing.T) {
	adapter := &scriptedAdapter{
		family:    constants.FamilyMeta,
		responses: []string{`{"fournisseur": "TELEFONICA", "montant_ht": 9, "numero_facture": "F4", "date_facture": "2025-07-08"}`},
	}
	store := newMemStore()
	orch := testOrchestrator(adapter, store, &fakeExtractor{text: "Facture"})

	rec, err := orch.Run(context.Background(), Request{
		SourceID: "f.pdf",
		Data:     []byte("x"),
		ModelID:  "meta.llama3-70b-instruct-v1:0",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rec.ModelUsed != "meta.llama3-70b-instruct-v1:0" {
		t.Errorf("ModelUsed = %q", rec.ModelUsed)
	}
}
