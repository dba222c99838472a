package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ltpdf "github.com/ledongthuc/pdf"
	rpdf "rsc.io/pdf"

	"github.com/tlacour/invoice-extractor/internal/common"
)

// extractFn converts PDF bytes into text and a page count.
type extractFn func(data []byte) (string, int, error)

// PDFExtractor extracts the text layer of a PDF, trying a primary library
// and falling back to a second one when the primary errors out or returns
// near-empty text. Image-only PDFs have no text layer and fail with
// ErrUnreadableDocument; OCR is out of scope.
type PDFExtractor struct {
	minTextLength int
	logger        *slog.Logger

	primary  extractFn
	fallback extractFn
}

func NewPDFExtractor(minTextLength int, logger *slog.Logger) *PDFExtractor {
	if minTextLength <= 0 {
		minTextLength = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{
		minTextLength: minTextLength,
		logger:        logger,
		primary:       extractWithLedongthuc,
		fallback:      extractWithRscPDF,
	}
}

var _ TextExtractor = (*PDFExtractor)(nil)

// Extract implements TextExtractor.
func (e *PDFExtractor) Extract(ctx context.Context, sourceID string, data []byte) (Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Result{SourceID: sourceID}, err
	}
	if len(data) == 0 {
		return Result{SourceID: sourceID}, fmt.Errorf("%w: empty input", common.ErrUnreadableDocument)
	}

	var warnings []string

	text, pages, err := e.primary(data)
	if err == nil && e.nonTrivial(text) {
		e.logger.Info("extract.ok",
			"source", sourceID, "extractor", ExtractorPrimary,
			"pages", pages, "bytes", len(text),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{
			SourceID:  sourceID,
			Text:      text,
			Extractor: ExtractorPrimary,
			Pages:     pages,
			Duration:  time.Since(start),
		}, nil
	}
	if err != nil {
		warnings = append(warnings, err.Error())
		e.logger.Warn("extract.primary_failed", "source", sourceID, "error", err)
	} else {
		warnings = append(warnings, fmt.Sprintf("primary returned %d bytes, below threshold %d", len(text), e.minTextLength))
		e.logger.Warn("extract.primary_near_empty", "source", sourceID, "bytes", len(text))
	}

	text, pages, err = e.fallback(data)
	if err != nil {
		warnings = append(warnings, err.Error())
		e.logger.Error("extract.fallback_failed", "source", sourceID, "error", err)
		return Result{SourceID: sourceID, Warnings: warnings},
			fmt.Errorf("%w: both extractors failed", common.ErrUnreadableDocument)
	}
	if !e.nonTrivial(text) {
		e.logger.Error("extract.no_text_layer", "source", sourceID, "bytes", len(text))
		return Result{SourceID: sourceID, Warnings: warnings},
			fmt.Errorf("%w: no extractable text layer", common.ErrUnreadableDocument)
	}

	e.logger.Info("extract.ok",
		"source", sourceID, "extractor", ExtractorFallback,
		"pages", pages, "bytes", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{
		SourceID:  sourceID,
		Text:      text,
		Extractor: ExtractorFallback,
		Pages:     pages,
		Duration:  time.Since(start),
		Warnings:  warnings,
	}, nil
}

func (e *PDFExtractor) nonTrivial(text string) bool {
	return len(strings.TrimSpace(text)) >= e.minTextLength
}

// extractWithLedongthuc reads the text layer page by page, keeping the
// page markers the downstream prompt relies on.
func extractWithLedongthuc(data []byte) (string, int, error) {
	r, err := ltpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", i, pageText)
	}
	return b.String(), pages, nil
}

// extractWithRscPDF reassembles text from positioned glyph runs. Cruder
// than the primary path but reads some files the primary chokes on.
func extractWithRscPDF(data []byte) (string, int, error) {
	r, err := rpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}
		var pb strings.Builder
		lastY := content.Text[0].Y
		for _, t := range content.Text {
			if t.Y != lastY {
				pb.WriteString("\n")
				lastY = t.Y
			}
			pb.WriteString(t.S)
		}
		pageText := strings.TrimSpace(pb.String())
		if pageText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", i, pageText)
	}
	return b.String(), pages, nil
}
