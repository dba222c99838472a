package extract

import (
	"context"
	"time"
)

// Extractor used for a result.
const (
	ExtractorPrimary  = "primary"
	ExtractorFallback = "fallback"
)

// TextExtractor is Stage 1: document bytes -> plain text.
type TextExtractor interface {
	Extract(ctx context.Context, sourceID string, data []byte) (Result, error)
}

// Result is produced once per request and never mutated afterwards.
type Result struct {
	SourceID  string
	Text      string
	Extractor string // ExtractorPrimary | ExtractorFallback
	Pages     int
	Duration  time.Duration
	Warnings  []string
}

// Length returns the extracted text length in bytes.
func (r Result) Length() int { return len(r.Text) }
