// Package parser recovers a single JSON object from free-form LLM output.
// Model responses routinely wrap the payload in code fences, prose, or
// both, and the JSON itself often carries minor malformations (smart
// quotes, trailing commas). The heuristics live behind a narrow contract
// so they can evolve without touching normalization or storage.
package parser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tlacour/invoice-extractor/internal/common"
)

var reFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// reTrailingComma matches a comma directly before a closing brace/bracket.
var reTrailingComma = regexp.MustCompile(`,\s*([}\]])`)

// quoteCleaner maps typographic quote variants the models like to emit
// onto plain ASCII ones.
var quoteCleaner = strings.NewReplacer(
	"“", `"`, "”", `"`, // “ ”
	"‘", "'", "’", "'", // ‘ ’
	"«", `"`, "»", `"`, // « »
	" ", " ",
)

// Parser extracts one JSON object per model response. recognized holds
// every canonical and synonym key, lowercased; candidates are ranked by
// how many of those keys they carry.
type Parser struct {
	recognized map[string]struct{}
	logger     *slog.Logger
}

func New(recognizedKeys []string, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[string]struct{}, len(recognizedKeys))
	for _, k := range recognizedKeys {
		set[strings.ToLower(strings.TrimSpace(k))] = struct{}{}
	}
	return &Parser{recognized: set, logger: logger}
}

type candidate struct {
	obj   map[string]any
	score int
	pos   int // occurrence order, for the tie-break
}

// Parse returns the best JSON object found in raw, or ErrNoJSONFound /
// ErrAmbiguousJSON. Candidates that parse to something other than an
// object (bare arrays, scalars) are rejected.
func (p *Parser) Parse(raw string) (map[string]any, error) {
	cleaned := quoteCleaner.Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil, common.ErrNoJSONFound
	}

	// 1) fenced code blocks; a fence may hold prose around the object
	var fenced []string
	for _, m := range reFence.FindAllStringSubmatch(cleaned, -1) {
		fenced = append(fenced, balancedSpans(m[1])...)
	}
	if obj, err := p.selectBest(fenced, "fence"); err == nil {
		return obj, nil
	} else if err != errNoCandidate {
		return nil, err
	}

	// 2) the whole response is the object
	if obj, ok := p.tryParse(cleaned); ok {
		return obj, nil
	}

	// 3) balanced-brace spans anywhere in the text
	if obj, err := p.selectBest(balancedSpans(cleaned), "brace-span"); err == nil {
		return obj, nil
	} else if err != errNoCandidate {
		return nil, err
	}

	return nil, common.ErrNoJSONFound
}

var errNoCandidate = fmt.Errorf("no parseable candidate")

// selectBest parses each candidate string and picks the one with the most
// recognized keys, first occurrence winning ties. Multiple candidates
// with no recognized key at all are ambiguous rather than a coin flip.
func (p *Parser) selectBest(raws []string, source string) (map[string]any, error) {
	var cands []candidate
	for i, r := range raws {
		obj, ok := p.tryParse(r)
		if !ok {
			continue
		}
		cands = append(cands, candidate{obj: obj, score: p.scoreKeys(obj), pos: i})
	}
	if len(cands) == 0 {
		return nil, errNoCandidate
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if c.score > best.score {
			best = c
		}
	}
	if len(cands) > 1 && best.score == 0 {
		p.logger.Warn("parser.ambiguous", "source", source, "candidates", len(cands))
		return nil, common.ErrAmbiguousJSON
	}
	if len(cands) > 1 {
		p.logger.Debug("parser.candidate_selected",
			"source", source, "candidates", len(cands),
			"picked", best.pos, "recognized_keys", best.score,
		)
	}
	return best.obj, nil
}

// tryParse attempts a strict parse, then a lenient retry with trailing
// commas stripped.
func (p *Parser) tryParse(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s[0] != '{' {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return obj, true
	}
	relaxed := reTrailingComma.ReplaceAllString(s, "$1")
	if err := json.Unmarshal([]byte(relaxed), &obj); err == nil {
		return obj, true
	}
	return nil, false
}

func (p *Parser) scoreKeys(obj map[string]any) int {
	n := 0
	for k := range obj {
		if _, ok := p.recognized[strings.ToLower(strings.TrimSpace(k))]; ok {
			n++
		}
	}
	return n
}

// balancedSpans returns every top-level {...} span in s, widest first by
// construction since nesting is tracked. Braces inside JSON strings are
// ignored.
func balancedSpans(s string) []string {
	var spans []string
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					spans = append(spans, s[start:i+1])
					start = -1
				}
			}
		}
	}
	return spans
}
