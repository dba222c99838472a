package bedrock

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tlacour/invoice-extractor/constants"
	"github.com/tlacour/invoice-extractor/internal/llm"
)

// requestBody builds the family-specific request envelope. Each Bedrock
// vendor speaks its own dialect even though the transport is the same
// InvokeModel call.
func requestBody(family constants.ModelFamily, prompt string, p llm.GenerationParams) (map[string]any, error) {
	switch family {
	case constants.FamilyAnthropic:
		// Claude completions envelope
		return map[string]any{
			"prompt":               fmt.Sprintf("\n\nHuman: %s\n\nAssistant:", prompt),
			"max_tokens_to_sample": p.MaxTokens,
			"temperature":          p.Temperature,
			"stop_sequences":       []string{"\n\nHuman:"},
		}, nil

	case constants.FamilyMeta:
		// Llama
		return map[string]any{
			"prompt":      prompt,
			"max_gen_len": p.MaxTokens,
			"temperature": p.Temperature,
			"top_p":       0.9,
		}, nil

	case constants.FamilyTitan:
		return map[string]any{
			"inputText": prompt,
			"textGenerationConfig": map[string]any{
				"maxTokenCount": p.MaxTokens,
				"temperature":   p.Temperature,
				"topP":          0.9,
				"stopSequences": []string{},
			},
		}, nil

	case constants.FamilyAI21:
		// Jurassic
		return map[string]any{
			"prompt":           prompt,
			"maxTokens":        p.MaxTokens,
			"temperature":      p.Temperature,
			"topP":             0.9,
			"stopSequences":    []string{},
			"countPenalty":     map[string]any{"scale": 0},
			"presencePenalty":  map[string]any{"scale": 0},
			"frequencyPenalty": map[string]any{"scale": 0},
		}, nil

	case constants.FamilyCohere:
		// Command
		return map[string]any{
			"prompt":             prompt,
			"max_tokens":         p.MaxTokens,
			"temperature":        p.Temperature,
			"p":                  0.9,
			"k":                  0,
			"stop_sequences":     []string{},
			"return_likelihoods": "NONE",
		}, nil
	}
	return nil, fmt.Errorf("no bedrock envelope for family %q", family)
}

// parseResponse pulls the generated text out of the family-specific
// response envelope.
func parseResponse(family constants.ModelFamily, body []byte) (string, error) {
	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("decode response envelope: %w", err)
	}

	switch family {
	case constants.FamilyAnthropic:
		if s, ok := envelope["completion"].(string); ok {
			return strings.TrimSpace(s), nil
		}

	case constants.FamilyMeta:
		if s, ok := envelope["generation"].(string); ok {
			return strings.TrimSpace(s), nil
		}

	case constants.FamilyTitan:
		if results, ok := envelope["results"].([]any); ok && len(results) > 0 {
			if first, ok := results[0].(map[string]any); ok {
				if s, ok := first["outputText"].(string); ok {
					return strings.TrimSpace(s), nil
				}
			}
		}

	case constants.FamilyAI21:
		if completions, ok := envelope["completions"].([]any); ok && len(completions) > 0 {
			if first, ok := completions[0].(map[string]any); ok {
				if data, ok := first["data"].(map[string]any); ok {
					if s, ok := data["text"].(string); ok {
						return strings.TrimSpace(s), nil
					}
				}
			}
		}

	case constants.FamilyCohere:
		if generations, ok := envelope["generations"].([]any); ok && len(generations) > 0 {
			if first, ok := generations[0].(map[string]any); ok {
				if s, ok := first["text"].(string); ok {
					return strings.TrimSpace(s), nil
				}
			}
		}
	}
	return "", fmt.Errorf("no generated text in %s response envelope", family)
}
