package common

import (
	"errors"
	"fmt"

	"github.com/tlacour/invoice-extractor/constants"
)

// Pipeline error taxonomy. The orchestrator classifies every stage-local
// error against these sentinels to decide between retry and short-circuit.
var (
	// ErrUnreadableDocument: both PDF libraries failed or produced no text.
	// Fatal; a retry reads the same bytes.
	ErrUnreadableDocument = errors.New("unreadable document")

	// ErrUnsupportedModel: no adapter is registered for the model id.
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrModelUnavailable: access or permission denied by the provider.
	// Fatal; retrying does not change access facts.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrModelInvocation: transport failure, throttle or timeout. Retryable.
	ErrModelInvocation = errors.New("model invocation error")

	// ErrNoJSONFound: the model response contained no parseable JSON object.
	// Retryable by re-invoking the model.
	ErrNoJSONFound = errors.New("no json found in model response")

	// ErrAmbiguousJSON: several JSON objects were found and none carried a
	// recognized invoice key. Retryable.
	ErrAmbiguousJSON = errors.New("ambiguous json candidates")
)

// Retryable reports whether the orchestrator may re-invoke the model after
// seeing err. Unknown errors are treated as retryable so that transient
// provider hiccups do not kill a document.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrUnreadableDocument),
		errors.Is(err, ErrUnsupportedModel),
		errors.Is(err, ErrModelUnavailable):
		return false
	}
	return true
}

// ExtractionError is the terminal wrapper surfaced to callers after the
// pipeline gives up. It keeps the last raw model response so a human can
// re-parse manually.
type ExtractionError struct {
	Stage       constants.Stage
	Cause       error
	RawResponse string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed at %s: %v", e.Stage, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// NewExtractionError wraps cause with its originating stage.
func NewExtractionError(stage constants.Stage, cause error, rawResponse string) *ExtractionError {
	return &ExtractionError{Stage: stage, Cause: cause, RawResponse: rawResponse}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
