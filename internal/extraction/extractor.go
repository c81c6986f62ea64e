package extraction

import (
	"context"
	"fmt"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/shared"
)

// Document is an uploaded file handed to an extractor as opaque bytes.
type Document struct {
	Bytes    []byte
	MIMEType string
	Filename string
}

// Extractor pulls raw fields out of a document for the given schema.
type Extractor interface {
	Extract(ctx context.Context, doc Document, kind documents.Kind) (map[string]any, error)
}

// ExternalServiceError reports a failed call to the extraction provider. Callers decide
// whether to retry.
type ExternalServiceError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// Is matches shared.ErrExternalService.
func (e *ExternalServiceError) Is(target error) bool { return target == shared.ErrExternalService }

// Retryable reports whether the provider failure looks transient.
func (e *ExternalServiceError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}
