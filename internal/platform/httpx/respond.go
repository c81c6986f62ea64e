package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tradedesk/tradedesk/internal/shared"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type     string                `json:"type,omitempty"`
	Title    string                `json:"title"`
	Status   int                   `json:"status"`
	Detail   string                `json:"detail,omitempty"`
	Problems []shared.FieldProblem `json:"problems,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	ProblemType(w, status, "", title, detail)
}

// ProblemType sends a problem response carrying a machine readable type.
func ProblemType(w http.ResponseWriter, status int, typ, title, detail string) {
	WriteProblem(w, ProblemDetail{Type: typ, Title: title, Status: status, Detail: detail})
}

// WriteProblem sends p as application/problem+json.
func WriteProblem(w http.ResponseWriter, p ProblemDetail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// DecodeJSON decodes the request body into target. Unknown fields and malformed bodies are
// reported as validation errors.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body required: %w", shared.ErrValidation)
		}
		return fmt.Errorf("decode request: %s: %w", err.Error(), shared.ErrValidation)
	}
	return nil
}
