package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/extraction"
)

const provider = "gemini"

// maxInlineBytes is the largest document sent inline.
const maxInlineBytes = 20 << 20

var errEmptyAnswer = errors.New("no candidate text in response")

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseMimeType   string         `json:"responseMimeType"`
	ResponseJSONSchema map[string]any `json:"responseJsonSchema,omitempty"`
	Temperature        float32        `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Extract implements extraction.Extractor.
func (c *Client) Extract(ctx context.Context, doc extraction.Document, kind documents.Kind) (map[string]any, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"schema", string(kind),
		"mime_type", doc.MIMEType,
		"bytes", len(doc.Bytes),
		"filename", doc.Filename,
	)

	if c.cfg.APIKey == "" {
		return nil, c.fail(rid, 0, errors.New("api key not configured"))
	}
	if len(doc.Bytes) == 0 || len(doc.Bytes) > maxInlineBytes {
		return nil, c.fail(rid, 0, fmt.Errorf("document size %d outside inline limits", len(doc.Bytes)))
	}
	schema, err := extraction.JSONSchema(kind)
	if err != nil {
		return nil, err
	}

	body := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MimeType: doc.MIMEType, Data: base64.StdEncoding.EncodeToString(doc.Bytes)}},
				{Text: buildPrompt(kind, doc.Filename)},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMimeType:   "application/json",
			ResponseJSONSchema: schema,
			Temperature:        c.cfg.Temperature,
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	raw, status, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, c.fail(rid, status, err)
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, c.fail(rid, status, fmt.Errorf("decode response: %w", err))
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, c.fail(rid, status, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}
	text := answerText(resp)
	if text == "" {
		return nil, c.fail(rid, status, errEmptyAnswer)
	}

	fields, err := extraction.ScreenJSON(kind, []byte(stripCodeFence(text)))
	if err != nil {
		c.logger.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err, "content_len", len(text),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, c.fail(rid, status, err)
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"schema", string(kind),
		"fields", len(fields),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return fields, nil
}

func (c *Client) fail(rid string, status int, err error) error {
	c.logger.Warn("llm.extract.failed", "req_id", rid, "status", status, "error", err)
	return &extraction.ExternalServiceError{Provider: provider, StatusCode: status, Err: err}
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("gemini http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("gemini response body close error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Errorf("gemini status %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}
	return raw, resp.StatusCode, nil
}

func answerText(resp generateResponse) string {
	for _, cand := range resp.Candidates {
		var sb strings.Builder
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			return s
		}
	}
	return ""
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func buildPrompt(kind documents.Kind, filename string) string {
	var sb strings.Builder
	sb.WriteString("You read business documents. The attached file is a ")
	sb.WriteString(extraction.Label(kind))
	sb.WriteString(".\nReturn ONLY JSON using the keys of the response schema.\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Copy values as printed; do not compute or invent anything.\n")
	sb.WriteString("- Leave out any field that is not on the document.\n")
	sb.WriteString("- Dates as YYYY-MM-DD when the printed date is unambiguous, otherwise exactly as printed.\n")
	sb.WriteString("- Amounts as numbers without currency symbols; put the currency code or symbol in \"currency\".\n")
	sb.WriteString("- One entry in \"items\" per printed line item.\n")
	if filename != "" {
		sb.WriteString("File name: ")
		sb.WriteString(filename)
		sb.WriteString("\n")
	}
	return sb.String()
}
