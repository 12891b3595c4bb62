package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"webinfinitygen/internal/apperr"
	"webinfinitygen/internal/model"
)

const maxResponseBytes = 32 << 20

var ErrResponseTooLarge = errors.New("workflow response exceeds size limit")

// Attachment is a base64 payload sent along with a prompt.
type Attachment struct {
	Data     string
	MimeType string
	Name     string
}

type Request struct {
	ChatType model.ChatType
	Text     string
	Image    *Attachment
	File     *Attachment
}

// UpstreamError is any failed workflow call: transport error, timeout or non-2xx.
type UpstreamError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("upstream responded %d: %s", e.StatusCode, e.Body)
	case e.Err != nil:
		return "upstream request failed: " + e.Err.Error()
	default:
		return "upstream request failed"
	}
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperr.ErrUpstream}
	}
	return []error{apperr.ErrUpstream, e.Err}
}

// WebhookClient posts prompts to the workflow endpoint configured per chat type
// and returns the raw response body.
type WebhookClient struct {
	httpClient *http.Client
	endpoints  map[model.ChatType]string
	maxBody    int64
}

func NewWebhookClient(endpoints map[model.ChatType]string, timeout time.Duration) *WebhookClient {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &WebhookClient{
		httpClient: &http.Client{Timeout: timeout},
		endpoints:  endpoints,
		maxBody:    maxResponseBytes,
	}
}

func (c *WebhookClient) Invoke(ctx context.Context, req Request) ([]byte, error) {
	url, ok := c.endpoints[req.ChatType]
	if !ok || url == "" {
		return nil, &UpstreamError{Err: fmt.Errorf("no workflow configured for chat type %q", req.ChatType)}
	}

	bodyBytes, err := json.Marshal(buildPayload(req))
	if err != nil {
		return nil, fmt.Errorf("marshal workflow request failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, &UpstreamError{Err: fmt.Errorf("build workflow request failed: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &UpstreamError{Err: fmt.Errorf("read workflow response failed: %w", err)}
	}
	if int64(len(raw)) > c.maxBody {
		return nil, &UpstreamError{Err: ErrResponseTooLarge}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}
	return raw, nil
}

// buildPayload shapes the request body each workflow expects.
func buildPayload(req Request) map[string]any {
	switch req.ChatType {
	case model.ChatTypeCreateImage,
		model.ChatTypeIncreaseResolution,
		model.ChatTypeBackgroundSeparation,
		model.ChatTypeImageCompression:
		body := map[string]any{"prompt": req.Text}
		if req.Image != nil {
			body["inputImage"] = map[string]string{"data": req.Image.Data, "mimeType": req.Image.MimeType}
		}
		return body
	case model.ChatTypeFileToText:
		body := map[string]any{"message": req.Text}
		if req.File != nil {
			body["file"] = req.File.Data
			body["fileName"] = req.File.Name
			body["mimeType"] = req.File.MimeType
		}
		return body
	default:
		body := map[string]any{"message": req.Text}
		if req.Image != nil {
			body["image"] = req.Image.Data
		}
		return body
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
