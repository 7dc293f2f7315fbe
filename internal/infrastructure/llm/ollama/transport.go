package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/document-intake/internal/core/domain"
	"github.com/kirillkom/document-intake/internal/infrastructure/resilience"
)

// StatusError is a non-2xx answer from the Ollama server.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("ollama %s: %d: %s", e.Operation, e.StatusCode, msg)
}

// ModelMissing reports whether the server rejected the call because the
// embedding model has not been pulled.
func (e *StatusError) ModelMissing() bool {
	return e.StatusCode == http.StatusNotFound && strings.Contains(strings.ToLower(e.Body), "model")
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{Operation: operation, StatusCode: resp.StatusCode, Body: extractErrorField(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// extractErrorField unwraps Ollama's {"error": "..."} envelope when present.
func extractErrorField(raw []byte) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return string(raw)
}

// classifyEmbedError decides whether an embed batch is worth another attempt.
// A missing model or a rejected payload fails the run immediately.
func classifyEmbedError(err error) resilience.Verdict {
	switch {
	case err == nil:
		return resilience.Verdict{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Verdict{}
	case resilience.IsCircuitOpen(err):
		return resilience.Verdict{Retry: true, Trip: true}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.Verdict{Retry: true, Trip: true}
		case http.StatusInternalServerError:
			// Ollama answers 500 while a model is still loading.
			return resilience.Verdict{Retry: true, Trip: true}
		default:
			return resilience.Verdict{}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Verdict{Retry: true, Trip: true}
	}
	return resilience.Verdict{Trip: true}
}

func wrapEmbedError(err error) error {
	if err == nil {
		return nil
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.ModelMissing() {
		return domain.WrapError(domain.ErrRemoteService, "ollama embed", fmt.Errorf("%w (run `ollama pull` for the embed model)", err))
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if class := classifyEmbedError(err); class.Retry {
		return domain.WrapError(domain.ErrTemporary, "ollama embed", err)
	}
	return domain.WrapError(domain.ErrRemoteService, "ollama embed", err)
}
