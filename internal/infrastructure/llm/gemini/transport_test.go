package gemini

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestNewAPIErrorReadsGoogleEnvelope(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Body:       io.NopCloser(strings.NewReader(`{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)),
	}
	err := newAPIError("generate", resp)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != "RESOURCE_EXHAUSTED" || apiErr.Message != "Quota exceeded" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if got := err.Error(); got != "gemini generate: 429 RESOURCE_EXHAUSTED: Quota exceeded" {
		t.Fatalf("unexpected message: %s", got)
	}
}

func TestNewAPIErrorFallsBackToRawBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       io.NopCloser(strings.NewReader("upstream down\n")),
	}
	if got := newAPIError("upload start", resp).Error(); got != "gemini upload start: 502 Bad Gateway: upstream down" {
		t.Fatalf("unexpected message: %s", got)
	}
}
