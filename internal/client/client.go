package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DefaultBaseURL = "http://127.0.0.1:5000"

// ErrBackendUnavailable marks transport failures where the intake service
// could not be reached at all.
var ErrBackendUnavailable = errors.New("could not connect to the intake service")

// Result is the decoded body of an analyze call. Error is set for rejected
// uploads and for in-band model failures, which are both returned with 2xx.
type Result struct {
	StatusCode        int      `json:"-"`
	Filename          string   `json:"filename,omitempty"`
	PredictedCategory string   `json:"predicted_category,omitempty"`
	RoutingAction     string   `json:"routing_action,omitempty"`
	ActionItems       []string `json:"extracted_action_items,omitempty"`
	TextPreview       string   `json:"text_preview,omitempty"`
	Error             string   `json:"error,omitempty"`
	Details           string   `json:"details,omitempty"`
}

func (r *Result) Failed() bool {
	return r.Error != "" || r.StatusCode < 200 || r.StatusCode > 299
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Analyze uploads the file at path as the multipart field "file".
func (c *Client) Analyze(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze_document", pr)
	if err != nil {
		_ = pr.Close()
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		_ = pr.Close()
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return nil, fmt.Errorf("%w at %s: %v", ErrBackendUnavailable, c.baseURL, err)
		}
		return nil, fmt.Errorf("analyze request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read analyze response: %w", err)
	}

	result := &Result{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, result); err != nil {
		result.Error = fmt.Sprintf("unexpected response (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if result.Error == "" && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		result.Error = "Unknown error"
	}
	return result, nil
}
