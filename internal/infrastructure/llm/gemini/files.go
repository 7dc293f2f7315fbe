package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/h2non/filetype"
)

const (
	fileStateActive     = "ACTIVE"
	fileStateProcessing = "PROCESSING"
	fileStateFailed     = "FAILED"
)

type remoteFile struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	MimeType    string `json:"mimeType"`
	URI         string `json:"uri"`
	State       string `json:"state"`
}

// uploadFile pushes raw bytes through the resumable Files API protocol and
// waits until the remote copy can be referenced from a prompt.
func (c *Client) uploadFile(ctx context.Context, data []byte, displayName, mimeType string) (*remoteFile, error) {
	sessionURL, err := c.startUpload(ctx, int64(len(data)), displayName, mimeType)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sessionURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Length", strconv.Itoa(len(data)))
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	var resp struct {
		File remoteFile `json:"file"`
	}
	if err := c.do(req, &resp, "upload"); err != nil {
		return nil, err
	}
	if resp.File.Name == "" || resp.File.URI == "" {
		return nil, fmt.Errorf("gemini upload returned no file reference")
	}
	if resp.File.MimeType == "" {
		resp.File.MimeType = mimeType
	}
	return c.waitActive(ctx, &resp.File)
}

func (c *Client) startUpload(ctx context.Context, size int64, displayName, mimeType string) (string, error) {
	body, err := json.Marshal(map[string]any{"file": map[string]string{"display_name": displayName}})
	if err != nil {
		return "", fmt.Errorf("marshal upload metadata: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/v1beta/files", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create upload start request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini upload start request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", newAPIError("upload start", resp)
	}

	sessionURL := resp.Header.Get("X-Goog-Upload-URL")
	if sessionURL == "" {
		return "", fmt.Errorf("gemini upload start: missing upload url")
	}
	return sessionURL, nil
}

func (c *Client) waitActive(ctx context.Context, file *remoteFile) (*remoteFile, error) {
	if file.State == "" || file.State == fileStateActive {
		return file, nil
	}

	deadline := time.Now().Add(c.filePollTimeout)
	for file.State == fileStateProcessing {
		if time.Now().After(deadline) {
			return file, fmt.Errorf("gemini file %s still processing after %s", file.Name, c.filePollTimeout)
		}
		timer := time.NewTimer(c.filePollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return file, ctx.Err()
		case <-timer.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1beta/"+file.Name, nil)
		if err != nil {
			return file, fmt.Errorf("create file status request: %w", err)
		}
		var current remoteFile
		if err := c.do(req, &current, "file status"); err != nil {
			return file, err
		}
		current.MimeType = firstNonEmpty(current.MimeType, file.MimeType)
		current.URI = firstNonEmpty(current.URI, file.URI)
		*file = current
	}
	if file.State == fileStateFailed {
		return file, fmt.Errorf("gemini could not process file %s", file.Name)
	}
	return file, nil
}

func (c *Client) deleteFile(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1beta/"+name, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	return c.do(req, nil, "delete file")
}

var mimeByExtension = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// detectMIME trusts the content signature first and the extension second.
func detectMIME(data []byte, filename string) string {
	if mt, err := filetype.Match(data); err == nil && mt != filetype.Unknown && mt.MIME.Value != "" {
		return mt.MIME.Value
	}
	if mime, ok := mimeByExtension[strings.ToLower(filepath.Ext(filename))]; ok {
		return mime
	}
	return "application/octet-stream"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
