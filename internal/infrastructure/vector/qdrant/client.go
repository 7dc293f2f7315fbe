package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

const (
	DefaultCollection = "document_chunks"
	upsertBatchSize   = 256
)

// Client stores ingestion chunks as Qdrant points over the REST API. The
// collection is created on first write with cosine distance.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	mu        sync.Mutex
	readySize int
}

func New(baseURL, collection string) *Client {
	if strings.TrimSpace(collection) == "" {
		collection = DefaultCollection
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

type searchHit struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func (c *Client) AddChunks(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	size := len(chunks[0].Vector)
	for _, ch := range chunks {
		if size == 0 || len(ch.Vector) != size {
			return domain.WrapError(domain.ErrInvalidInput, "qdrant add chunks", fmt.Errorf("chunk %s: vector size %d, want %d", ch.ID, len(ch.Vector), size))
		}
	}
	if err := c.ensureCollection(ctx, size); err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))
		points := make([]point, 0, end-start)
		for _, ch := range chunks[start:end] {
			points = append(points, toPoint(ch))
		}
		if err := c.call(ctx, http.MethodPut, c.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil, "upsert"); err != nil {
			return err
		}
	}
	return nil
}

func toPoint(ch domain.EmbeddedChunk) point {
	payload := make(map[string]any, len(ch.Metadata)+2)
	for k, v := range ch.Metadata {
		payload[k] = v
	}
	payload["chunk_index"] = ch.Index
	payload["text"] = ch.Text
	return point{ID: ch.ID, Vector: ch.Vector, Payload: payload}
}

func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	req := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []searchHit `json:"result"`
	}
	if err := c.call(ctx, http.MethodPost, c.collectionPath("/points/search"), req, &resp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.ScoredChunk, 0, len(resp.Result))
	for _, hit := range resp.Result {
		out = append(out, hit.toScoredChunk())
	}
	return out, nil
}

func (h searchHit) toScoredChunk() domain.ScoredChunk {
	chunk := domain.Chunk{
		ID:       strings.Trim(string(h.ID), `"`),
		Metadata: make(map[string]string, len(h.Payload)),
	}
	for k, v := range h.Payload {
		switch k {
		case "text":
			chunk.Text, _ = v.(string)
		case "chunk_index":
			if f, ok := v.(float64); ok {
				chunk.Index = int(f)
			}
		default:
			if s, ok := v.(string); ok {
				chunk.Metadata[k] = s
			} else {
				chunk.Metadata[k] = fmt.Sprint(v)
			}
		}
	}
	return domain.ScoredChunk{Chunk: chunk, Score: h.Score}
}

// ensureCollection creates the collection when it is missing and refuses to
// write into one built for a different embedding size.
func (c *Client) ensureCollection(ctx context.Context, size int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readySize == size {
		return nil
	}

	var info collectionInfo
	err := c.call(ctx, http.MethodGet, c.collectionPath(""), nil, &info, "get collection")
	switch {
	case err == nil:
		if existing := info.Result.Config.Params.Vectors.Size; existing != 0 && existing != size {
			return domain.WrapError(domain.ErrInvalidInput, "qdrant ensure collection",
				fmt.Errorf("collection %q holds %d-dim vectors, embedder produced %d", c.collection, existing, size))
		}
	case isStatus(err, http.StatusNotFound):
		create := map[string]any{"vectors": map[string]any{"size": size, "distance": "Cosine"}}
		err := c.call(ctx, http.MethodPut, c.collectionPath(""), create, nil, "create collection")
		if err != nil && !isStatus(err, http.StatusConflict) {
			return err
		}
	default:
		return err
	}
	c.readySize = size
	return nil
}

func (c *Client) collectionPath(suffix string) string {
	return c.baseURL + "/collections/" + url.PathEscape(c.collection) + suffix
}

type statusError struct {
	operation string
	code      int
	body      string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("qdrant %s: %d %s", e.operation, e.code, http.StatusText(e.code))
	}
	return fmt.Sprintf("qdrant %s: %d %s: %s", e.operation, e.code, http.StatusText(e.code), e.body)
}

func isStatus(err error, code int) bool {
	se, ok := err.(*statusError)
	return ok && se.code == code
}

func (c *Client) call(ctx context.Context, method, target string, payload, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal qdrant %s: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build qdrant %s: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrRemoteService, "qdrant "+operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{operation: operation, code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode qdrant %s: %w", operation, err)
	}
	return nil
}
