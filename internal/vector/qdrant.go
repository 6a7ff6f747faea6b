// File path: internal/vector/qdrant.go
package vector

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common/telemetry"
)

// ErrUnavailable marks any failure to reach or query the vector index. The
// retrieval orchestrator recovers from it by routing to the in-memory
// fallback; it is never surfaced past that boundary.
var ErrUnavailable = errors.New("vector index unavailable")

// Store is the contract over the remote similarity index.
type Store interface {
	Available() bool
	Collection() string
	EnsureCollection(ctx context.Context, dim int) error
	UpsertPoints(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, limit int, filter Filter) ([]SearchResult, error)
	Scroll(ctx context.Context, filter Filter, limit int) ([]SearchResult, error)
}

// Point is one upsert unit. ID is the document id; the client derives the
// index-native point id from it deterministically so re-upserting the same
// document overwrites instead of duplicating.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
}

// SearchResult is a raw index hit. Score is a cosine similarity for ranked
// searches and absent (zero) for scroll listings.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]interface{}
}

// Filter restricts matches to exact metadata values. Zero fields are
// ignored; set fields are AND-combined.
type Filter struct {
	Department string
	Kind       string
}

// IsZero reports whether the filter carries no conditions.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Department) == "" && strings.TrimSpace(f.Kind) == ""
}

func (f Filter) conditions() []map[string]interface{} {
	var must []map[string]interface{}
	if department := strings.TrimSpace(f.Department); department != "" {
		must = append(must, map[string]interface{}{
			"key":   "department",
			"match": map[string]interface{}{"value": department},
		})
	}
	if kind := strings.TrimSpace(f.Kind); kind != "" {
		must = append(must, map[string]interface{}{
			"key":   "type",
			"match": map[string]interface{}{"value": kind},
		})
	}
	return must
}

// Client speaks the Qdrant REST dialect.
type Client struct {
	httpClient *http.Client
	transport  *http.Transport

	baseURL    string
	collection string
	apiKey     string
	available  bool

	cfg Config

	mu sync.RWMutex
}

func NewFromEnv(ctx context.Context) (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// New constructs a client using the provided configuration. An unreachable
// index is not fatal: the client comes up unavailable and callers degrade.
func New(ctx context.Context, cfg Config) (*Client, error) {
	logger := common.Logger()
	logger.Info(
		"vector: initializing qdrant client",
		"url", cfg.URL,
		"collection", cfg.Collection,
		"timeout", cfg.Timeout,
	)

	transport := &http.Transport{
		MaxIdleConns:        cfg.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: cfg.HTTPMaxIdlePerHost,
		IdleConnTimeout:     cfg.HTTPIdleConnTimeout,
	}
	client := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		transport:  transport,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		collection: cfg.Collection,
		apiKey:     cfg.APIKey,
		cfg:        cfg,
	}

	if err := client.ensureReady(ctx); err != nil {
		logger.Warn("vector: qdrant initialization failed", "collection", cfg.Collection, "error", err)
		return client, nil
	}
	logger.Info("vector: qdrant connection established")
	return client, nil
}

func (c *Client) Available() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

func (c *Client) Collection() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection
}

func (c *Client) setAvailable(available bool) {
	c.mu.Lock()
	c.available = available
	c.mu.Unlock()
}

func (c *Client) ensureReady(ctx context.Context) error {
	if c == nil {
		return errors.New("qdrant client not configured")
	}
	if c.Available() {
		return nil
	}
	const maxAttempts = 3
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = c.health(ctx)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			c.setAvailable(false)
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 250 * time.Millisecond):
		}
	}
	if err != nil {
		c.setAvailable(false)
		return err
	}
	c.setAvailable(true)
	return nil
}

// EnsureCollection creates the collection with the given dimension and
// cosine distance when it does not exist yet. The call is idempotent.
func (c *Client) EnsureCollection(ctx context.Context, dim int) error {
	if err := c.ensureReady(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if dim <= 0 {
		return errors.New("invalid vector dimension")
	}
	endpoint := fmt.Sprintf("%s/collections/%s", c.baseURL, url.PathEscape(c.Collection()))
	err := c.doRequest(ctx, http.MethodGet, endpoint, nil, nil)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errNotFound) {
		c.setAvailable(false)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	payload := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := c.doRequest(ctx, http.MethodPut, endpoint, payload, nil); err != nil {
		if errors.Is(err, errConflict) {
			return nil
		}
		c.setAvailable(false)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	common.Logger().Info("vector: collection created", "collection", c.Collection(), "dim", dim)
	return nil
}

// UpsertPoints writes points in batches, overwriting by derived point id.
func (c *Client) UpsertPoints(ctx context.Context, points []Point) error {
	if err := c.ensureReady(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(points) == 0 {
		return nil
	}
	batchSize := c.cfg.UpsertBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	endpoint := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, url.PathEscape(c.Collection()))
	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}
		batch := make([]map[string]interface{}, 0, end-start)
		for _, point := range points[start:end] {
			payload := point.Payload
			if payload == nil {
				payload = map[string]interface{}{}
			}
			payload["id"] = point.ID
			batch = append(batch, map[string]interface{}{
				"id":      pointID(point.ID),
				"vector":  point.Vector,
				"payload": payload,
			})
		}
		body := map[string]interface{}{"points": batch}
		if err := c.doRequest(ctx, http.MethodPut, endpoint, body, nil); err != nil {
			c.setAvailable(false)
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		telemetry.RecordIngestBatch("vector", end-start)
	}
	return nil
}

// Search returns up to limit nearest neighbors by cosine similarity,
// optionally pre-filtered by exact-match payload conditions.
func (c *Client) Search(ctx context.Context, vector []float32, limit int, filter Filter) ([]SearchResult, error) {
	if err := c.ensureReady(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if limit <= 0 {
		limit = 10
	}
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if must := filter.conditions(); len(must) > 0 {
		body["filter"] = map[string]interface{}{"must": must}
	}
	endpoint := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, url.PathEscape(c.Collection()))
	var resp struct {
		Result []struct {
			ID      interface{}            `json:"id"`
			Score   float32                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	start := time.Now()
	if err := c.doRequest(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		telemetry.RecordVectorSearch(true, time.Since(start))
		c.setAvailable(false)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	telemetry.RecordVectorSearch(false, time.Since(start))
	results := make([]SearchResult, 0, len(resp.Result))
	for _, hit := range resp.Result {
		results = append(results, SearchResult{
			ID:      resolveID(hit.ID, hit.Payload),
			Score:   hit.Score,
			Payload: hit.Payload,
		})
	}
	return results, nil
}

// Scroll lists up to limit points matching the filter with no ranking.
func (c *Client) Scroll(ctx context.Context, filter Filter, limit int) ([]SearchResult, error) {
	if err := c.ensureReady(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if limit <= 0 {
		limit = 100
	}
	body := map[string]interface{}{
		"limit":        limit,
		"with_payload": true,
	}
	if must := filter.conditions(); len(must) > 0 {
		body["filter"] = map[string]interface{}{"must": must}
	}
	endpoint := fmt.Sprintf("%s/collections/%s/points/scroll", c.baseURL, url.PathEscape(c.Collection()))
	var resp struct {
		Result struct {
			Points []struct {
				ID      interface{}            `json:"id"`
				Payload map[string]interface{} `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := c.doRequest(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		c.setAvailable(false)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	results := make([]SearchResult, 0, len(resp.Result.Points))
	for _, pt := range resp.Result.Points {
		results = append(results, SearchResult{
			ID:      resolveID(pt.ID, pt.Payload),
			Payload: pt.Payload,
		})
	}
	return results, nil
}

var _ Store = (*Client)(nil)

var (
	errNotFound = errors.New("resource not found")
	errConflict = errors.New("resource conflict")
)

func (c *Client) health(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/healthz", c.baseURL)
	return c.doRequest(ctx, http.MethodGet, endpoint, nil, nil)
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	if c == nil {
		return errors.New("qdrant client not configured")
	}
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode == http.StatusConflict {
		return errConflict
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant %s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Close releases pooled transport resources.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}

// pointID maps a document id onto a stable UUID-shaped index id. The index
// only accepts UUIDs or integers as point ids; deriving the UUID from the
// document id keeps re-ingestion overwrite-by-id.
func pointID(docID string) string {
	sum := md5.Sum([]byte(docID))
	return fmt.Sprintf("%x-%x-%x-%x-%x", sum[0:4], sum[4:6], sum[6:8], sum[8:10], sum[10:16])
}

// resolveID prefers the document id recorded in the payload over the
// index-native point id.
func resolveID(raw interface{}, payload map[string]interface{}) string {
	if payload != nil {
		if id, ok := payload["id"].(string); ok && id != "" {
			return id
		}
	}
	return fmt.Sprint(raw)
}
