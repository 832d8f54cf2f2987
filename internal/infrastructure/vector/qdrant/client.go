package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/resilience"
)

const payloadText = "text"

// Client stores each document in its own Qdrant collection.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	guard      *resilience.Guard

	ensureMu sync.Mutex
	ensured  map[string]int
}

func New(baseURL, apiKey string, guard *resilience.Guard) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		guard:      guard,
		ensured:    make(map[string]int),
	}
}

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// PointID maps a clause id to the UUID Qdrant requires. It is stable so that
// re-indexing the same clause overwrites the same point.
func PointID(collection, clauseID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(collection+":"+clauseID)).String()
}

func (c *Client) Upsert(ctx context.Context, collection string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := c.ensureCollection(ctx, collection, len(records[0].Vector)); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(records))
	for _, r := range records {
		payload := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload[payloadText] = r.Document
		if _, ok := payload[domain.MetadataClauseID]; !ok {
			payload[domain.MetadataClauseID] = r.ID
		}
		points = append(points, point{ID: PointID(collection, r.ID), Vector: r.Vector, Payload: payload})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(collection))
	return c.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
}

// Delete removes points by clause id. A missing collection means there is
// nothing to delete and is not an error.
func (c *Client) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, PointID(collection, id))
	}

	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(collection))
	err := c.do(ctx, http.MethodPost, path, map[string]any{"points": pointIDs}, nil, "delete")
	if isNotFound(err) {
		return nil
	}
	return err
}

// DeleteExcept removes every point whose clause id is not in keep, using a
// has_id filter. A missing collection is not an error.
func (c *Client) DeleteExcept(ctx context.Context, collection string, keep []string) error {
	pointIDs := make([]string, 0, len(keep))
	for _, id := range keep {
		pointIDs = append(pointIDs, PointID(collection, id))
	}
	filter := map[string]any{}
	if len(pointIDs) > 0 {
		filter["must_not"] = []any{map[string]any{"has_id": pointIDs}}
	}

	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(collection))
	err := c.do(ctx, http.MethodPost, path, map[string]any{"filter": filter}, nil, "delete")
	if isNotFound(err) {
		return nil
	}
	return err
}

func (c *Client) Query(ctx context.Context, collection string, vector []float32, topK int) ([]domain.EvidenceHit, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(collection))
	if err := c.do(ctx, http.MethodPost, path, reqBody, &searchResp, "search"); err != nil {
		if isNotFound(err) {
			return nil, domain.WrapError(domain.ErrNotIndexed, "qdrant.search", err)
		}
		return nil, err
	}

	out := make([]domain.EvidenceHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		meta := make(map[string]string, len(r.Payload))
		for k := range r.Payload {
			if k == payloadText {
				continue
			}
			meta[k] = getStringPayload(r.Payload, k)
		}
		// Cosine collections report similarity; convert to a distance.
		distance := 1 - r.Score
		out = append(out, domain.EvidenceHit{
			ClauseID: meta[domain.MetadataClauseID],
			Text:     getStringPayload(r.Payload, payloadText),
			Metadata: meta,
			Distance: &distance,
		})
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context, collection string, vectorSize int) error {
	c.ensureMu.Lock()
	if size, ok := c.ensured[collection]; ok && size == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	path := fmt.Sprintf("/collections/%s", url.PathEscape(collection))
	err := c.do(ctx, http.MethodPut, path, reqBody, nil, "ensure collection")

	// 409 when the collection already exists (depends on version/config).
	var statusErr *HTTPStatusError
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		return err
	}

	c.ensureMu.Lock()
	c.ensured[collection] = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	err = c.guard.Execute(ctx, "qdrant."+operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &HTTPStatusError{Operation: operation, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(raw)}
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}, recordsFailure)
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "qdrant."+operation, err)
	}
	return err
}

func recordsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return true
}

func isNotFound(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
