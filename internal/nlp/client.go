// Package nlp provides the HTTP client for the entity-tagging sidecar that
// extracts named locations from post text.
package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/floodwatch/pipeline/internal/logging"
)

// Client talks to the entity-tagging service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// Entity is one tagged span of post text.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// NewClient creates an entity-tagging client.
func NewClient(baseURL string, timeout time.Duration, logger logging.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// locationLabels are the entity labels treated as place names. I-LOC is
// the BIO-style spelling some taggers emit for the same concept.
var locationLabels = map[string]struct{}{
	"LOC": {}, "GPE": {}, "FAC": {}, "I-LOC": {},
}

// Locations extracts the named locations mentioned in the text, in
// occurrence order.
func (c *Client) Locations(ctx context.Context, text string) ([]string, error) {
	entities, err := c.entities(ctx, text)
	if err != nil {
		return nil, err
	}

	var locations []string
	for _, e := range entities {
		if _, ok := locationLabels[e.Label]; ok && e.Text != "" {
			locations = append(locations, e.Text)
		}
	}
	return locations, nil
}

func (c *Client) entities(ctx context.Context, text string) ([]Entity, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal entities request: %w", err)
	}

	url := c.baseURL + "/entities"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create entities request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call entity tagger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("entity tagger returned non-OK status",
			logging.Int("status", resp.StatusCode),
			logging.String("body", string(body)))
		return nil, fmt.Errorf("entity tagger returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Entities []Entity `json:"entities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode entities response: %w", err)
	}
	return parsed.Entities, nil
}
