package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
)

// Hit is one matching document.
type Hit struct {
	ID     string         `json:"_id"`
	Source map[string]any `json:"_source"`
}

// SearchResult is a decoded search response: total hit count, matching
// documents and the raw aggregation tree.
type SearchResult struct {
	Total        int64
	Hits         []Hit
	Aggregations map[string]any
}

// searchResponse mirrors the engine's wire format.
type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []Hit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]any `json:"aggregations"`
}

// SearchDecoded executes a search query and decodes the response.
func (c *Client) SearchDecoded(ctx context.Context, query map[string]any) (*SearchResult, error) {
	res, err := c.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = res.Body.Close()
	}()

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return &SearchResult{
		Total:        parsed.Hits.Total.Value,
		Hits:         parsed.Hits.Hits,
		Aggregations: parsed.Aggregations,
	}, nil
}
