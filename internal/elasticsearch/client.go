// Package elasticsearch wraps the search engine client and the query and
// filter builders used by indexing and clustering.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/floodwatch/pipeline/internal/config"
	"github.com/floodwatch/pipeline/internal/logging"
)

// Client wraps the Elasticsearch client for the posts index.
type Client struct {
	esClient *es.Client
	config   *config.ElasticsearchConfig
	logger   logging.Logger
}

// NewClient creates a new Elasticsearch client and verifies the connection.
func NewClient(cfg *config.ElasticsearchConfig, logger logging.Logger) (*Client, error) {
	addresses := []string{cfg.URL}
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		addresses = []string{"http://" + cfg.URL}
	}

	clientConfig := es.Config{
		Addresses:  addresses,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.Username != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	esClient, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	client := &Client{
		esClient: esClient,
		config:   cfg,
		logger:   logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping elasticsearch: %w", err)
	}

	return client, nil
}

// Ping verifies the Elasticsearch connection.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.esClient.Ping(c.esClient.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("elasticsearch ping failed: %s", string(body))
	}

	return nil
}

// EnsureIndex creates the posts index with its mapping if it does not
// already exist.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.esClient.Indices.Exists(
		[]string{c.config.Index},
		c.esClient.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("check index existence: %w", err)
	}
	_ = res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(map[string]any{"mappings": IndexMapping()})
	if err != nil {
		return fmt.Errorf("marshal index mapping: %w", err)
	}

	createRes, err := c.esClient.Indices.Create(
		c.config.Index,
		c.esClient.Indices.Create.WithContext(ctx),
		c.esClient.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() {
		_ = createRes.Body.Close()
	}()

	if createRes.IsError() {
		respBody, _ := io.ReadAll(createRes.Body)
		return fmt.Errorf("create index returned error [%d]: %s", createRes.StatusCode, string(respBody))
	}

	c.logger.Info("created posts index", logging.String("index", c.config.Index))
	return nil
}

// Search executes a search query against the posts index.
func (c *Client) Search(ctx context.Context, query map[string]any) (*esapi.Response, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	res, err := c.esClient.Search(
		c.esClient.Search.WithContext(ctx),
		c.esClient.Search.WithIndex(c.config.Index),
		c.esClient.Search.WithBody(bytes.NewReader(body)),
		c.esClient.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	if res.IsError() {
		defer func() {
			_ = res.Body.Close()
		}()
		respBody, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search returned error [%d]: %s", res.StatusCode, string(respBody))
	}

	return res, nil
}

// Index stores one document under the given identifier.
func (c *Client) Index(ctx context.Context, id string, doc map[string]any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	res, err := c.esClient.Index(
		c.config.Index,
		bytes.NewReader(body),
		c.esClient.Index.WithContext(ctx),
		c.esClient.Index.WithDocumentID(id),
	)
	if err != nil {
		return fmt.Errorf("index request failed: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		respBody, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index returned error [%d]: %s", res.StatusCode, string(respBody))
	}

	return nil
}

// UpdateFields applies a partial update to one document. Used to persist
// the representative flag after duplicate detection.
func (c *Client) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	body, err := json.Marshal(map[string]any{"doc": fields})
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	res, err := c.esClient.Update(
		c.config.Index,
		id,
		bytes.NewReader(body),
		c.esClient.Update.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("update request failed: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		respBody, _ := io.ReadAll(res.Body)
		return fmt.Errorf("update returned error [%d]: %s", res.StatusCode, string(respBody))
	}

	return nil
}

// Analyze runs text through the index analyzer for the given language and
// returns the resulting tokens.
func (c *Client) Analyze(ctx context.Context, text, lang string) ([]string, error) {
	body, err := json.Marshal(map[string]any{
		"filter":   []string{"lowercase"},
		"analyzer": AnalyzerFor(lang),
		"text":     text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}

	res, err := c.esClient.Indices.Analyze(
		c.esClient.Indices.Analyze.WithContext(ctx),
		c.esClient.Indices.Analyze.WithIndex(c.config.Index),
		c.esClient.Indices.Analyze.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("analyze request failed: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		respBody, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("analyze returned error [%d]: %s", res.StatusCode, string(respBody))
	}

	var parsed struct {
		Tokens []struct {
			Token string `json:"token"`
		} `json:"tokens"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode analyze response: %w", err)
	}

	tokens := make([]string, 0, len(parsed.Tokens))
	for _, t := range parsed.Tokens {
		tokens = append(tokens, t.Token)
	}
	return tokens, nil
}

// HealthCheck checks Elasticsearch cluster health.
func (c *Client) HealthCheck(ctx context.Context) error {
	res, err := c.esClient.Cluster.Health(
		c.esClient.Cluster.Health.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster unhealthy [%d]: %s", res.StatusCode, string(body))
	}

	return nil
}

// GetConfig returns the Elasticsearch configuration.
func (c *Client) GetConfig() *config.ElasticsearchConfig {
	return c.config
}
