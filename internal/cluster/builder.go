// Package cluster groups indexed posts into segments via nested
// aggregations and detects near-duplicate documents within each segment.
package cluster

import (
	"context"
	"fmt"

	"github.com/floodwatch/pipeline/internal/config"
	"github.com/floodwatch/pipeline/internal/domain"
	"github.com/floodwatch/pipeline/internal/elasticsearch"
	"github.com/floodwatch/pipeline/internal/logging"
	"github.com/floodwatch/pipeline/internal/textproc"
)

// Searcher executes a search body against the posts index.
type Searcher interface {
	SearchDecoded(ctx context.Context, query map[string]any) (*elasticsearch.SearchResult, error)
}

// Doc is one segment member reduced to what text analysis needs.
type Doc struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	Tokens         []string `json:"tokens"`
	NormalizedText string   `json:"normalized_text,omitempty"`
}

// Cluster is a retained segment together with its member documents.
type Cluster struct {
	Segment domain.Segment `json:"segment"`
	Docs    []Doc          `json:"docs"`
}

// QueryError records one failed sub-query. Failures skip their segment
// instead of aborting the run.
type QueryError struct {
	Query map[string]any `json:"query"`
	Error string         `json:"error"`
}

// Result is the terminal output of a cluster run: the retained clusters
// and every error encountered along the way.
type Result struct {
	Clusters []Cluster    `json:"clusters"`
	Errors   []QueryError `json:"errors"`
}

// Builder groups documents by an ordered list of terms. A term equal to
// the timestamp field aggregates as a date histogram; all other terms
// aggregate as exact-value buckets. Grouping by the geo field is a
// programming error here, that is GeoBuilder's job.
type Builder struct {
	terms   []string
	match   string
	filters map[string]any

	searcher Searcher
	qb       *elasticsearch.QueryBuilder
	esCfg    *config.ElasticsearchConfig
	cfg      *config.ClusterConfig
	logger   logging.Logger

	errors []QueryError
}

// NewBuilder creates a cluster builder for the given grouping terms. The
// match term and filters restrict which documents are clustered.
func NewBuilder(
	terms []string,
	match string,
	filters map[string]any,
	searcher Searcher,
	esCfg *config.ElasticsearchConfig,
	cfg *config.ClusterConfig,
	logger logging.Logger,
) (*Builder, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("cluster builder needs at least one grouping term")
	}
	for _, term := range terms {
		if term == esCfg.GeoField {
			return nil, fmt.Errorf(
				"cannot aggregate by %s, use the geo cluster builder for this purpose", esCfg.GeoField)
		}
	}

	return &Builder{
		terms:    terms,
		match:    match,
		filters:  copyFilters(filters),
		searcher: searcher,
		qb:       elasticsearch.NewQueryBuilder(esCfg),
		esCfg:    esCfg,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// GetClusters runs the full pipeline: aggregation query, bucket
// flattening, and per-segment document collection.
func (b *Builder) GetClusters(ctx context.Context, normalizeText bool) (*Result, error) {
	b.errors = nil

	query, err := b.qb.Build(b.match, b.filters)
	if err != nil {
		return nil, err
	}
	for key, val := range b.buildAggregation() {
		query[key] = val
	}

	segments := b.getSegments(ctx, query)
	clusters := b.collectClusters(ctx, segments, normalizeText)

	return &Result{Clusters: clusters, Errors: b.errors}, nil
}

// buildAggregation builds the nested aggregation tree, one level per
// grouping term, in the caller-given term order.
func (b *Builder) buildAggregation() map[string]any {
	aggregations := map[string]any{}
	branch := aggregations
	for _, term := range b.terms {
		name := aggName(term)

		var agg map[string]any
		if term == b.esCfg.TimestampField {
			agg = map[string]any{
				"date_histogram": map[string]any{
					"field":          term,
					"fixed_interval": b.interval(),
				},
			}
		} else {
			agg = map[string]any{
				"terms": map[string]any{
					"field": elasticsearch.AggregationField(term),
				},
			}
		}

		branch["aggregations"] = map[string]any{name: agg}
		branch = agg
	}
	return aggregations
}

func (b *Builder) interval() string {
	if interval, ok := b.filters["interval"].(string); ok && interval != "" {
		return interval
	}
	return b.cfg.Interval
}

// getSegments executes the aggregation query once and flattens the nested
// bucket tree into segments.
func (b *Builder) getSegments(ctx context.Context, query map[string]any) []domain.Segment {
	result := b.search(ctx, query)
	if result == nil {
		return nil
	}

	buckets := bucketsOf(result.Aggregations, aggName(b.terms[0]))
	var segments []domain.Segment
	b.bucketsToSegments(buckets, domain.Segment{}, 0, &segments)
	return segments
}

// bucketsToSegments walks the bucket tree depth-first. The tree depth
// equals the number of grouping terms, so the expected aggregation key at
// each level is known up front and passed down explicitly. A partial
// segment is threaded through the recursion and a copy emitted at each
// leaf bucket that meets the minimum-entries threshold.
func (b *Builder) bucketsToSegments(buckets []any, chunk domain.Segment, level int, out *[]domain.Segment) {
	term := b.terms[level]
	last := level == len(b.terms)-1

	for _, raw := range buckets {
		bucket, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		chunk[term] = bucketKey(bucket)

		if last {
			if docCount(bucket) >= int64(b.cfg.MinEntries) {
				*out = append(*out, chunk.Clone())
			}
			continue
		}
		b.bucketsToSegments(bucketsOf(bucket, aggName(b.terms[level+1])), chunk, level+1, out)
	}
}

// collectClusters re-queries the engine per segment and attaches the
// matching documents. Segments that shrank below the minimum-entries
// threshold between aggregation time and query time are dropped.
func (b *Builder) collectClusters(ctx context.Context, segments []domain.Segment, normalizeText bool) []Cluster {
	var clusters []Cluster
	for _, segment := range segments {
		filters := copyFilters(b.filters)
		for key, val := range segment {
			filters[key] = val
		}

		query, err := b.qb.Build(b.match, filters)
		if err != nil {
			b.errors = append(b.errors, QueryError{Query: filters, Error: err.Error()})
			continue
		}

		// Per-segment failures record the merged filter overlay, the same
		// payload as the build-failure path, so every error in the run
		// identifies its segment the same way.
		result, searchErr := b.searcher.SearchDecoded(ctx, query)
		if searchErr != nil {
			b.logger.Warn("segment query failed", logging.Error(searchErr))
			b.errors = append(b.errors, QueryError{Query: filters, Error: searchErr.Error()})
			continue
		}
		if result.Total < int64(b.cfg.MinEntries) {
			continue
		}

		docs := make([]Doc, 0, len(result.Hits))
		for _, hit := range result.Hits {
			doc := Doc{
				ID:     hit.ID,
				Text:   stringField(hit.Source, "text"),
				Tokens: stringsField(hit.Source, "tokens"),
			}
			if normalizeText {
				doc.NormalizedText = textproc.NormalizeAggressive(doc.Text)
			}
			docs = append(docs, doc)
		}

		clusters = append(clusters, Cluster{Segment: segment, Docs: docs})
	}
	return clusters
}

// search runs one query, recording failures instead of propagating them.
func (b *Builder) search(ctx context.Context, query map[string]any) *elasticsearch.SearchResult {
	result, err := b.searcher.SearchDecoded(ctx, query)
	if err != nil {
		b.logger.Warn("cluster query failed", logging.Error(err))
		b.errors = append(b.errors, QueryError{Query: query, Error: err.Error()})
		return nil
	}
	return result
}

func aggName(term string) string {
	return "agg_" + term
}

// bucketKey prefers the engine's string rendering of a bucket key, which
// keeps date histogram keys re-parseable as timestamps.
func bucketKey(bucket map[string]any) any {
	if s, ok := bucket["key_as_string"].(string); ok {
		return s
	}
	return bucket["key"]
}

func docCount(bucket map[string]any) int64 {
	switch v := bucket["doc_count"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// bucketsOf digs the bucket list out of a named sub-aggregation.
func bucketsOf(node map[string]any, name string) []any {
	agg, ok := node[name].(map[string]any)
	if !ok {
		return nil
	}
	buckets, _ := agg["buckets"].([]any)
	return buckets
}

func copyFilters(filters map[string]any) map[string]any {
	out := make(map[string]any, len(filters))
	for k, v := range filters {
		out[k] = v
	}
	return out
}

func stringField(source map[string]any, field string) string {
	s, _ := source[field].(string)
	return s
}

func stringsField(source map[string]any, field string) []string {
	raw, ok := source[field].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
