// Package service orchestrates the pipeline: ingestion, cluster building,
// representative selection and archive backfill.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/floodwatch/pipeline/internal/archive"
	"github.com/floodwatch/pipeline/internal/cluster"
	"github.com/floodwatch/pipeline/internal/config"
	"github.com/floodwatch/pipeline/internal/domain"
	"github.com/floodwatch/pipeline/internal/logging"
	"github.com/floodwatch/pipeline/internal/metrics"
)

// Store is the index backend the pipeline reads and writes.
type Store interface {
	cluster.Searcher
	Index(ctx context.Context, id string, doc map[string]any) error
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	HealthCheck(ctx context.Context) error
}

// DocumentNormalizer converts one raw post into a canonical document.
type DocumentNormalizer interface {
	Normalize(ctx context.Context, raw map[string]any) (map[string]any, error)
}

// ArchiveWalker streams archived raw posts.
type ArchiveWalker interface {
	Walk(ctx context.Context, fn func(archive.Post) error) error
}

// clusterer is satisfied by both cluster builders.
type clusterer interface {
	GetClusters(ctx context.Context, normalizeText bool) (*cluster.Result, error)
}

// Pipeline wires the normalizer, the index and the cluster builders into
// the operations exposed by the API, the CLI and the scheduler.
type Pipeline struct {
	store      Store
	normalizer DocumentNormalizer
	arch       ArchiveWalker
	cfg        *config.Config
	metrics    *metrics.Metrics
	logger     logging.Logger

	now func() time.Time
}

// NewPipeline creates the pipeline service.
func NewPipeline(
	store Store,
	normalizer DocumentNormalizer,
	arch ArchiveWalker,
	cfg *config.Config,
	m *metrics.Metrics,
	logger logging.Logger,
) *Pipeline {
	return &Pipeline{
		store:      store,
		normalizer: normalizer,
		arch:       arch,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// ClusterRequest selects and groups documents for a cluster run.
type ClusterRequest struct {
	Terms         []string       `json:"terms"`
	Match         string         `json:"match,omitempty"`
	Filters       map[string]any `json:"filters,omitempty"`
	NormalizeText bool           `json:"normalize_text,omitempty"`
}

// CategorizedCluster is one segment with its documents partitioned into
// representatives and suppressed near-duplicates.
type CategorizedCluster struct {
	Segment domain.Segment         `json:"segment"`
	Docs    domain.CategorizedDocs `json:"docs"`
}

// SweepReport summarizes one representative sweep run.
type SweepReport struct {
	RunID           string    `json:"run_id"`
	Started         time.Time `json:"started"`
	Clusters        int       `json:"clusters"`
	Representatives int       `json:"representatives"`
	Suppressed      int       `json:"suppressed"`
	QueryErrors     int       `json:"query_errors"`
	UpdateErrors    int       `json:"update_errors"`
}

// BackfillReport summarizes one archive backfill run.
type BackfillReport struct {
	Indexed  int            `json:"indexed"`
	Rejected map[string]int `json:"rejected"`
}

// IngestDocument normalizes one raw post and indexes the result. The
// returned id is the post's own identifier when it carries one, otherwise
// a generated one.
func (p *Pipeline) IngestDocument(ctx context.Context, raw map[string]any) (string, error) {
	start := p.now()
	doc, err := p.normalizer.Normalize(ctx, raw)
	if err != nil {
		p.metrics.DocumentsRejected.WithLabelValues(rejectionReason(err)).Inc()
		return "", err
	}
	p.metrics.NormalizeDuration.Observe(p.now().Sub(start).Seconds())

	id, _ := doc[domain.FieldTweetID].(string)
	if id == "" {
		id = uuid.NewString()
	}

	if indexErr := p.store.Index(ctx, id, doc); indexErr != nil {
		return "", fmt.Errorf("index document %s: %w", id, indexErr)
	}

	p.metrics.DocumentsNormalized.Inc()
	return id, nil
}

// GetClusters builds clusters for the request, routing to the geo builder
// when the grouping terms include the geo field.
func (p *Pipeline) GetClusters(ctx context.Context, req *ClusterRequest) (*cluster.Result, error) {
	b, err := p.builderFor(req)
	if err != nil {
		return nil, err
	}

	start := p.now()
	result, err := b.GetClusters(ctx, req.NormalizeText)
	if err != nil {
		return nil, err
	}
	p.metrics.ClusterDuration.Observe(p.now().Sub(start).Seconds())
	p.metrics.SegmentsBuilt.Add(float64(len(result.Clusters)))
	p.metrics.SegmentQueryErrors.Add(float64(len(result.Errors)))
	return result, nil
}

// CategorizeClusters builds clusters and partitions each one into
// representatives and near-duplicates.
func (p *Pipeline) CategorizeClusters(ctx context.Context, req *ClusterRequest) ([]CategorizedCluster, error) {
	req.NormalizeText = true
	result, err := p.GetClusters(ctx, req)
	if err != nil {
		return nil, err
	}

	categorized := make([]CategorizedCluster, 0, len(result.Clusters))
	for _, c := range result.Clusters {
		categorized = append(categorized, CategorizedCluster{
			Segment: c.Segment,
			Docs:    cluster.CategorizeDocs(c.Docs, p.cfg.Cluster.SimilarityThreshold),
		})
	}
	return categorized, nil
}

// RetainRepresentatives sweeps the trailing window: it clusters recent
// documents by the given terms, selects representatives per cluster, and
// writes the representative flag back to the index. Per-document update
// failures are counted, not fatal.
func (p *Pipeline) RetainRepresentatives(ctx context.Context, terms []string, window time.Duration) (*SweepReport, error) {
	report := &SweepReport{
		RunID:   uuid.NewString(),
		Started: p.now().UTC(),
	}

	end := report.Started
	start := end.Add(-window)
	req := &ClusterRequest{
		Terms: terms,
		Filters: map[string]any{
			p.cfg.Elasticsearch.TimestampField: fmt.Sprintf(
				"%s|%s", start.Format(time.RFC3339), end.Format(time.RFC3339)),
		},
		NormalizeText: true,
	}

	result, err := p.GetClusters(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("sweep %s: %w", report.RunID, err)
	}
	report.Clusters = len(result.Clusters)
	report.QueryErrors = len(result.Errors)

	for _, c := range result.Clusters {
		categorized := cluster.CategorizeDocs(c.Docs, p.cfg.Cluster.SimilarityThreshold)
		report.Representatives += len(categorized.RepresentativeDocs)
		report.Suppressed += len(categorized.NonRepresentativeDocs)

		report.UpdateErrors += p.flagDocuments(ctx, categorized.RepresentativeDocs, true)
		report.UpdateErrors += p.flagDocuments(ctx, categorized.NonRepresentativeDocs, false)
	}

	p.metrics.SweepRuns.Inc()
	p.metrics.RepresentativeDocs.Add(float64(report.Representatives))
	p.metrics.SuppressedDocs.Add(float64(report.Suppressed))

	p.logger.Info("Representative sweep completed",
		logging.String("run_id", report.RunID),
		logging.Int("clusters", report.Clusters),
		logging.Int("representatives", report.Representatives),
		logging.Int("suppressed", report.Suppressed),
		logging.Int("update_errors", report.UpdateErrors),
	)
	return report, nil
}

func (p *Pipeline) flagDocuments(ctx context.Context, docs []domain.RankedDoc, representative bool) int {
	failed := 0
	for _, doc := range docs {
		err := p.store.UpdateFields(ctx, doc.ID, map[string]any{
			domain.FieldRepresentative: representative,
		})
		if err != nil {
			failed++
			p.logger.Warn("Failed to update representative flag",
				logging.String("id", doc.ID),
				logging.Bool("representative", representative),
				logging.Error(err),
			)
		}
	}
	return failed
}

// Backfill streams the parquet archive through normalization and indexing.
// Rejected documents are counted by reason and skipped.
func (p *Pipeline) Backfill(ctx context.Context) (*BackfillReport, error) {
	if p.arch == nil {
		return nil, errors.New("no archive configured")
	}

	report := &BackfillReport{Rejected: map[string]int{}}
	err := p.arch.Walk(ctx, func(post archive.Post) error {
		if _, ingestErr := p.IngestDocument(ctx, post.Document); ingestErr != nil {
			report.Rejected[rejectionReason(ingestErr)]++
			return nil
		}
		report.Indexed++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("backfill: %w", err)
	}

	p.logger.Info("Backfill completed",
		logging.Int("indexed", report.Indexed),
		logging.Any("rejected", report.Rejected),
	)
	return report, nil
}

// HealthCheck reports the pipeline's dependency health.
func (p *Pipeline) HealthCheck(ctx context.Context) map[string]string {
	deps := map[string]string{"elasticsearch": "healthy"}
	if err := p.store.HealthCheck(ctx); err != nil {
		deps["elasticsearch"] = "unhealthy: " + err.Error()
	}
	return deps
}

// builderFor routes grouping by the geo field to the geo builder, with
// the remaining terms as secondary grid dimensions.
func (p *Pipeline) builderFor(req *ClusterRequest) (clusterer, error) {
	geoField := p.cfg.Elasticsearch.GeoField

	secondary := make([]string, 0, len(req.Terms))
	hasGeo := false
	for _, term := range req.Terms {
		if term == geoField {
			hasGeo = true
			continue
		}
		secondary = append(secondary, term)
	}

	if hasGeo {
		return cluster.NewGeoBuilder(
			secondary, req.Match, req.Filters,
			p.store, &p.cfg.Elasticsearch, &p.cfg.Cluster, p.logger)
	}
	return cluster.NewBuilder(
		req.Terms, req.Match, req.Filters,
		p.store, &p.cfg.Elasticsearch, &p.cfg.Cluster, p.logger)
}

// rejectionReason buckets normalization failures for counting.
func rejectionReason(err error) string {
	var missing *domain.MissingDataError
	var unsupported *domain.UnsupportedValueError
	var malformed *domain.MalformedValueError

	switch {
	case errors.As(err, &missing):
		return "missing_data"
	case errors.As(err, &unsupported):
		return "unsupported_value"
	case errors.As(err, &malformed):
		return "malformed_value"
	default:
		return "error"
	}
}
