package cluster

import (
	"context"
	"fmt"

	"github.com/floodwatch/pipeline/internal/config"
	"github.com/floodwatch/pipeline/internal/domain"
	"github.com/floodwatch/pipeline/internal/elasticsearch"
	"github.com/floodwatch/pipeline/internal/geo"
	"github.com/floodwatch/pipeline/internal/logging"
)

const geoSegmentsAgg = "segments"

// GeoBuilder groups documents by a geohash grid at a configurable
// precision, nesting one terms aggregation per secondary grouping term
// inside each grid cell. Each retained segment is the combination of one
// cell's bounding box with one passing secondary-term bucket.
type GeoBuilder struct {
	*Builder
	precision int
}

// NewGeoBuilder creates a geo cluster builder. Terms are the secondary
// grouping terms applied within each grid cell.
func NewGeoBuilder(
	terms []string,
	match string,
	filters map[string]any,
	searcher Searcher,
	esCfg *config.ElasticsearchConfig,
	cfg *config.ClusterConfig,
	logger logging.Logger,
) (*GeoBuilder, error) {
	for _, term := range terms {
		if term == esCfg.GeoField {
			return nil, fmt.Errorf("%s is already the grid dimension, it cannot be a secondary term", esCfg.GeoField)
		}
	}

	retained := copyFilters(filters)
	precision := cfg.Precision
	// JSON request bodies deliver numbers as float64.
	if p, ok := intValue(retained["precision"]); ok && p > 0 {
		precision = p
	}
	delete(retained, "precision")

	return &GeoBuilder{
		Builder: &Builder{
			terms:    terms,
			match:    match,
			filters:  retained,
			searcher: searcher,
			qb:       elasticsearch.NewQueryBuilder(esCfg),
			esCfg:    esCfg,
			cfg:      cfg,
			logger:   logger,
		},
		precision: precision,
	}, nil
}

// GetClusters runs the geo pipeline: grid aggregation, cell-by-term
// flattening, and per-segment document collection.
func (b *GeoBuilder) GetClusters(ctx context.Context, normalizeText bool) (*Result, error) {
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

// buildAggregation nests each cell's bounding box plus one terms
// aggregation per secondary term inside the geohash grid.
func (b *GeoBuilder) buildAggregation() map[string]any {
	subAggs := map[string]any{
		"cell": map[string]any{
			"geo_bounds": map[string]any{
				"field": b.esCfg.GeoField,
			},
		},
	}
	for _, term := range b.terms {
		subAggs["doc_count_"+term] = map[string]any{
			"terms": map[string]any{
				"field": elasticsearch.AggregationField(term),
			},
		}
	}

	return map[string]any{
		"aggregations": map[string]any{
			geoSegmentsAgg: map[string]any{
				"geohash_grid": map[string]any{
					"field":     b.esCfg.GeoField,
					"precision": b.precision,
				},
				"aggs": subAggs,
			},
		},
	}
}

func (b *GeoBuilder) getSegments(ctx context.Context, query map[string]any) []domain.Segment {
	result := b.search(ctx, query)
	if result == nil {
		return nil
	}
	return b.bucketsToSegments(bucketsOf(result.Aggregations, geoSegmentsAgg))
}

// bucketsToSegments emits the cross-product of each grid cell with every
// secondary-term bucket that meets the minimum-entries threshold. The
// cell's bounding box becomes four flat corner keys, padded when the cell
// collapses to a point or a line.
func (b *GeoBuilder) bucketsToSegments(buckets []any) []domain.Segment {
	var segments []domain.Segment
	for _, raw := range buckets {
		bucket, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		box, ok := cellBox(bucket)
		if !ok {
			continue
		}
		corners := elasticsearch.PaddedBox(box, b.cfg.CellPaddingDeg)

		for _, term := range b.terms {
			for _, sub := range bucketsOf(bucket, "doc_count_"+term) {
				subBucket, ok := sub.(map[string]any)
				if !ok {
					continue
				}
				if docCount(subBucket) < int64(b.cfg.MinEntries) {
					continue
				}

				segment := domain.Segment{}
				for key, val := range corners {
					segment[key] = val
				}
				segment[term] = bucketKey(subBucket)
				segments = append(segments, segment)
			}
		}
	}
	return segments
}

// cellBox reads the cell's computed bounds, falling back to the geometric
// bounds of the geohash itself when the sub-aggregation is missing.
func cellBox(bucket map[string]any) (domain.BoundingBox, bool) {
	cell, ok := bucket["cell"].(map[string]any)
	if ok {
		if bounds, ok := cell["bounds"].(map[string]any); ok {
			topLeft, tlOK := cornerOf(bounds, "top_left")
			bottomRight, brOK := cornerOf(bounds, "bottom_right")
			if tlOK && brOK {
				return domain.BoundingBox{TopLeft: topLeft, BottomRight: bottomRight}, true
			}
		}
	}

	if hash, ok := bucket["key"].(string); ok && hash != "" {
		return geo.CellBounds(hash), true
	}
	return domain.BoundingBox{}, false
}

func intValue(val any) (int, bool) {
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func cornerOf(bounds map[string]any, key string) (domain.GeoPoint, bool) {
	corner, ok := bounds[key].(map[string]any)
	if !ok {
		return domain.GeoPoint{}, false
	}
	lat, latOK := corner["lat"].(float64)
	lon, lonOK := corner["lon"].(float64)
	if !latOK || !lonOK {
		return domain.GeoPoint{}, false
	}
	return domain.GeoPoint{Lat: lat, Lon: lon}, true
}
