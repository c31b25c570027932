package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodwatch/pipeline/internal/elasticsearch"
	"github.com/floodwatch/pipeline/internal/logging"
)

func geoAggResult() *elasticsearch.SearchResult {
	return &elasticsearch.SearchResult{
		Aggregations: map[string]any{
			"segments": map[string]any{
				"buckets": []any{
					map[string]any{
						"key":       "sr2y",
						"doc_count": float64(9),
						"cell": map[string]any{
							"bounds": map[string]any{
								"top_left":     map[string]any{"lat": 45.5, "lon": 12.2},
								"bottom_right": map[string]any{"lat": 45.3, "lon": 12.4},
							},
						},
						"doc_count_lang": map[string]any{
							"buckets": []any{
								map[string]any{"key": "en", "doc_count": float64(5)},
								map[string]any{"key": "it", "doc_count": float64(1)},
							},
						},
						"doc_count_country": map[string]any{
							"buckets": []any{
								map[string]any{"key": "Italy", "doc_count": float64(6)},
							},
						},
					},
				},
			},
		},
	}
}

func TestGeoBuilder_RejectsGeoFieldAsSecondaryTerm(t *testing.T) {
	esCfg, cCfg := testConfigs()

	_, err := NewGeoBuilder([]string{"location"}, "", nil, &fakeSearcher{}, esCfg, cCfg, logging.NewNop())

	assert.Error(t, err)
}

func TestGeoBuilder_SegmentCrossProduct(t *testing.T) {
	esCfg, cCfg := testConfigs()
	searcher := &fakeSearcher{
		responses: []*elasticsearch.SearchResult{
			geoAggResult(),
			hitsResult(5, "100", "101", "102", "103", "104"),
			hitsResult(6, "100", "101", "102", "103", "104", "105"),
		},
	}

	b, err := NewGeoBuilder([]string{"lang", "country"}, "", nil, searcher, esCfg, cCfg, logging.NewNop())
	require.NoError(t, err)

	result, err := b.GetClusters(context.Background(), true)

	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	// One cell crossed with the passing buckets: "en" (5 docs) and
	// "Italy" (6 docs). The "it" bucket fails the threshold.
	require.Len(t, result.Clusters, 2)

	first := result.Clusters[0].Segment
	assert.Equal(t, "en", first["lang"])
	assert.Equal(t, 45.5, first["top_left_lat"])
	assert.Equal(t, 12.2, first["top_left_lon"])
	assert.Equal(t, 45.3, first["bottom_right_lat"])
	assert.Equal(t, 12.4, first["bottom_right_lon"])

	second := result.Clusters[1].Segment
	assert.Equal(t, "Italy", second["country"])
	assert.NotContains(t, second, "lang")
}

func TestGeoBuilder_PadsDegenerateCell(t *testing.T) {
	esCfg, cCfg := testConfigs()
	agg := geoAggResult()
	bucket := agg.Aggregations["segments"].(map[string]any)["buckets"].([]any)[0].(map[string]any)
	bucket["cell"] = map[string]any{
		"bounds": map[string]any{
			"top_left":     map[string]any{"lat": 45.4, "lon": 12.3},
			"bottom_right": map[string]any{"lat": 45.4, "lon": 12.3},
		},
	}

	searcher := &fakeSearcher{
		responses: []*elasticsearch.SearchResult{
			agg,
			hitsResult(5, "100", "101", "102", "103", "104"),
			hitsResult(6, "100", "101", "102", "103", "104", "105"),
		},
	}

	b, err := NewGeoBuilder([]string{"lang", "country"}, "", nil, searcher, esCfg, cCfg, logging.NewNop())
	require.NoError(t, err)

	result, err := b.GetClusters(context.Background(), false)

	require.NoError(t, err)
	require.NotEmpty(t, result.Clusters)
	segment := result.Clusters[0].Segment
	assert.Greater(t, segment["top_left_lat"].(float64), segment["bottom_right_lat"].(float64))
	assert.Less(t, segment["top_left_lon"].(float64), segment["bottom_right_lon"].(float64))
}

func TestGeoBuilder_PrecisionOverrideFromRequest(t *testing.T) {
	esCfg, cCfg := testConfigs()
	searcher := &fakeSearcher{
		responses: []*elasticsearch.SearchResult{{Aggregations: map[string]any{}}},
	}

	// Request bodies arrive JSON-decoded, so the number is a float64.
	b, err := NewGeoBuilder(
		[]string{"lang"}, "", map[string]any{"precision": float64(6)},
		searcher, esCfg, cCfg, logging.NewNop())
	require.NoError(t, err)
	assert.NotContains(t, b.filters, "precision")

	_, err = b.GetClusters(context.Background(), false)
	require.NoError(t, err)

	grid := searcher.queries[0]["aggregations"].(map[string]any)["segments"].(map[string]any)["geohash_grid"].(map[string]any)
	assert.Equal(t, 6, grid["precision"])
}

func TestGeoBuilder_AggregationShape(t *testing.T) {
	esCfg, cCfg := testConfigs()
	searcher := &fakeSearcher{
		responses: []*elasticsearch.SearchResult{{Aggregations: map[string]any{}}},
	}

	b, err := NewGeoBuilder([]string{"lang"}, "", nil, searcher, esCfg, cCfg, logging.NewNop())
	require.NoError(t, err)

	_, err = b.GetClusters(context.Background(), false)
	require.NoError(t, err)

	query := searcher.queries[0]
	segmentsAgg := query["aggregations"].(map[string]any)["segments"].(map[string]any)
	grid := segmentsAgg["geohash_grid"].(map[string]any)
	assert.Equal(t, "location", grid["field"])
	assert.Equal(t, 5, grid["precision"])

	subAggs := segmentsAgg["aggs"].(map[string]any)
	assert.Contains(t, subAggs, "cell")
	langAgg := subAggs["doc_count_lang"].(map[string]any)["terms"].(map[string]any)
	assert.Equal(t, "lang.keyword", langAgg["field"])
}
