package elasticsearch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodwatch/pipeline/internal/config"
	"github.com/floodwatch/pipeline/internal/domain"
)

func testBuilder() *QueryBuilder {
	cfg := config.Default()
	qb := NewQueryBuilder(&cfg.Elasticsearch)
	qb.now = func() time.Time {
		return time.Date(2018, 6, 27, 15, 4, 5, 0, time.UTC)
	}
	return qb
}

func TestMatch(t *testing.T) {
	qb := testBuilder()

	assert.Equal(t, map[string]any{"match_all": map[string]any{}}, qb.Match(""))
	assert.Equal(t, map[string]any{"match_all": map[string]any{}}, qb.Match("   "))

	match := qb.Match("flood venice")
	multi := match["multi_match"].(map[string]any)
	assert.Equal(t, "flood venice", multi["query"])
	assert.Equal(t, searchFields, multi["fields"])
}

func TestConvertFilters_AlwaysAppliesExistenceFilters(t *testing.T) {
	qb := testBuilder()

	clauses, err := qb.ConvertFilters(nil)

	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"exists": map[string]any{"field": "created_at"}},
		{"exists": map[string]any{"field": "location"}},
	}, clauses)
}

func TestConvertFilters_TermAndRange(t *testing.T) {
	qb := testBuilder()

	clauses, err := qb.ConvertFilters(map[string]any{
		"country":                "Italy",
		"flood_probability__gte": 0.7,
		"unknown_field":          "ignored",
	})

	require.NoError(t, err)
	assert.Contains(t, clauses, map[string]any{
		"term": map[string]any{"country.keyword": "Italy"},
	})
	assert.Contains(t, clauses, map[string]any{
		"range": map[string]any{"flood_probability": map[string]any{"gte": 0.7}},
	})
	for _, clause := range clauses {
		assert.NotContains(t, clause, "unknown_field")
	}
}

func TestConvertFilters_GeoBoundingBox(t *testing.T) {
	qb := testBuilder()

	clauses, err := qb.ConvertFilters(map[string]any{
		"top_left_lat":     45.5,
		"top_left_lon":     12.2,
		"bottom_right_lat": 45.3,
		"bottom_right_lon": 12.4,
	})

	require.NoError(t, err)
	assert.Contains(t, clauses, map[string]any{
		"geo_bounding_box": map[string]any{
			"location": map[string]any{
				"top_left":     map[string]any{"lat": 45.5, "lon": 12.2},
				"bottom_right": map[string]any{"lat": 45.3, "lon": 12.4},
			},
		},
	})
}

func TestConvertFilters_GeoBoxRequiresAllCorners(t *testing.T) {
	qb := testBuilder()

	clauses, err := qb.ConvertFilters(map[string]any{
		"top_left_lat": 45.5,
		"top_left_lon": 12.2,
	})

	require.NoError(t, err)
	for _, clause := range clauses {
		assert.NotContains(t, clause, "geo_bounding_box")
	}
}

func TestConvertFilters_TimeRangeExpression(t *testing.T) {
	qb := testBuilder()

	clauses, err := qb.ConvertFilters(map[string]any{
		"created_at": "2018-06-24|now",
	})

	require.NoError(t, err)
	assert.Contains(t, clauses, map[string]any{
		"range": map[string]any{
			"created_at": map[string]any{
				"gte": "2018-06-24T00:00:00Z",
				"lte": "2018-06-27T15:04:05Z",
			},
		},
	})
}

func TestConvertFilters_InvertedTimeRangeRejected(t *testing.T) {
	qb := testBuilder()

	_, err := qb.ConvertFilters(map[string]any{
		"created_at": "2018-06-24|2018-06-20",
	})

	var malformed *domain.MalformedValueError
	require.ErrorAs(t, err, &malformed)
}

func TestConvertFilters_ExactTimestampExpandsToWindow(t *testing.T) {
	qb := testBuilder()

	clauses, err := qb.ConvertFilters(map[string]any{
		"created_at__exact": "2018-06-24T10:00:00Z",
	})

	require.NoError(t, err)
	assert.Contains(t, clauses, map[string]any{
		"range": map[string]any{
			"created_at": map[string]any{
				"gte": "2018-06-24T10:00:00Z",
				"lte": "2018-06-24T10:01:00Z",
			},
		},
	})
}

func TestConvertFilters_SuffixedTimestampComparison(t *testing.T) {
	qb := testBuilder()

	clauses, err := qb.ConvertFilters(map[string]any{
		"created_at__gte": "2018-06-20T00:00:00Z",
	})

	require.NoError(t, err)
	assert.Contains(t, clauses, map[string]any{
		"range": map[string]any{
			"created_at": map[string]any{
				"gte": "2018-06-20T00:00:00Z",
			},
		},
	})
}

func TestBuild(t *testing.T) {
	qb := testBuilder()

	body, err := qb.Build("flood", map[string]any{"lang": "en"})

	require.NoError(t, err)
	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	assert.Contains(t, boolQuery["must"].(map[string]any), "multi_match")
	assert.Contains(t, boolQuery["filter"].([]map[string]any), map[string]any{
		"term": map[string]any{"lang.keyword": "en"},
	})
	assert.Equal(t, 1000, body["size"])
}

func TestAggregationField(t *testing.T) {
	assert.Equal(t, "country.keyword", AggregationField("country"))
	assert.Equal(t, "created_at", AggregationField("created_at"))
	assert.Equal(t, "location", AggregationField("location"))
	assert.Equal(t, "user_followers_count", AggregationField("user_followers_count"))
}

func TestProject(t *testing.T) {
	doc := map[string]any{
		"text":        "water",
		"lang":        "en",
		"geotags":     "internal scratch value",
		"annotations": map[string]any{"flood_probability": 0.9},
	}

	got := Project(doc)

	assert.Equal(t, map[string]any{"text": "water", "lang": "en"}, got)
}

func TestPaddedBox(t *testing.T) {
	box := domain.BoundingBox{
		TopLeft:     domain.GeoPoint{Lat: 45.0, Lon: 12.0},
		BottomRight: domain.GeoPoint{Lat: 45.0, Lon: 12.0},
	}

	got := PaddedBox(box, 0.001)

	assert.InDelta(t, 45.001, got["top_left_lat"].(float64), 1e-9)
	assert.InDelta(t, 44.999, got["bottom_right_lat"].(float64), 1e-9)
	assert.InDelta(t, 11.999, got["top_left_lon"].(float64), 1e-9)
	assert.InDelta(t, 12.001, got["bottom_right_lon"].(float64), 1e-9)
}
