package elasticsearch

import (
	"strings"
	"time"

	"github.com/floodwatch/pipeline/internal/config"
	"github.com/floodwatch/pipeline/internal/domain"
	"github.com/floodwatch/pipeline/internal/timerange"
)

// searchFields is the field list used for relevance matching of free-text
// search terms.
var searchFields = []string{"text", "place", "country", "tokens"}

// cornerKeys are the bounding box corner coordinates a geo filter needs.
var cornerKeys = []string{
	"top_left_lat", "top_left_lon", "bottom_right_lat", "bottom_right_lon",
}

// rangeOperators are the comparison operators accepted as "__<op>" key
// suffixes.
var rangeOperators = map[string]struct{}{
	"gte": {}, "lte": {}, "gt": {}, "lt": {},
}

// QueryBuilder builds search bodies from a match term and a flat filter
// mapping.
type QueryBuilder struct {
	config *config.ElasticsearchConfig
	now    func() time.Time
}

// NewQueryBuilder creates a new query builder.
func NewQueryBuilder(cfg *config.ElasticsearchConfig) *QueryBuilder {
	return &QueryBuilder{
		config: cfg,
		now:    time.Now,
	}
}

// Build constructs a complete search body: relevance match plus converted
// filters, capped at the configured result window.
func (qb *QueryBuilder) Build(term string, filters map[string]any) (map[string]any, error) {
	converted, err := qb.ConvertFilters(filters)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must":   qb.Match(term),
				"filter": converted,
			},
		},
		"size": qb.config.MaxResults,
	}, nil
}

// Match converts a search term into its query representation. An empty
// term matches everything.
func (qb *QueryBuilder) Match(term string) map[string]any {
	if strings.TrimSpace(term) == "" {
		return map[string]any{"match_all": map[string]any{}}
	}
	return map[string]any{
		"multi_match": map[string]any{
			"query":  term,
			"fields": searchFields,
		},
	}
}

// ConvertFilters converts a flat filter mapping into filter clauses. Keys
// may carry a "__<op>" operator suffix. Two existence filters are always
// applied: documents must have both a timestamp and a location. Unknown
// fields are ignored.
func (qb *QueryBuilder) ConvertFilters(filters map[string]any) ([]map[string]any, error) {
	clauses := []map[string]any{
		{"exists": map[string]any{"field": qb.config.TimestampField}},
		{"exists": map[string]any{"field": qb.config.GeoField}},
	}

	if box, ok := qb.geoBoundingBox(filters); ok {
		clauses = append(clauses, box)
	}

	tsRange, err := qb.timestampRange(filters)
	if err != nil {
		return nil, err
	}
	if len(tsRange) > 0 {
		clauses = append(clauses, map[string]any{
			"range": map[string]any{qb.config.TimestampField: tsRange},
		})
	}

	for key, val := range filters {
		if strings.Contains(key, qb.config.TimestampField) || isCornerKey(key) {
			continue
		}
		field, op := splitOperator(key)
		if !AllowedProperty(field) {
			continue
		}
		if op == "" || op == "exact" {
			clauses = append(clauses, map[string]any{
				"term": map[string]any{AggregationField(field): val},
			})
			continue
		}
		if _, ok := rangeOperators[op]; ok {
			clauses = append(clauses, map[string]any{
				"range": map[string]any{field: map[string]any{op: val}},
			})
		}
	}

	return clauses, nil
}

// geoBoundingBox builds a rectangular geo filter. It only activates when
// all four corner coordinates are present.
func (qb *QueryBuilder) geoBoundingBox(filters map[string]any) (map[string]any, bool) {
	corners := map[string]float64{}
	for _, key := range cornerKeys {
		val, ok := toFloat(filters[key])
		if !ok {
			return nil, false
		}
		corners[key] = val
	}

	return map[string]any{
		"geo_bounding_box": map[string]any{
			qb.config.GeoField: map[string]any{
				"top_left": map[string]any{
					"lat": corners["top_left_lat"],
					"lon": corners["top_left_lon"],
				},
				"bottom_right": map[string]any{
					"lat": corners["bottom_right_lat"],
					"lon": corners["bottom_right_lon"],
				},
			},
		},
	}, true
}

// timestampRange resolves every timestamp-related filter key into a single
// range body over the timestamp field.
func (qb *QueryBuilder) timestampRange(filters map[string]any) (map[string]any, error) {
	tsField := qb.config.TimestampField
	out := map[string]any{}

	for key, val := range filters {
		if !strings.Contains(key, tsField) {
			continue
		}
		str, ok := val.(string)
		if !ok {
			continue
		}

		field, op := splitOperator(key)
		if field != tsField {
			continue
		}

		switch op {
		case "exact":
			ts, err := timerange.Parse(str)
			if err != nil {
				return nil, err
			}
			setExactWindow(out, ts)
		case "":
			// A parseable timestamp means an exact match expanded to a
			// one-minute window; anything else is a range expression.
			if ts, err := timerange.Parse(str); err == nil {
				setExactWindow(out, ts)
				continue
			}
			from, to, err := timerange.Convert(str, qb.now())
			if err != nil {
				return nil, err
			}
			out["gte"] = from.Format(time.RFC3339)
			out["lte"] = to.Format(time.RFC3339)
		default:
			if _, ok := rangeOperators[op]; !ok {
				continue
			}
			ts, err := timerange.Parse(str)
			if err != nil {
				return nil, err
			}
			out[op] = ts.Format(time.RFC3339)
		}
	}

	return out, nil
}

func setExactWindow(out map[string]any, ts time.Time) {
	out["gte"] = ts.Format(time.RFC3339)
	out["lte"] = ts.Add(time.Minute).Format(time.RFC3339)
}

// splitOperator splits a "field__op" filter key.
func splitOperator(key string) (field, op string) {
	if idx := strings.Index(key, "__"); idx >= 0 {
		return key[:idx], key[idx+2:]
	}
	return key, ""
}

func isCornerKey(key string) bool {
	for _, c := range cornerKeys {
		if key == c {
			return true
		}
	}
	return false
}

func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// PaddedBox converts a bounding box into the flat corner-key filter form,
// padding degenerate boxes so they always enclose a non-zero area.
func PaddedBox(box domain.BoundingBox, eps float64) map[string]any {
	padded := box
	if padded.Degenerate() {
		padded = padded.Pad(eps)
	}
	return map[string]any{
		"top_left_lat":     padded.TopLeft.Lat,
		"top_left_lon":     padded.TopLeft.Lon,
		"bottom_right_lat": padded.BottomRight.Lat,
		"bottom_right_lon": padded.BottomRight.Lon,
	}
}
