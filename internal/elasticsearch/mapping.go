package elasticsearch

// textKeyword is the mapping shape for free-text fields that also need
// exact-value aggregation via a keyword sub-field.
func textKeyword() map[string]any {
	return map[string]any{
		"type": "text",
		"fields": map[string]any{
			"keyword": map[string]any{
				"type":         "keyword",
				"ignore_above": 256,
			},
		},
	}
}

// IndexMapping returns the canonical document mapping for the posts index.
func IndexMapping() map[string]any {
	return map[string]any{
		"properties": map[string]any{
			"created_at":        map[string]any{"type": "date"},
			"flood_probability": map[string]any{"type": "float"},
			"location":          map[string]any{"type": "geo_point"},
			"representative":    map[string]any{"type": "boolean"},
			"tweetid":           textKeyword(),
			"text":              textKeyword(),
			"lang":              textKeyword(),
			"country":           textKeyword(),
			"place":             textKeyword(),
			"tokens":            textKeyword(),
			"media_urls":        textKeyword(),
			"user_id":           map[string]any{"type": "long"},
			"user_name":         textKeyword(),
			"user_screen_name":  textKeyword(),
			"user_location":     textKeyword(),
			"user_description":  textKeyword(),
			"user_lang":         textKeyword(),
			"user_created_at":   textKeyword(),
			"user_time_zone":    textKeyword(),
			"user_profile_image_url": textKeyword(),
			"user_followers_count":   map[string]any{"type": "long"},
			"user_friends_count":     map[string]any{"type": "long"},
			"user_listed_count":      map[string]any{"type": "long"},
			"user_favourites_count":  map[string]any{"type": "long"},
			"user_statuses_count":    map[string]any{"type": "long"},
			"user_utc_offset":        map[string]any{"type": "long"},
		},
	}
}

// allowedProperties is the set of fields a canonical document may carry.
// The final normalization step projects documents onto this set.
var allowedProperties = buildAllowedProperties()

func buildAllowedProperties() map[string]struct{} {
	props := IndexMapping()["properties"].(map[string]any)
	out := make(map[string]struct{}, len(props))
	for name := range props {
		out[name] = struct{}{}
	}
	return out
}

// AllowedProperty reports whether field belongs to the index schema.
func AllowedProperty(field string) bool {
	_, ok := allowedProperties[field]
	return ok
}

// Project drops every key of doc that is not part of the index schema.
func Project(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for key, val := range doc {
		if AllowedProperty(key) {
			out[key] = val
		}
	}
	return out
}

// freeTextFields are the fields mapped as text with a keyword sub-field.
var freeTextFields = buildFreeTextFields()

func buildFreeTextFields() map[string]struct{} {
	props := IndexMapping()["properties"].(map[string]any)
	out := map[string]struct{}{}
	for name, raw := range props {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if prop["type"] == "text" {
			if _, hasKeyword := prop["fields"]; hasKeyword {
				out[name] = struct{}{}
			}
		}
	}
	return out
}

// AggregationField returns the field name to aggregate on: free-text fields
// are upgraded to their keyword sub-field, everything else aggregates as is.
func AggregationField(field string) string {
	if _, ok := freeTextFields[field]; ok {
		return field + ".keyword"
	}
	return field
}

// analyzers maps supported language codes to the index analyzers used for
// tokenization. Unknown languages fall back to the standard analyzer.
var analyzers = map[string]string{
	"en": "english",
	"es": "spanish",
	"fr": "french",
	"it": "italian",
}

// AnalyzerFor returns the analyzer name for a language code.
func AnalyzerFor(lang string) string {
	if analyzer, ok := analyzers[lang]; ok {
		return analyzer
	}
	return "standard"
}
