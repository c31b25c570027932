package rawdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_FirstResolvingPathWins(t *testing.T) {
	doc := map[string]any{
		"user": map[string]any{
			"location": "Venice",
		},
		"place": map[string]any{
			"full_name": "Venezia, Italia",
		},
	}

	assert.Equal(t, "Venezia, Italia", Extract(doc, "", "place/full_name", "user/location"))
	assert.Equal(t, "Venice", Extract(doc, "", "place/name", "user/location"))
	assert.Equal(t, "fallback", Extract(doc, "fallback", "place/name", "user/city"))
	assert.Nil(t, Extract(doc, nil, "missing/entirely"))
}

func TestExtract_MissingIntermediateKey(t *testing.T) {
	doc := map[string]any{"a": "scalar"}

	assert.Equal(t, "", Extract(doc, "", "a/b/c"))
}

func TestExtractString_NonStringValue(t *testing.T) {
	doc := map[string]any{"count": float64(3)}

	assert.Equal(t, "none", ExtractString(doc, "none", "count"))
}

func TestCollectHashtags(t *testing.T) {
	doc := map[string]any{
		"text": "#flood!! rising water near #Venice, stay safe",
		"entities": map[string]any{
			"hashtags": []any{
				map[string]any{"text": " alluvione "},
			},
		},
		"extended": map[string]any{
			"tags": []any{
				map[string]any{"hashtags": []any{"acqua", "alta"}},
			},
		},
		"retweet_count": float64(12),
	}

	got := CollectHashtags(doc)

	assert.Equal(t, []string{"Venice", "acqua", "alluvione", "alta", "flood"}, got)
}

func TestCollectHashtags_MalformedShapes(t *testing.T) {
	doc := map[string]any{
		"entities": []any{"plain", float64(7), nil},
		"nested":   map[string]any{"deeper": []any{map[string]any{"other": "x"}}},
	}

	assert.Empty(t, CollectHashtags(doc))
}

func TestCollectMediaURLs(t *testing.T) {
	doc := map[string]any{
		"entities": map[string]any{
			"media": []any{
				map[string]any{
					"media_url":       "http://img.example.com/1.jpg",
					"media_url_https": "https://img.example.com/1.jpg",
				},
			},
		},
		"extended_entities": map[string]any{
			"media": []any{
				map[string]any{"media_url": "http://img.example.com/1.jpg"},
				"not-a-mapping",
			},
		},
	}

	got := CollectMediaURLs(doc)

	assert.Equal(t, []string{
		"http://img.example.com/1.jpg",
		"https://img.example.com/1.jpg",
	}, got)
}

func TestFlatten(t *testing.T) {
	doc := map[string]any{
		"user": map[string]any{
			"name":     "ada",
			"profile":  map[string]any{"lang": "en"},
			"location": "London",
		},
		"location": map[string]any{"lat": 45.4, "lon": 12.3},
		"text":     "hello",
	}

	got := Flatten(doc, "location")

	assert.Equal(t, map[string]any{
		"user_name":         "ada",
		"user_profile_lang": "en",
		"user_location":     "London",
		"location":          map[string]any{"lat": 45.4, "lon": 12.3},
		"text":              "hello",
	}, got)
}

func TestRestructure(t *testing.T) {
	doc := map[string]any{
		"text": "water",
		"user": map[string]any{
			"name":    "ada",
			"private": true,
		},
		"noise": "dropped",
	}

	got := Restructure(doc, []string{"text", "user/name", "user/missing"})

	assert.Equal(t, map[string]any{
		"text": "water",
		"user": map[string]any{"name": "ada"},
	}, got)
}
