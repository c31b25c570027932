package normalizer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodwatch/pipeline/internal/config"
	"github.com/floodwatch/pipeline/internal/domain"
	"github.com/floodwatch/pipeline/internal/geocode"
	"github.com/floodwatch/pipeline/internal/logging"
)

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(_ context.Context, text, _ string) ([]string, error) {
	return strings.Fields(strings.ToLower(text)), nil
}

type fakeGeocoder struct {
	places map[string]domain.GeoPoint
}

func (g fakeGeocoder) Geocode(_ context.Context, place string) (geocode.Result, bool, error) {
	point, ok := g.places[place]
	if !ok {
		return geocode.Result{}, false, nil
	}
	return geocode.Result{Point: point, DisplayName: place}, true, nil
}

type fakeTagger struct {
	locations []string
}

func (t fakeTagger) Locations(context.Context, string) ([]string, error) {
	return t.locations, nil
}

type fakeBorders struct {
	name string
}

func (b fakeBorders) CountryForPoint(domain.GeoPoint) (string, bool) {
	if b.name == "" {
		return "", false
	}
	return b.name, true
}

func newTestNormalizer(tagger EntityTagger, geocoder geocode.Geocoder) *Normalizer {
	cfg := config.Default()
	n := New(&cfg.Normalizer, fakeAnalyzer{}, geocoder, tagger, fakeBorders{name: "Italy"}, logging.NewNop())
	n.detectLang = func(string) string { return "en" }
	n.now = func() time.Time {
		return time.Date(2018, 6, 27, 12, 0, 0, 0, time.UTC)
	}
	return n
}

func rawTweet() map[string]any {
	return map[string]any{
		"id_str":     "1011627006476374016",
		"text":       "#flood water rising near the bridge",
		"lang":       "und",
		"created_at": "2018-06-26T14:30:00Z",
		"annotations": map[string]any{
			"flood_probability": []any{"yes", 0.92},
		},
		"coordinates": map[string]any{
			"coordinates": []any{12.33, 45.44},
		},
		"place": map[string]any{
			"full_name": "Venezia, Italia",
		},
		"user": map[string]any{
			"id":              float64(42),
			"name":            "ada",
			"followers_count": float64(120),
			"private_notes":   "dropped",
		},
	}
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer(fakeTagger{}, fakeGeocoder{})

	doc, err := n.Normalize(context.Background(), rawTweet())

	require.NoError(t, err)
	assert.Equal(t, "1011627006476374016", doc["tweetid"])
	assert.Equal(t, "en", doc["lang"])
	assert.Equal(t, 0.92, doc["flood_probability"])
	assert.Equal(t, "2018-06-26T14:30:00Z", doc["created_at"])
	assert.Equal(t, map[string]any{"lat": 45.44, "lon": 12.33}, doc["location"])
	assert.Equal(t, "Venezia, Italia", doc["place"])
	assert.Equal(t, "Italy", doc["country"])

	assert.Equal(t, "ada", doc["user_name"])
	assert.Equal(t, float64(120), doc["user_followers_count"])
	assert.NotContains(t, doc, "user_private_notes")
	assert.NotContains(t, doc, "annotations")
	assert.NotContains(t, doc, "coordinates")

	tokens := doc["tokens"].([]string)
	assert.Contains(t, tokens, "flood")
	assert.Contains(t, tokens, "water")
	assert.NotContains(t, tokens, "a")
}

func TestNormalize_Idempotent(t *testing.T) {
	n := newTestNormalizer(fakeTagger{}, fakeGeocoder{})
	raw := rawTweet()

	first, err := n.Normalize(context.Background(), raw)
	require.NoError(t, err)

	second, err := n.Normalize(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// The input document is never mutated.
	assert.Equal(t, rawTweet(), raw)
}

func TestNormalize_MissingAnnotations(t *testing.T) {
	n := newTestNormalizer(fakeTagger{}, fakeGeocoder{})
	raw := rawTweet()
	delete(raw, "annotations")

	_, err := n.Normalize(context.Background(), raw)

	var missing *domain.MissingDataError
	require.ErrorAs(t, err, &missing)
}

func TestNormalize_UnsupportedLanguage(t *testing.T) {
	n := newTestNormalizer(fakeTagger{}, fakeGeocoder{})
	n.detectLang = func(string) string { return "tlh" }

	_, err := n.Normalize(context.Background(), rawTweet())

	var unsupported *domain.UnsupportedValueError
	require.ErrorAs(t, err, &unsupported)
}

func TestNormalize_NoGeotag(t *testing.T) {
	n := newTestNormalizer(fakeTagger{}, fakeGeocoder{})
	raw := rawTweet()
	delete(raw, "coordinates")
	delete(raw, "place")
	delete(raw, "user")

	_, err := n.Normalize(context.Background(), raw)

	var missing *domain.MissingDataError
	require.ErrorAs(t, err, &missing)
}

func TestNormalize_SingleTextLocationWins(t *testing.T) {
	n := newTestNormalizer(
		fakeTagger{locations: []string{"Mestre"}},
		fakeGeocoder{places: map[string]domain.GeoPoint{
			"Mestre": {Lat: 45.49, Lon: 12.24},
		}},
	)

	doc, err := n.Normalize(context.Background(), rawTweet())

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lat": 45.49, "lon": 12.24}, doc["location"])
	assert.Equal(t, "Mestre", doc["place"])
}

func TestNormalize_MultipleTextLocationsPickNearest(t *testing.T) {
	// Tweet coordinates sit in Venice; of the two candidates the Venetian
	// one must win over the Parisian one.
	n := newTestNormalizer(
		fakeTagger{locations: []string{"Paris", "Mestre"}},
		fakeGeocoder{places: map[string]domain.GeoPoint{
			"Paris":  {Lat: 48.85, Lon: 2.35},
			"Mestre": {Lat: 45.49, Lon: 12.24},
		}},
	)

	doc, err := n.Normalize(context.Background(), rawTweet())

	require.NoError(t, err)
	assert.Equal(t, "Mestre", doc["place"])
}

func TestNormalize_BoundingBoxCentroid(t *testing.T) {
	n := newTestNormalizer(fakeTagger{}, fakeGeocoder{})
	raw := rawTweet()
	delete(raw, "coordinates")
	raw["place"] = map[string]any{
		"full_name": "Venezia, Italia",
		"bounding_box": map[string]any{
			"coordinates": []any{
				[]any{
					[]any{12.2, 45.4},
					[]any{12.4, 45.4},
					[]any{12.4, 45.5},
					[]any{12.2, 45.5},
				},
			},
		},
	}

	doc, err := n.Normalize(context.Background(), raw)

	require.NoError(t, err)
	location := doc["location"].(map[string]any)
	assert.InDelta(t, 45.45, location["lat"].(float64), 1e-9)
	assert.InDelta(t, 12.3, location["lon"].(float64), 1e-9)
}

func TestNormalize_MalformedTimestamp(t *testing.T) {
	n := newTestNormalizer(fakeTagger{}, fakeGeocoder{})
	raw := rawTweet()
	raw["created_at"] = "not a timestamp"

	_, err := n.Normalize(context.Background(), raw)

	var unsupported *domain.UnsupportedValueError
	require.ErrorAs(t, err, &unsupported)
}

func TestNormalize_EpochMillisFallback(t *testing.T) {
	n := newTestNormalizer(fakeTagger{}, fakeGeocoder{})
	raw := rawTweet()
	delete(raw, "created_at")
	raw["timestamp_ms"] = "1530021600000"

	doc, err := n.Normalize(context.Background(), raw)

	require.NoError(t, err)
	assert.Equal(t, "2018-06-26T14:00:00Z", doc["created_at"])
}

func TestNormalize_NegativeAnnotationLabel(t *testing.T) {
	n := newTestNormalizer(fakeTagger{}, fakeGeocoder{})
	raw := rawTweet()
	raw["annotations"] = map[string]any{
		"flood_probability": []any{"no", 0.92},
	}

	doc, err := n.Normalize(context.Background(), raw)

	require.NoError(t, err)
	assert.Equal(t, 0.0, doc["flood_probability"])
}
