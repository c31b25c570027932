// Package normalizer turns raw ingested posts into canonical documents
// ready for indexing. Normalization is all-or-nothing: a document that
// cannot resolve its language, location or flood probability is rejected
// with a typed error and no partial result.
package normalizer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/floodwatch/pipeline/internal/config"
	"github.com/floodwatch/pipeline/internal/domain"
	"github.com/floodwatch/pipeline/internal/elasticsearch"
	"github.com/floodwatch/pipeline/internal/geo"
	"github.com/floodwatch/pipeline/internal/geocode"
	"github.com/floodwatch/pipeline/internal/langdetect"
	"github.com/floodwatch/pipeline/internal/logging"
	"github.com/floodwatch/pipeline/internal/rawdoc"
	"github.com/floodwatch/pipeline/internal/textproc"
	"github.com/floodwatch/pipeline/internal/timerange"
)

// preservePaths are the raw document paths that survive restructuring.
var preservePaths = []string{
	"tweetid", "text", "lang", "created_at",
	"location", "place", "country", "flood_probability",
	"user/id", "user/name", "user/screen_name", "user/location",
	"user/description", "user/followers_count", "user/friends_count",
	"user/listed_count", "user/favourites_count", "user/statuses_count",
	"user/created_at", "user/utc_offset", "user/time_zone",
	"user/lang", "user/profile_image_url",
}

// excludeFromFlatten keeps these keys nested when the restructured
// document is flattened.
var excludeFromFlatten = []string{"location"}

// Analyzer produces index-analyzer tokens for text in a given language.
type Analyzer interface {
	Analyze(ctx context.Context, text, lang string) ([]string, error)
}

// EntityTagger extracts named locations from post text.
type EntityTagger interface {
	Locations(ctx context.Context, text string) ([]string, error)
}

// CountryResolver resolves a point to a country name.
type CountryResolver interface {
	CountryForPoint(p domain.GeoPoint) (string, bool)
}

// Normalizer converts raw posts into canonical documents.
type Normalizer struct {
	cfg      *config.NormalizerConfig
	analyzer Analyzer
	geocoder geocode.Geocoder
	entities EntityTagger
	borders  CountryResolver
	logger   logging.Logger

	now        func() time.Time
	detectLang func(text string) string
}

// New creates a Normalizer.
func New(
	cfg *config.NormalizerConfig,
	analyzer Analyzer,
	geocoder geocode.Geocoder,
	entities EntityTagger,
	borders CountryResolver,
	logger logging.Logger,
) *Normalizer {
	return &Normalizer{
		cfg:        cfg,
		analyzer:   analyzer,
		geocoder:   geocoder,
		entities:   entities,
		borders:    borders,
		logger:     logger,
		now:        time.Now,
		detectLang: langdetect.DetectISO6391,
	}
}

// candidate is one possible geotag for a post.
type candidate struct {
	place string
	point domain.GeoPoint
}

// Normalize produces one canonical document from one raw post. The raw
// document is not mutated.
func (n *Normalizer) Normalize(ctx context.Context, raw map[string]any) (map[string]any, error) {
	original := deepCopy(raw)

	// Some sources wrap the post under a "tweet" envelope.
	if wrapped, ok := original["tweet"].(map[string]any); ok {
		delete(original, "tweet")
		for k, v := range wrapped {
			original[k] = v
		}
	}

	if _, ok := original["annotations"]; !ok {
		return nil, &domain.MissingDataError{Field: "annotations", Reason: "no annotation block"}
	}

	text, ok := original["text"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return nil, &domain.MissingDataError{Field: "text", Reason: "no post text"}
	}

	normalized := deepCopy(original)
	normalized["tweetid"] = rawdoc.ExtractString(original, "", "id_str", "tweetid")

	lang, err := n.resolveLanguage(text)
	if err != nil {
		return nil, err
	}
	normalized["lang"] = lang

	if err := n.setGeotag(ctx, original, normalized, text); err != nil {
		return nil, err
	}
	n.setCountry(original, normalized)

	prob, err := resolveFloodProbability(original)
	if err != nil {
		return nil, err
	}
	normalized["flood_probability"] = prob

	createdAt, err := n.resolveTimestamp(original)
	if err != nil {
		return nil, err
	}
	normalized["created_at"] = createdAt.Format(time.RFC3339)

	// Collect from the full raw structure before restructuring drops
	// fields.
	hashtags := rawdoc.CollectHashtags(original)
	mediaURLs := rawdoc.CollectMediaURLs(original)

	normalized = rawdoc.Restructure(normalized, preservePaths)
	normalized = rawdoc.Flatten(normalized, excludeFromFlatten...)

	finalText, _ := normalized["text"].(string)
	tokens, err := n.tokenize(ctx, finalText, lang)
	if err != nil {
		return nil, err
	}
	tokens = mergeUnique(tokens, hashtags)

	normalized["tokens"] = tokens
	normalized["media_urls"] = mediaURLs

	return elasticsearch.Project(normalized), nil
}

// resolveLanguage detects the post language, rejecting anything outside
// the supported set. The detected language overrides any declared one.
func (n *Normalizer) resolveLanguage(text string) (string, error) {
	lang := n.detectLang(text)
	for _, supported := range n.cfg.SupportedLanguages {
		if lang == supported {
			return lang, nil
		}
	}
	return "", &domain.UnsupportedValueError{Field: "lang", Value: lang}
}

// setGeotag resolves the post location through an ordered fallback chain:
// text-derived locations, tweet-attached coordinates, geocoded place name,
// user-profile location.
func (n *Normalizer) setGeotag(ctx context.Context, original, normalized map[string]any, text string) error {
	candidates := n.locationsFromText(ctx, text)
	if len(candidates) == 1 {
		applyCandidate(normalized, candidates[0])
		return nil
	}

	anchor, hasAnchor := n.locationFromTweet(ctx, original)
	if !hasAnchor {
		anchor, hasAnchor = n.locationFromUser(ctx, original)
	}

	if len(candidates) == 0 {
		if hasAnchor {
			applyCandidate(normalized, anchor)
			return nil
		}
		return &domain.MissingDataError{Field: "location", Reason: "not enough data for geo-tagging"}
	}

	// Multiple text candidates: disambiguate by distance to the anchor.
	chosen := candidates[0]
	if hasAnchor {
		best := geo.Meters(chosen.point, anchor.point)
		for _, c := range candidates[1:] {
			if d := geo.Meters(c.point, anchor.point); d < best {
				chosen = c
				best = d
			}
		}
	}
	applyCandidate(normalized, chosen)
	return nil
}

func applyCandidate(normalized map[string]any, c candidate) {
	normalized["location"] = c.point.MapValue()
	if c.place != "" {
		normalized["place"] = c.place
	}
}

// locationsFromText geocodes every named location found in the post text.
// Tagging or geocoding failures yield no candidates rather than aborting
// normalization.
func (n *Normalizer) locationsFromText(ctx context.Context, text string) []candidate {
	places, err := n.entities.Locations(ctx, text)
	if err != nil {
		n.logger.Warn("entity tagging failed", logging.Error(err))
		return nil
	}

	var candidates []candidate
	for _, place := range places {
		result, found, err := n.geocoder.Geocode(ctx, place)
		if err != nil {
			n.logger.Warn("geocoding failed",
				logging.String("place", place), logging.Error(err))
			continue
		}
		if found {
			candidates = append(candidates, candidate{place: place, point: result.Point})
		}
	}
	return candidates
}

// locationFromTweet extracts the location attached to the post itself:
// explicit point coordinates, the centroid of a bounding polygon, or the
// geocoded place name.
func (n *Normalizer) locationFromTweet(ctx context.Context, original map[string]any) (candidate, bool) {
	place := placeFromTweet(original)

	// GeoJSON order, coordinates come as [lon, lat].
	if coords, ok := coordPair(rawdoc.Extract(original, nil, "coordinates/coordinates")); ok {
		return candidate{
			place: place,
			point: domain.GeoPoint{Lat: coords[1], Lon: coords[0]},
		}, true
	}

	raw := rawdoc.Extract(original, nil, "place/bounding_box/coordinates", "location/geo/coordinates")
	if coords := coordList(raw); len(coords) > 0 {
		if center, ok := geo.Centroid(coords); ok {
			return candidate{place: place, point: center}, true
		}
	}

	if place == "" {
		return candidate{}, false
	}
	result, found, err := n.geocoder.Geocode(ctx, place)
	if err != nil || !found {
		return candidate{}, false
	}
	return candidate{place: place, point: result.Point}, true
}

// locationFromUser geocodes the user's profile location.
func (n *Normalizer) locationFromUser(ctx context.Context, original map[string]any) (candidate, bool) {
	place := placeFromUser(original)
	if place == "" {
		return candidate{}, false
	}
	result, found, err := n.geocoder.Geocode(ctx, place)
	if err != nil || !found {
		return candidate{}, false
	}
	return candidate{place: place, point: result.Point}, true
}

// setCountry fills country and place. Country comes from point-in-polygon
// lookup unless already present; an explicitly attached place wins on
// conflict.
func (n *Normalizer) setCountry(original, normalized map[string]any) {
	if normalized["country"] == nil {
		if point, ok := pointOf(normalized["location"]); ok {
			if country, found := n.borders.CountryForPoint(point); found {
				normalized["country"] = country
			}
		}
	}

	if normalized["place"] == nil {
		switch place := original["place"].(type) {
		case map[string]any:
			if name, ok := place["name"].(string); ok {
				normalized["place"] = name
			}
			if country, ok := place["country"].(string); ok && country != normalized["country"] {
				normalized["country"] = country
			}
			return
		case string:
			normalized["place"] = strings.TrimSpace(place)
			return
		}
		if place := placeFromUser(original); place != "" {
			normalized["place"] = place
		}
	}
}

// resolveFloodProbability reads the precomputed flood probability from the
// annotation block. Accepted shapes are a plain number or a [label, value]
// pair, where a non-"yes" label means probability 0.
func resolveFloodProbability(original map[string]any) (float64, error) {
	annotations, ok := original["annotations"].(map[string]any)
	if !ok {
		return 0, &domain.MissingDataError{Field: "annotations", Reason: "no annotation block"}
	}
	raw, ok := annotations["flood_probability"]
	if !ok {
		return 0, &domain.MissingDataError{Field: "annotations", Reason: "missing flood_probability"}
	}

	switch v := raw.(type) {
	case float64:
		return v, nil
	case []any:
		if len(v) != 2 {
			return 0, &domain.UnsupportedValueError{
				Field: "flood_probability", Value: fmt.Sprintf("%v", v),
			}
		}
		label, _ := v[0].(string)
		if label != "yes" {
			return 0, nil
		}
		if prob, ok := toFloat(v[1]); ok {
			return prob, nil
		}
	}
	return 0, &domain.UnsupportedValueError{
		Field: "flood_probability", Value: fmt.Sprintf("%v", raw),
	}
}

// resolveTimestamp prefers a declared parseable timestamp, then a
// millisecond epoch field, then the current time. A non-empty declared
// value that does not parse is a hard failure.
func (n *Normalizer) resolveTimestamp(original map[string]any) (time.Time, error) {
	if declared, ok := original["created_at"].(string); ok && strings.TrimSpace(declared) != "" {
		ts, err := timerange.Parse(declared)
		if err != nil {
			return time.Time{}, &domain.UnsupportedValueError{
				Field: "created_at", Value: declared,
			}
		}
		return ts, nil
	}

	if ms, ok := epochMillis(original["timestamp_ms"]); ok {
		return time.UnixMilli(ms).UTC(), nil
	}
	return n.now().UTC(), nil
}

// tokenize cleans the final text, runs it through the language analyzer
// and drops noise tokens.
func (n *Normalizer) tokenize(ctx context.Context, text, lang string) ([]string, error) {
	cleaned := textproc.CleanText(text)
	tokens, err := n.analyzer.Analyze(ctx, cleaned, lang)
	if err != nil {
		return nil, fmt.Errorf("analyze text: %w", err)
	}
	return textproc.FilterTokens(tokens), nil
}

func placeFromTweet(original map[string]any) string {
	return strings.TrimSpace(
		rawdoc.ExtractString(original, "", "place/full_name", "place/name"))
}

func placeFromUser(original map[string]any) string {
	return strings.TrimSpace(rawdoc.ExtractString(
		original, "", "user/location", "user/derived/locations/locality"))
}

func mergeUnique(tokens, extra []string) []string {
	seen := map[string]struct{}{}
	for _, t := range tokens {
		seen[t] = struct{}{}
	}
	for _, t := range extra {
		seen[t] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func deepCopy(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(val any) any {
	switch v := val.(type) {
	case map[string]any:
		return deepCopy(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = deepCopyValue(item)
		}
		return out
	}
	return val
}

func pointOf(val any) (domain.GeoPoint, bool) {
	m, ok := val.(map[string]any)
	if !ok {
		return domain.GeoPoint{}, false
	}
	lat, latOK := toFloat(m["lat"])
	lon, lonOK := toFloat(m["lon"])
	if !latOK || !lonOK {
		return domain.GeoPoint{}, false
	}
	return domain.GeoPoint{Lat: lat, Lon: lon}, true
}

// coordPair converts a raw [lon, lat] value.
func coordPair(val any) ([2]float64, bool) {
	items, ok := val.([]any)
	if !ok || len(items) < 2 {
		return [2]float64{}, false
	}
	lon, lonOK := toFloat(items[0])
	lat, latOK := toFloat(items[1])
	if !lonOK || !latOK {
		return [2]float64{}, false
	}
	return [2]float64{lon, lat}, true
}

// coordList converts a raw polygon coordinate list, unwrapping one ring
// level if present.
func coordList(val any) [][]float64 {
	items, ok := val.([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	// A ring list wraps the coordinate pairs one level deeper.
	if ring, ok := items[0].([]any); ok && len(ring) > 0 {
		if _, isPair := ring[0].([]any); isPair {
			items = ring
		}
	}

	var coords [][]float64
	for _, item := range items {
		pair, ok := item.([]any)
		if !ok || len(pair) < 2 {
			return nil
		}
		lon, lonOK := toFloat(pair[0])
		lat, latOK := toFloat(pair[1])
		if !lonOK || !latOK {
			return nil
		}
		coords = append(coords, []float64{lon, lat})
	}
	return coords
}

func epochMillis(val any) (int64, bool) {
	switch v := val.(type) {
	case string:
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return ms, true
	case float64:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
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
