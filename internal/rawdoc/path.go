// Package rawdoc provides helpers for working with the arbitrarily nested
// mappings that ingested posts arrive as: path extraction with fallbacks,
// recursive collection of hashtags and media URLs, and flattening into the
// canonical shape.
package rawdoc

// Extract walks doc along each slash-delimited path in turn and returns the
// value at the first path that resolves. Missing intermediate keys never
// raise; if no path resolves, def is returned.
func Extract(doc map[string]any, def any, paths ...string) any {
	for _, path := range paths {
		if val, ok := lookup(doc, path); ok {
			return val
		}
	}
	return def
}

// ExtractString is Extract for callers that expect a string value. Values
// of any other type resolve to def.
func ExtractString(doc map[string]any, def string, paths ...string) string {
	for _, path := range paths {
		if val, ok := lookup(doc, path); ok {
			if s, ok := val.(string); ok {
				return s
			}
		}
	}
	return def
}

func lookup(doc map[string]any, path string) (any, bool) {
	cur := any(doc)
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '/' {
			continue
		}
		key := path[start:i]
		start = i + 1
		if key == "" {
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
