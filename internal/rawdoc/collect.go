package rawdoc

import (
	"sort"
	"strings"
)

const maxHashtagLen = 256

// hashtagTrimSet matches the punctuation stripped off collected hashtags.
const hashtagTrimSet = "#.,-\"'&*^!"

// CollectHashtags walks every value of the nested mapping and gathers
// hashtags from string values (whitespace-split tokens starting with '#')
// and from entity lists carrying "hashtags" or "text" members. Unrecognized
// shapes contribute nothing. The result is deduplicated and sorted.
func CollectHashtags(doc map[string]any) []string {
	seen := map[string]struct{}{}
	walk(doc, func(val any) {
		for _, tag := range extractHashtags(val) {
			if tag != "" {
				seen[tag] = struct{}{}
			}
		}
	})
	return sortedKeys(seen)
}

// CollectMediaURLs walks every value of the nested mapping and gathers
// media URLs from list items carrying "media_url" or "media_url_https"
// keys. The result is deduplicated and sorted.
func CollectMediaURLs(doc map[string]any) []string {
	seen := map[string]struct{}{}
	walk(doc, func(val any) {
		items, ok := val.([]any)
		if !ok {
			return
		}
		for _, item := range items {
			entity, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if u, ok := entity["media_url"].(string); ok {
				seen[u] = struct{}{}
			}
			if u, ok := entity["media_url_https"].(string); ok {
				seen[u] = struct{}{}
			}
		}
	})
	return sortedKeys(seen)
}

// walk visits every non-mapping value of the tree in depth-first order.
// Dispatch is a plain type switch over the three shapes JSON decoding can
// produce: mapping, list, scalar.
func walk(node any, visit func(any)) {
	switch v := node.(type) {
	case map[string]any:
		for _, val := range v {
			if _, ok := val.(map[string]any); ok {
				walk(val, visit)
				continue
			}
			visit(val)
		}
	default:
		visit(node)
	}
}

func extractHashtags(val any) []string {
	switch v := val.(type) {
	case string:
		var tags []string
		for _, tok := range strings.Fields(v) {
			if strings.HasPrefix(tok, "#") && len(tok) < maxHashtagLen {
				tags = append(tags, strings.Trim(tok, hashtagTrimSet))
			}
		}
		return tags
	case []any:
		var tags []string
		for _, item := range v {
			entity, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if raw, ok := entity["hashtags"].([]any); ok {
				for _, t := range raw {
					if s, ok := t.(string); ok {
						tags = append(tags, s)
					}
				}
				continue
			}
			if s, ok := entity["text"].(string); ok {
				tags = append(tags, strings.TrimSpace(s))
			}
		}
		return tags
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
