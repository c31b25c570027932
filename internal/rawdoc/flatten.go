package rawdoc

// Flatten collapses nested mappings into a single level, joining keys with
// underscores. Keys listed in exclude keep their nested value as is.
func Flatten(doc map[string]any, exclude ...string) map[string]any {
	skip := map[string]struct{}{}
	for _, k := range exclude {
		skip[k] = struct{}{}
	}
	out := map[string]any{}
	flattenInto(doc, "", skip, out)
	return out
}

func flattenInto(doc map[string]any, prefix string, skip map[string]struct{}, out map[string]any) {
	for key, val := range doc {
		newKey := key
		if prefix != "" {
			newKey = prefix + "_" + key
		}
		if _, excluded := skip[key]; excluded {
			out[newKey] = val
			continue
		}
		if nested, ok := val.(map[string]any); ok {
			flattenInto(nested, newKey, skip, out)
			continue
		}
		out[newKey] = val
	}
}

// Restructure keeps only the values reachable at the given slash-delimited
// paths, rebuilding them as a nested mapping. Paths that do not resolve are
// dropped silently.
func Restructure(doc map[string]any, paths []string) map[string]any {
	out := map[string]any{}
	for _, path := range paths {
		val, ok := lookup(doc, path)
		if !ok {
			continue
		}
		insert(out, path, val)
	}
	return out
}

func insert(doc map[string]any, path string, val any) {
	cur := doc
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] != '/' {
			continue
		}
		key := path[start:i]
		start = i + 1
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	cur[path[start:]] = val
}
