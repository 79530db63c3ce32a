package query

import "github.com/mwantia/blockdb/data"

// Project shapes target by query. Keys missing from target fall back to the
// query's own value, nested documents in the query recurse, and every other
// key is copied from target. An empty query returns target unchanged.
func Project(target, query data.Document) data.Document {
	if len(query) == 0 {
		return target
	}

	result := make(data.Document, len(query))
	for key, val := range query {
		current, exists := target[key]
		if !exists {
			result[key] = data.CloneValue(val)
			continue
		}

		sub, ok := val.(map[string]any)
		if !ok || sub == nil {
			result[key] = current
			continue
		}

		if len(sub) == 0 {
			result[key] = current
			continue
		}

		// A non-document value behaves like an empty document, so the
		// query's defaults are returned for the whole subtree.
		currentDoc, _ := current.(map[string]any)
		result[key] = Project(currentDoc, sub)
	}

	return result
}
