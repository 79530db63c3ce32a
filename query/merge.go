package query

import "github.com/mwantia/blockdb/data"

// Merge applies patch onto target in place and returns target.
// Documents present on both sides are merged recursively; any other value,
// lists included, overwrites the stored one.
func Merge(target, patch data.Document) data.Document {
	if target == nil {
		target = make(data.Document, len(patch))
	}

	for key, val := range patch {
		current, exists := target[key]
		if !exists {
			target[key] = data.CloneValue(val)
			continue
		}

		currentDoc, currentIsDoc := current.(map[string]any)
		valDoc, valIsDoc := val.(map[string]any)
		if currentIsDoc && valIsDoc && currentDoc != nil && valDoc != nil {
			target[key] = Merge(currentDoc, valDoc)
			continue
		}

		target[key] = data.CloneValue(val)
	}

	return target
}
