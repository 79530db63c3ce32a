package query

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/mwantia/blockdb/data"
	"github.com/mwantia/blockdb/data/errors"
)

// Operator is a patch command recognized inside an operator object.
type Operator string

const (
	OpSet     Operator = "$set"     // replace the value
	OpPush    Operator = "$push"    // append items to a list, creating it if absent
	OpUnshift Operator = "$unshift" // prepend items to a list, creating it if absent
	OpSplice  Operator = "$splice"  // apply [start, deleteCount, items...] splices to a list
	OpUnset   Operator = "$unset"   // remove keys from a document
	OpMerge   Operator = "$merge"   // shallow-merge a document into a document
	OpToggle  Operator = "$toggle"  // negate boolean keys of a document
)

// Operators lists every supported operator.
func Operators() []Operator {
	return []Operator{OpSet, OpPush, OpUnshift, OpSplice, OpUnset, OpMerge, OpToggle}
}

// Patch applies an update spec to target. The update mirrors the document shape;
// a nested object whose keys start with '$' is an operator object applied to
// the value at that position. Unlike Merge, lists can be appended to.
// On error target is left untouched.
func Patch(target, spec data.Document) (data.Document, error) {
	working := data.Clone(target)
	if working == nil {
		working = make(data.Document)
	}

	result, _, err := apply(working, true, spec, "")
	if err != nil {
		return target, err
	}

	doc, ok := result.(map[string]any)
	if !ok || doc == nil {
		return target, errors.InvalidPatchOperator(string(OpSet), "cannot replace the root document with a non-document value")
	}

	// Copy the result into target so callers holding it observe the patch.
	if target == nil {
		return doc, nil
	}

	clear(target)
	maps.Copy(target, doc)

	return target, nil
}

func apply(current any, present bool, spec map[string]any, at string) (any, bool, error) {
	commands, fields := 0, 0
	for key := range spec {
		if strings.HasPrefix(key, "$") {
			commands++
		} else {
			fields++
		}
	}

	if commands > 0 && fields > 0 {
		return nil, false, errors.InvalidPatchOperator(at, "mixes operators with field names")
	}

	if commands > 0 {
		// Sorted for a deterministic result when several operators are combined
		for _, key := range slices.Sorted(maps.Keys(spec)) {
			var err error
			current, present, err = applyCommand(Operator(key), current, present, spec[key], join(at, key))
			if err != nil {
				return nil, false, err
			}
		}

		return current, present, nil
	}

	doc, ok := current.(map[string]any)
	if !present || current == nil {
		doc, ok = make(map[string]any, len(spec)), true
	}
	if !ok {
		return nil, false, errors.InvalidPatchOperator(at, "cannot descend into a non-document value")
	}

	for key, val := range spec {
		sub, ok := val.(map[string]any)
		if !ok || sub == nil {
			return nil, false, errors.InvalidPatchOperator(join(at, key), "expected an operator object")
		}

		existing, exists := doc[key]
		next, keep, err := apply(existing, exists, sub, join(at, key))
		if err != nil {
			return nil, false, err
		}

		if keep {
			doc[key] = next
		} else {
			delete(doc, key)
		}
	}

	return doc, true, nil
}

func applyCommand(op Operator, current any, present bool, operand any, at string) (any, bool, error) {
	switch op {
	case OpSet:
		return data.CloneValue(operand), true, nil

	case OpPush, OpUnshift:
		items, ok := operand.([]any)
		if !ok {
			return nil, false, errors.InvalidPatchOperator(at, "expects a list of items")
		}

		list, err := asList(current, present, at)
		if err != nil {
			return nil, false, err
		}

		items = data.CloneValue(items).([]any)
		if op == OpPush {
			return append(list, items...), true, nil
		}
		return append(items, list...), true, nil

	case OpSplice:
		splices, ok := operand.([]any)
		if !ok {
			return nil, false, errors.InvalidPatchOperator(at, "expects a list of splices")
		}

		list, err := asList(current, present, at)
		if err != nil {
			return nil, false, err
		}

		for _, raw := range splices {
			list, err = splice(list, raw, at)
			if err != nil {
				return nil, false, err
			}
		}
		return list, true, nil

	case OpUnset:
		keys, err := asKeys(operand, at)
		if err != nil {
			return nil, false, err
		}

		if !present {
			return nil, false, nil
		}

		doc, err := asDocument(current, present, at)
		if err != nil {
			return nil, false, err
		}

		for _, key := range keys {
			delete(doc, key)
		}
		return doc, true, nil

	case OpMerge:
		source, ok := operand.(map[string]any)
		if !ok {
			return nil, false, errors.InvalidPatchOperator(at, "expects a document")
		}

		doc, err := asDocument(current, present, at)
		if err != nil {
			return nil, false, err
		}

		for key, val := range source {
			doc[key] = data.CloneValue(val)
		}
		return doc, true, nil

	case OpToggle:
		keys, err := asKeys(operand, at)
		if err != nil {
			return nil, false, err
		}

		doc, err := asDocument(current, present, at)
		if err != nil {
			return nil, false, err
		}

		for _, key := range keys {
			val, exists := doc[key]
			if !exists || val == nil {
				doc[key] = true
				continue
			}

			b, ok := val.(bool)
			if !ok {
				return nil, false, errors.InvalidPatchOperator(join(at, key), "cannot toggle a non-boolean value")
			}
			doc[key] = !b
		}
		return doc, true, nil
	}

	return nil, false, errors.InvalidPatchOperator(at, "is not a known operator")
}

func asList(current any, present bool, at string) ([]any, error) {
	if !present || current == nil {
		return []any{}, nil
	}

	list, ok := current.([]any)
	if !ok {
		return nil, errors.InvalidPatchOperator(at, "target is not a list")
	}

	return slices.Clone(list), nil
}

func asDocument(current any, present bool, at string) (map[string]any, error) {
	if !present || current == nil {
		return make(map[string]any), nil
	}

	doc, ok := current.(map[string]any)
	if !ok {
		return nil, errors.InvalidPatchOperator(at, "target is not a document")
	}

	return doc, nil
}

func asKeys(operand any, at string) ([]string, error) {
	raw, ok := operand.([]any)
	if !ok {
		return nil, errors.InvalidPatchOperator(at, "expects a list of keys")
	}

	keys := make([]string, 0, len(raw))
	for _, item := range raw {
		key, ok := item.(string)
		if !ok {
			return nil, errors.InvalidPatchOperator(at, "expects a list of keys")
		}
		keys = append(keys, key)
	}

	return keys, nil
}

func splice(list []any, raw any, at string) ([]any, error) {
	args, ok := raw.([]any)
	if !ok || len(args) < 2 {
		return nil, errors.InvalidPatchOperator(at, "expects [start, deleteCount, items...]")
	}

	start, err := toInt(args[0], at)
	if err != nil {
		return nil, err
	}
	count, err := toInt(args[1], at)
	if err != nil {
		return nil, err
	}

	if start < 0 {
		start = max(len(list)+start, 0)
	}
	start = min(start, len(list))
	count = max(min(count, len(list)-start), 0)

	items := data.CloneValue(args[2:]).([]any)
	return slices.Insert(slices.Delete(list, start, start+count), start, items...), nil
}

func toInt(v any, at string) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			break
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			break
		}
		return int(i), nil
	}

	return 0, errors.InvalidPatchOperator(at, fmt.Sprintf("expects an integer, got %v", v))
}

func join(at, key string) string {
	if at == "" {
		return key
	}

	return at + "." + key
}
