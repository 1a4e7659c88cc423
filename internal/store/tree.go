package store

import (
	"encoding/json"
	"fmt"
)

// Normalize converts an arbitrary Go value into the tree's JSON shape and
// drops null leaves and empty maps, which the tree does not keep.
func Normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return prune(out), nil
}

func prune(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, child := range m {
		if c := prune(child); c == nil {
			delete(m, k)
		} else {
			m[k] = c
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// GetAt walks segs from node and returns the subtree, or nil if absent.
func GetAt(node any, segs []string) any {
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[s]
	}
	return node
}

// SetAt returns a copy of node with value placed at segs. Only the maps along
// segs are copied; every other subtree is shared with node. A nil value
// removes the entry, and maps left empty disappear with it.
func SetAt(node any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	m, _ := node.(map[string]any)
	child := SetAt(m[segs[0]], segs[1:], value)
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	if child == nil {
		delete(out, segs[0])
	} else {
		out[segs[0]] = child
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// UpdateAt merges fields into the node at segs. Field names may themselves be
// relative paths ("likes/abc").
func UpdateAt(node any, segs []string, fields map[string]any) (any, error) {
	for _, name := range SortedKeys(fields) {
		rel, err := Split(name)
		if err != nil {
			return nil, err
		}
		if len(rel) == 0 {
			return nil, fmt.Errorf("%w: empty update field", ErrInvalidPath)
		}
		v, err := Normalize(fields[name])
		if err != nil {
			return nil, err
		}
		node = SetAt(node, append(append([]string(nil), segs...), rel...), v)
	}
	return node, nil
}
