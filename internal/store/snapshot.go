package store

import (
	"encoding/json"
	"fmt"
)

// Snapshot is an immutable view of a subtree at one moment. Value holds
// decoded JSON (map[string]any, string, float64, bool) and is shared with the
// store, so callers must not modify it.
type Snapshot struct {
	path  []string
	value any
}

func NewSnapshot(segs []string, value any) Snapshot {
	return Snapshot{path: segs, value: value}
}

func (s Snapshot) Path() string { return Join(s.path...) }

// Key is the last path segment, "" at the root.
func (s Snapshot) Key() string {
	if len(s.path) == 0 {
		return ""
	}
	return s.path[len(s.path)-1]
}

func (s Snapshot) Exists() bool { return s.value != nil }

func (s Snapshot) Value() any { return s.value }

func (s Snapshot) Child(name string) Snapshot {
	segs := append(append([]string(nil), s.path...), name)
	m, _ := s.value.(map[string]any)
	return Snapshot{path: segs, value: m[name]}
}

// Children lists direct children in store-native key order.
func (s Snapshot) Children() []Snapshot {
	m, ok := s.value.(map[string]any)
	if !ok {
		return nil
	}
	out := make([]Snapshot, 0, len(m))
	for _, k := range SortedKeys(m) {
		out = append(out, s.Child(k))
	}
	return out
}

// Decode copies the subtree into dst through its JSON form.
func (s Snapshot) Decode(dst any) error {
	b, err := json.Marshal(s.value)
	if err != nil {
		return fmt.Errorf("snapshot %s: encode: %w", s.Path(), err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("snapshot %s: decode: %w", s.Path(), err)
	}
	return nil
}
