package store

import (
	"fmt"
	"strings"
)

// Root is the top-level node every room path hangs off.
const Root = "rooms"

const forbiddenKeyChars = ".#$[]"

// Split turns "rooms/abc/questions" into its segments. Empty segments from
// leading, trailing or doubled slashes are dropped.
func Split(path string) ([]string, error) {
	raw := strings.Split(path, "/")
	segs := make([]string, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			continue
		}
		if strings.ContainsAny(s, forbiddenKeyChars) {
			return nil, fmt.Errorf("%w: segment %q", ErrInvalidPath, s)
		}
		segs = append(segs, s)
	}
	return segs, nil
}

func Join(segs ...string) string {
	return strings.Join(segs, "/")
}

// RoomPath builds rooms/{roomID}/{rest...}.
func RoomPath(roomID string, rest ...string) string {
	return Join(append([]string{Root, roomID}, rest...)...)
}

// Overlaps reports whether a change at one path can alter the subtree at the
// other, i.e. one is a segment-wise prefix of the other.
func Overlaps(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
