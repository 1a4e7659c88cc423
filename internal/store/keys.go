package store

import (
	"crypto/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	keyMu      sync.Mutex
	keyEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewKey returns a push key. Keys are fixed-length ULIDs, so later keys sort
// after earlier ones and append order equals key order.
func NewKey() string {
	keyMu.Lock()
	defer keyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), keyEntropy).String()
}

// CompareKeys is the store-native child ordering: keys that parse as 32-bit
// integers come first in numeric order, everything else follows in byte order.
func CompareKeys(a, b string) int {
	ai, aInt := intKey(a)
	bi, bInt := intKey(b)
	switch {
	case aInt && bInt:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	case aInt:
		return -1
	case bInt:
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func intKey(k string) (int64, bool) {
	n, err := strconv.ParseInt(k, 10, 32)
	if err != nil {
		return 0, false
	}
	// "007" and "+7" are strings, not integers
	if strconv.FormatInt(n, 10) != k {
		return 0, false
	}
	return n, true
}

// SortedKeys returns the keys of m in store-native order.
func SortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return CompareKeys(string(keys[i]), string(keys[j])) < 0
	})
	return keys
}
