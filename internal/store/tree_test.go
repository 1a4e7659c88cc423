package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_PrunesNullsAndEmptyMaps(t *testing.T) {
	type rec struct {
		Title string         `json:"title"`
		Empty map[string]int `json:"empty"`
		Nil   *string        `json:"nil"`
	}
	v, err := Normalize(rec{Title: "t", Empty: map[string]int{}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "t"}, v)

	v, err = Normalize(map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = Normalize(3)
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)
}

func TestSetAt_CopiesOnlyThePath(t *testing.T) {
	orig := map[string]any{
		"a": map[string]any{"x": "1"},
		"b": map[string]any{"y": "2"},
	}
	next := SetAt(orig, []string{"a", "z"}, "3").(map[string]any)

	assert.Equal(t, map[string]any{"x": "1"}, orig["a"], "original must not change")
	assert.Equal(t, map[string]any{"x": "1", "z": "3"}, next["a"])

	// untouched branch is shared
	origB := orig["b"].(map[string]any)
	nextB := next["b"].(map[string]any)
	origB["probe"] = true
	assert.Equal(t, true, nextB["probe"])
}

func TestSetAt_NilRemovesAndCollapses(t *testing.T) {
	root := map[string]any{
		"rooms": map[string]any{
			"r1": map[string]any{"likes": map[string]any{"l1": map[string]any{"authorId": "u"}}},
		},
	}
	assert.Nil(t, SetAt(root, []string{"rooms", "r1", "likes", "l1"}, nil))
	assert.Equal(t, root, SetAt(root, []string{"rooms", "missing"}, nil))
}

func TestUpdateAt_RelativeFields(t *testing.T) {
	node := map[string]any{"q": map[string]any{"content": "hi"}}
	next, err := UpdateAt(node, []string{"q"}, map[string]any{
		"isAnswered":    true,
		"likes/l1":      map[string]any{"authorId": "u1"},
		"isHighlighted": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"q": map[string]any{
		"content":    "hi",
		"isAnswered": true,
		"likes":      map[string]any{"l1": map[string]any{"authorId": "u1"}},
	}}, next)

	_, err = UpdateAt(node, nil, map[string]any{"/": 1})
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestSnapshot_ChildrenInNativeOrder(t *testing.T) {
	snap := NewSnapshot([]string{"rooms", "r1", "questions"}, map[string]any{
		"b": "2", "10": "x", "a": "1", "2": "y",
	})
	var keys []string
	for _, c := range snap.Children() {
		keys = append(keys, c.Key())
	}
	assert.Equal(t, []string{"2", "10", "a", "b"}, keys)
	assert.Equal(t, "rooms/r1/questions/a", snap.Child("a").Path())
	assert.False(t, snap.Child("zz").Exists())

	var out map[string]string
	require.NoError(t, snap.Decode(&out))
	assert.Equal(t, "1", out["a"])
}
