package aggregate

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/qaroom/internal/domain"
	"github.com/cwrk-planet/qaroom/internal/store"
)

func twoLikes() map[domain.QuestionID]domain.QuestionRecord {
	return map[domain.QuestionID]domain.QuestionRecord{
		"q1": {
			Content: "Q1",
			Likes: map[domain.LikeID]domain.Like{
				"k1": {AuthorID: "A"},
				"k2": {AuthorID: "B"},
			},
		},
	}
}

func TestAggregate_LikeIDIsViewerRelative(t *testing.T) {
	got := Aggregate(twoLikes(), "B")
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].LikedCount)
	assert.Equal(t, domain.LikeID("k2"), got[0].LikeID)

	got = Aggregate(twoLikes(), "C")
	assert.Equal(t, 2, got[0].LikedCount)
	assert.Empty(t, got[0].LikeID)

	got = Aggregate(twoLikes(), "")
	assert.Empty(t, got[0].LikeID, "anonymous viewer never owns a like")
}

func TestAggregate_AbsentLikesCountZero(t *testing.T) {
	got := Aggregate(map[domain.QuestionID]domain.QuestionRecord{"q1": {Content: "x"}}, "A")
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].LikedCount)
	assert.Empty(t, got[0].LikeID)
}

func TestAggregate_DuplicateLikesPickFirstInKeyOrder(t *testing.T) {
	raw := map[domain.QuestionID]domain.QuestionRecord{
		"q1": {Likes: map[domain.LikeID]domain.Like{
			"k9": {AuthorID: "A"},
			"k3": {AuthorID: "A"},
			"k5": {AuthorID: "B"},
		}},
	}
	got := Aggregate(raw, "A")
	assert.Equal(t, domain.LikeID("k3"), got[0].LikeID)
	assert.Equal(t, 3, got[0].LikedCount)
}

func TestAggregate_OrderFollowsKeysNotFlags(t *testing.T) {
	k1, k2, k3 := store.NewKey(), store.NewKey(), store.NewKey()
	raw := map[domain.QuestionID]domain.QuestionRecord{
		domain.QuestionID(k3): {Content: "third"},
		domain.QuestionID(k1): {Content: "first", IsAnswered: true},
		domain.QuestionID(k2): {Content: "second", IsHighlighted: true},
	}
	got := Aggregate(raw, "")
	var contents []string
	for _, q := range got {
		contents = append(contents, q.Content)
	}
	assert.Equal(t, []string{"first", "second", "third"}, contents)
}

func TestAggregate_Deterministic(t *testing.T) {
	raw := map[domain.QuestionID]domain.QuestionRecord{}
	for i := 0; i < 50; i++ {
		likes := map[domain.LikeID]domain.Like{}
		for j := 0; j < i%5; j++ {
			likes[domain.LikeID(store.NewKey())] = domain.Like{AuthorID: domain.UserID([]string{"A", "B", "C"}[j%3])}
		}
		raw[domain.QuestionID(store.NewKey())] = domain.QuestionRecord{Content: "q", Likes: likes}
	}

	first, err := json.Marshal(Aggregate(raw, "B"))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := json.Marshal(Aggregate(raw, "B"))
		require.NoError(t, err)
		require.Equal(t, string(first), string(again))
	}
}

func TestDecodeRoom_EmptyRoom(t *testing.T) {
	snap := store.NewSnapshot([]string{"rooms", "r1"}, map[string]any{"title": "Demo"})
	view, err := DecodeRoom(snap, "")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomView{ID: "r1", Title: "Demo", Questions: []domain.QuestionView{}}, view)
}

func TestDecodeRoom_MissingTitleAndNotFound(t *testing.T) {
	snap := store.NewSnapshot([]string{"rooms", "r1"}, map[string]any{"authorId": "u1"})
	view, err := DecodeRoom(snap, "")
	require.NoError(t, err)
	assert.Equal(t, "", view.Title)
	assert.Empty(t, view.Questions)

	_, err = DecodeRoom(store.NewSnapshot([]string{"rooms", "nope"}, nil), "")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestDecodeRoom_SkipsMalformedQuestions(t *testing.T) {
	snap := store.NewSnapshot([]string{"rooms", "r1"}, map[string]any{
		"title": "Demo",
		"questions": map[string]any{
			"q1": map[string]any{"content": "ok"},
			"q2": "garbage",
			"q3": map[string]any{"content": 42.0},
		},
	})
	view, err := DecodeRoom(snap, "")
	require.NoError(t, err)
	require.Len(t, view.Questions, 1)
	assert.Equal(t, domain.QuestionID("q1"), view.Questions[0].ID)
}

func TestDecodeRoom_MalformedLikeStillCounts(t *testing.T) {
	snap := store.NewSnapshot([]string{"rooms", "r1"}, map[string]any{
		"title": "Demo",
		"questions": map[string]any{
			"q1": map[string]any{
				"content": "Q1",
				"likes": map[string]any{
					"k1": true,
					"k2": map[string]any{"authorId": "ann"},
					"k3": map[string]any{"authorId": 7.0},
				},
			},
			"q2": map[string]any{"content": "Q2", "likes": "garbage"},
		},
	})

	view, err := DecodeRoom(snap, "ann")
	require.NoError(t, err)
	require.Len(t, view.Questions, 2)
	assert.Equal(t, 3, view.Questions[0].LikedCount)
	assert.Equal(t, domain.LikeID("k2"), view.Questions[0].LikeID)
	assert.Equal(t, 0, view.Questions[1].LikedCount)
	assert.Empty(t, view.Questions[1].LikeID)
}

func TestDecodeRoom_Golden(t *testing.T) {
	snap := store.NewSnapshot([]string{"rooms", "room-1"}, map[string]any{
		"title":    "Go meetup",
		"authorId": "mod",
		"endedAt":  "2025-03-01T18:00:00Z",
		"questions": map[string]any{
			"01HQ0000000000000000000001": map[string]any{
				"author":        map[string]any{"name": "Ann", "avatar": "https://img/ann.png"},
				"content":       "How do goroutines get scheduled?",
				"isAnswered":    true,
				"isHighlighted": false,
			},
			"01HQ0000000000000000000002": map[string]any{
				"author":        map[string]any{"name": "Bob", "avatar": "https://img/bob.png"},
				"content":       "Generics or interfaces?",
				"isAnswered":    false,
				"isHighlighted": true,
				"likes": map[string]any{
					"01HQ00000000000000000000L1": map[string]any{"authorId": "ann"},
					"01HQ00000000000000000000L2": map[string]any{"authorId": "viewer"},
				},
			},
		},
	})
	view, err := DecodeRoom(snap, "viewer")
	require.NoError(t, err)

	out, err := json.MarshalIndent(view, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "room_view", out)
}
