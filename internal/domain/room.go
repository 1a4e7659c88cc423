package domain

import (
	"strings"
	"time"
)

type (
	RoomID     string
	QuestionID string
	LikeID     string
	UserID     string
)

// Room is the canonical record stored at rooms/{id}.
// Questions are written through their own paths and never inlined on create.
type Room struct {
	Title    string `json:"title"`
	AuthorID UserID `json:"authorId"`
	EndedAt  string `json:"endedAt,omitempty"`
}

// EndedAtValue formats a close timestamp the way rooms store it.
func EndedAtValue(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ValidKey сообщает, годится ли id как один сегмент пути стора.
func ValidKey(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/.#$[]")
}
