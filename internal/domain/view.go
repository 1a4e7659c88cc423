package domain

// QuestionView is a per-viewer projection of a QuestionRecord.
// LikeID is empty when the viewer has not liked the question or is anonymous.
type QuestionView struct {
	ID            QuestionID `json:"id"`
	Author        Author     `json:"author"`
	Content       string     `json:"content"`
	IsAnswered    bool       `json:"isAnswered"`
	IsHighlighted bool       `json:"isHighlighted"`
	LikedCount    int        `json:"likedCount"`
	LikeID        LikeID     `json:"likeId,omitempty"`
}

// RoomView is rebuilt from scratch on every snapshot; it is never patched.
type RoomView struct {
	ID        RoomID         `json:"id"`
	Title     string         `json:"title"`
	Closed    bool           `json:"closed"`
	Questions []QuestionView `json:"questions"`
}
