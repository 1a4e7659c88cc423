package domain

type Author struct {
	Avatar string `json:"avatar"`
	Name   string `json:"name"`
}

type Like struct {
	AuthorID UserID `json:"authorId"`
}

// QuestionRecord is the raw question as persisted under rooms/{id}/questions.
type QuestionRecord struct {
	Author        Author          `json:"author"`
	Content       string          `json:"content"`
	IsAnswered    bool            `json:"isAnswered"`
	IsHighlighted bool            `json:"isHighlighted"`
	Likes         map[LikeID]Like `json:"likes,omitempty"`
}

// NewQuestionRecord builds a fresh, unanswered and unhighlighted question.
func NewQuestionRecord(author Author, content string) QuestionRecord {
	return QuestionRecord{
		Author:  author,
		Content: content,
	}
}
