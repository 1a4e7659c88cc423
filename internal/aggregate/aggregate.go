// Package aggregate строит RoomView из сырых данных комнаты.
// Здесь нет I/O: одинаковый вход всегда даёт одинаковый выход.
package aggregate

import (
	"log/slog"

	"github.com/cwrk-planet/qaroom/internal/domain"
	"github.com/cwrk-planet/qaroom/internal/store"
)

// Aggregate превращает вопросы комнаты в упорядоченный список QuestionView.
// Порядок — нативный порядок ключей стора (для append-ключей это порядок создания).
// LikeID — первый лайк (в порядке ключей) от viewerID; для анонима всегда пусто.
func Aggregate(raw map[domain.QuestionID]domain.QuestionRecord, viewerID domain.UserID) []domain.QuestionView {
	out := make([]domain.QuestionView, 0, len(raw))
	for _, id := range store.SortedKeys(raw) {
		q := raw[id]
		out = append(out, domain.QuestionView{
			ID:            id,
			Author:        q.Author,
			Content:       q.Content,
			IsAnswered:    q.IsAnswered,
			IsHighlighted: q.IsHighlighted,
			LikedCount:    len(q.Likes),
			LikeID:        likeOf(q.Likes, viewerID),
		})
	}
	return out
}

func likeOf(likes map[domain.LikeID]domain.Like, viewerID domain.UserID) domain.LikeID {
	if viewerID == "" {
		return ""
	}
	for _, id := range store.SortedKeys(likes) {
		if likes[id].AuthorID == viewerID {
			return id
		}
	}
	return ""
}

// DecodeRoom декодирует снапшот rooms/{id}. Для несуществующей комнаты
// возвращается domain.ErrRoomNotFound, а не пустой RoomView. Битые записи
// вопросов пропускаются.
func DecodeRoom(snap store.Snapshot, viewerID domain.UserID) (domain.RoomView, error) {
	if !snap.Exists() {
		return domain.RoomView{}, domain.ErrRoomNotFound
	}

	view := domain.RoomView{ID: domain.RoomID(snap.Key())}
	view.Title, _ = snap.Child("title").Value().(string)
	view.Closed = IsEnded(snap)

	raw := make(map[domain.QuestionID]domain.QuestionRecord)
	for _, child := range snap.Child("questions").Children() {
		var body questionBody
		if err := child.Decode(&body); err != nil {
			slog.Warn("skip malformed question", "module", "aggregate", "path", child.Path(), "err", err)
			continue
		}
		raw[domain.QuestionID(child.Key())] = domain.QuestionRecord{
			Author:        body.Author,
			Content:       body.Content,
			IsAnswered:    body.IsAnswered,
			IsHighlighted: body.IsHighlighted,
			Likes:         decodeLikes(child.Child("likes")),
		}
	}
	view.Questions = Aggregate(raw, viewerID)
	return view, nil
}

// questionBody — вопрос без likes: лайки читаются по одному в decodeLikes.
type questionBody struct {
	Author        domain.Author `json:"author"`
	Content       string        `json:"content"`
	IsAnswered    bool          `json:"isAnswered"`
	IsHighlighted bool          `json:"isHighlighted"`
}

// decodeLikes не отбрасывает битые лайки: они входят в likedCount,
// но ни одному зрителю не принадлежат.
func decodeLikes(snap store.Snapshot) map[domain.LikeID]domain.Like {
	children := snap.Children()
	if len(children) == 0 {
		return nil
	}
	likes := make(map[domain.LikeID]domain.Like, len(children))
	for _, like := range children {
		author, _ := like.Child("authorId").Value().(string)
		likes[domain.LikeID(like.Key())] = domain.Like{AuthorID: domain.UserID(author)}
	}
	return likes
}

// IsEnded сообщает, закрыта ли комната в снапшоте: считается любое значение endedAt.
func IsEnded(snap store.Snapshot) bool {
	return snap.Child("endedAt").Exists()
}
