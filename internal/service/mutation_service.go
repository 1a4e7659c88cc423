package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cwrk-planet/qaroom/internal/domain"
	"github.com/cwrk-planet/qaroom/internal/metrics"
	"github.com/cwrk-planet/qaroom/internal/store"
)

// MutationService пишет в стор. Состояния не держит: каждое действие — один
// вызов стора (LikeQuestion дополнительно читает лайки), без ретраев.
// Пустой (после trim) title/content — тихий no-op: нулевой id и nil.
type MutationService struct {
	store   store.RemoteStore
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewMutationService(st store.RemoteStore, m *metrics.Metrics) *MutationService {
	return &MutationService{store: st, metrics: m, now: time.Now}
}

// CreateRoom создаёт комнату с автором authorID и возвращает её id.
func (s *MutationService) CreateRoom(ctx context.Context, title string, authorID domain.UserID) (domain.RoomID, error) {
	if strings.TrimSpace(title) == "" {
		return "", nil
	}
	if authorID == "" {
		return "", domain.ErrViewerRequired
	}

	key, err := s.store.Append(ctx, store.Root, domain.Room{Title: title, AuthorID: authorID})
	s.metrics.Mutation("create_room", err)
	if err != nil {
		return "", fmt.Errorf("store.Append room: %w", err)
	}
	return domain.RoomID(key), nil
}

// SubmitQuestion добавляет вопрос от имени viewer. Текст сохраняется как есть.
func (s *MutationService) SubmitQuestion(ctx context.Context, roomID domain.RoomID, content string, viewer *domain.Viewer) (domain.QuestionID, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	if viewer == nil || viewer.ID == "" {
		return "", domain.ErrViewerRequired
	}
	if !domain.ValidKey(string(roomID)) {
		return "", domain.ErrRoomNotFound
	}

	rec := domain.NewQuestionRecord(viewer.Author(), content)
	key, err := s.store.Append(ctx, store.RoomPath(string(roomID), "questions"), rec)
	s.metrics.Mutation("submit_question", err)
	if err != nil {
		return "", fmt.Errorf("store.Append question: %w", err)
	}
	return domain.QuestionID(key), nil
}

// LikeQuestion ставит лайк от viewerID. Вопрос читается точечно: удалённый
// вопрос даёт domain.ErrQuestionNotFound, повторный лайк того же зрителя
// даёт domain.ErrAlreadyLiked.
// Между чтением и записью гонка возможна; её исход виден в агрегации (берётся первый лайк).
func (s *MutationService) LikeQuestion(ctx context.Context, roomID domain.RoomID, questionID domain.QuestionID, viewerID domain.UserID) (domain.LikeID, error) {
	if viewerID == "" {
		return "", domain.ErrViewerRequired
	}
	path, err := questionPath(roomID, questionID)
	if err != nil {
		return "", err
	}

	q, err := s.requireExists(ctx, path, domain.ErrQuestionNotFound)
	if err != nil {
		return "", err
	}
	for _, like := range q.Child("likes").Children() {
		if author, _ := like.Child("authorId").Value().(string); author == string(viewerID) {
			return domain.LikeID(like.Key()), domain.ErrAlreadyLiked
		}
	}

	likes := store.Join(path, "likes")
	key, err := s.store.Append(ctx, likes, domain.Like{AuthorID: viewerID})
	s.metrics.Mutation("like", err)
	if err != nil {
		return "", fmt.Errorf("store.Append like: %w", err)
	}
	return domain.LikeID(key), nil
}

// UnlikeQuestion снимает лайк likeID (берётся из QuestionView.LikeID).
func (s *MutationService) UnlikeQuestion(ctx context.Context, roomID domain.RoomID, questionID domain.QuestionID, likeID domain.LikeID) error {
	if !domain.ValidKey(string(likeID)) {
		return domain.ErrLikeRequired
	}
	likes, err := likesPath(roomID, questionID)
	if err != nil {
		return err
	}

	err = s.store.Remove(ctx, store.Join(likes, string(likeID)))
	s.metrics.Mutation("unlike", err)
	if err != nil {
		return fmt.Errorf("store.Remove like: %w", err)
	}
	return nil
}

// ToggleLike — кнопка «лайк»: снимает currentLikeID, если он есть, иначе ставит новый.
// Возвращает id лайка после переключения (пустой после снятия).
func (s *MutationService) ToggleLike(ctx context.Context, roomID domain.RoomID, questionID domain.QuestionID, viewer *domain.Viewer, currentLikeID domain.LikeID) (domain.LikeID, error) {
	if viewer == nil || viewer.ID == "" {
		return "", domain.ErrViewerRequired
	}
	if currentLikeID != "" {
		return "", s.UnlikeQuestion(ctx, roomID, questionID, currentLikeID)
	}
	return s.LikeQuestion(ctx, roomID, questionID, viewer.ID)
}

// MarkAnswered и HighlightQuestion только поднимают флаги; сбросить их нечем.
func (s *MutationService) MarkAnswered(ctx context.Context, roomID domain.RoomID, questionID domain.QuestionID) error {
	return s.setFlag(ctx, "mark_answered", roomID, questionID, "isAnswered")
}

func (s *MutationService) HighlightQuestion(ctx context.Context, roomID domain.RoomID, questionID domain.QuestionID) error {
	return s.setFlag(ctx, "highlight", roomID, questionID, "isHighlighted")
}

// DeleteQuestion удаляет вопрос вместе с лайками. Подтверждение остаётся
// за вызывающим (см. DeleteConfirmation).
func (s *MutationService) DeleteQuestion(ctx context.Context, roomID domain.RoomID, questionID domain.QuestionID) error {
	path, err := questionPath(roomID, questionID)
	if err != nil {
		return err
	}
	err = s.store.Remove(ctx, path)
	s.metrics.Mutation("delete_question", err)
	if err != nil {
		return fmt.Errorf("store.Remove question: %w", err)
	}
	return nil
}

// CloseRoom проставляет endedAt = now. Комната физически не удаляется.
func (s *MutationService) CloseRoom(ctx context.Context, roomID domain.RoomID) error {
	if !domain.ValidKey(string(roomID)) {
		return domain.ErrRoomNotFound
	}
	path := store.RoomPath(string(roomID))
	if _, err := s.requireExists(ctx, path, domain.ErrRoomNotFound); err != nil {
		return err
	}
	err := s.store.Update(ctx, path, map[string]any{
		"endedAt": domain.EndedAtValue(s.now()),
	})
	s.metrics.Mutation("close_room", err)
	if err != nil {
		return fmt.Errorf("store.Update endedAt: %w", err)
	}
	return nil
}

func (s *MutationService) setFlag(ctx context.Context, op string, roomID domain.RoomID, questionID domain.QuestionID, field string) error {
	path, err := questionPath(roomID, questionID)
	if err != nil {
		return err
	}
	if _, err := s.requireExists(ctx, path, domain.ErrQuestionNotFound); err != nil {
		return err
	}
	err = s.store.Update(ctx, path, map[string]any{field: true})
	s.metrics.Mutation(op, err)
	if err != nil {
		return fmt.Errorf("store.Update %s: %w", field, err)
	}
	return nil
}

// requireExists читает path перед записью, чтобы Update не создавал узел
// заново (удалённый вопрос, несуществующая комната). С записью проверка не
// атомарна: удаление между ними по-прежнему last-write-wins.
func (s *MutationService) requireExists(ctx context.Context, path string, notFound error) (store.Snapshot, error) {
	snap, err := s.store.Get(ctx, path)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("store.Get %s: %w", path, err)
	}
	if !snap.Exists() {
		return store.Snapshot{}, notFound
	}
	return snap, nil
}

func questionPath(roomID domain.RoomID, questionID domain.QuestionID) (string, error) {
	if !domain.ValidKey(string(roomID)) {
		return "", domain.ErrRoomNotFound
	}
	if !domain.ValidKey(string(questionID)) {
		return "", domain.ErrQuestionNotFound
	}
	return store.RoomPath(string(roomID), "questions", string(questionID)), nil
}

func likesPath(roomID domain.RoomID, questionID domain.QuestionID) (string, error) {
	path, err := questionPath(roomID, questionID)
	if err != nil {
		return "", err
	}
	return store.Join(path, "likes"), nil
}
