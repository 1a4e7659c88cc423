package service

import (
	"context"
	"sync"

	"github.com/cwrk-planet/qaroom/internal/domain"
)

type QuestionDeleter interface {
	DeleteQuestion(ctx context.Context, roomID domain.RoomID, questionID domain.QuestionID) error
}

// DeleteConfirmation — двухшаговое удаление в админском виде:
// Idle → Select(q) → PendingConfirmation(q) → Confirm (удаление) | Cancel → Idle.
// Таймаута нет: выбор висит, пока его не подтвердят или не отменят.
type DeleteConfirmation struct {
	deleter QuestionDeleter
	roomID  domain.RoomID

	mu      sync.Mutex
	pending domain.QuestionID
}

func NewDeleteConfirmation(deleter QuestionDeleter, roomID domain.RoomID) *DeleteConfirmation {
	return &DeleteConfirmation{deleter: deleter, roomID: roomID}
}

// Select запоминает вопрос; повторный Select заменяет выбор.
func (d *DeleteConfirmation) Select(questionID domain.QuestionID) {
	d.mu.Lock()
	d.pending = questionID
	d.mu.Unlock()
}

// Pending возвращает вопрос, ожидающий подтверждения.
func (d *DeleteConfirmation) Pending() (domain.QuestionID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending, d.pending != ""
}

// Confirm удаляет выбранный вопрос и возвращается в Idle, в том числе при ошибке стора.
// В Idle возвращает domain.ErrNothingToConfirm.
func (d *DeleteConfirmation) Confirm(ctx context.Context) (domain.QuestionID, error) {
	d.mu.Lock()
	q := d.pending
	d.pending = ""
	d.mu.Unlock()

	if q == "" {
		return "", domain.ErrNothingToConfirm
	}
	return q, d.deleter.DeleteQuestion(ctx, d.roomID, q)
}

func (d *DeleteConfirmation) Cancel() {
	d.mu.Lock()
	d.pending = ""
	d.mu.Unlock()
}
