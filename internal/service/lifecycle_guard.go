package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cwrk-planet/qaroom/internal/aggregate"
	"github.com/cwrk-planet/qaroom/internal/domain"
	"github.com/cwrk-planet/qaroom/internal/store"
)

type Status int

const (
	StatusOK Status = iota
	StatusClosed
)

func (s Status) String() string {
	if s == StatusClosed {
		return "closed"
	}
	return "ok"
}

// LifecycleGuard — разовые проверки на входе в комнату (точечное чтение, не подписка).
// Комнату, закрытую уже после входа, guard не замечает.
type LifecycleGuard struct {
	store store.RemoteStore
}

func NewLifecycleGuard(st store.RemoteStore) *LifecycleGuard {
	return &LifecycleGuard{store: st}
}

// CheckOpenForAdmin вызывается один раз при открытии админского вида.
// StatusClosed — вызывающий должен увести модератора и показать уведомление.
func (g *LifecycleGuard) CheckOpenForAdmin(ctx context.Context, roomID domain.RoomID) (Status, error) {
	snap, err := g.read(ctx, string(roomID))
	if err != nil {
		return StatusOK, err
	}
	if aggregate.IsEnded(snap) {
		return StatusClosed, nil
	}
	return StatusOK, nil
}

// CheckJoin проверяет код комнаты, введённый участником.
// Пустой код — no-op ("" и nil); закрытая комната — domain.ErrRoomClosed.
func (g *LifecycleGuard) CheckJoin(ctx context.Context, code string) (domain.RoomID, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", nil
	}
	snap, err := g.read(ctx, code)
	if err != nil {
		return "", err
	}
	if aggregate.IsEnded(snap) {
		return "", domain.ErrRoomClosed
	}
	return domain.RoomID(code), nil
}

func (g *LifecycleGuard) read(ctx context.Context, roomID string) (store.Snapshot, error) {
	if !domain.ValidKey(roomID) {
		return store.Snapshot{}, domain.ErrRoomNotFound
	}
	snap, err := g.store.Get(ctx, store.RoomPath(roomID))
	if errors.Is(err, store.ErrInvalidPath) {
		return store.Snapshot{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("store.Get room: %w", err)
	}
	if !snap.Exists() {
		return store.Snapshot{}, domain.ErrRoomNotFound
	}
	return snap, nil
}
