// Package roomsync держит живой RoomView для одного зрителя: подписывается на
// rooms/{id}, декодирует каждый снапшот и публикует свежее представление.
package roomsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cwrk-planet/qaroom/internal/aggregate"
	"github.com/cwrk-planet/qaroom/internal/domain"
	"github.com/cwrk-planet/qaroom/internal/metrics"
	"github.com/cwrk-planet/qaroom/internal/store"
)

// Update — одна публикация: либо View, либо Err (domain.ErrRoomNotFound,
// ошибка стора). View.ID заполнен в обоих случаях.
type Update struct {
	View domain.RoomView
	Err  error
}

type Synchronizer struct {
	store   store.RemoteStore
	metrics *metrics.Metrics
}

type Option func(*Synchronizer)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

func New(st store.RemoteStore, opts ...Option) *Synchronizer {
	s := &Synchronizer{store: st}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe открывает подписку на комнату. Первая публикация приходит сразу
// после регистрации в сторе. Отмена ctx равносильна Cancel.
func (s *Synchronizer) Subscribe(ctx context.Context, roomID domain.RoomID, viewerID domain.UserID) (*Subscription, error) {
	if !domain.ValidKey(string(roomID)) {
		return nil, domain.ErrRoomNotFound
	}

	sub := &Subscription{
		roomID:  roomID,
		viewer:  viewerID,
		store:   s.store,
		metrics: s.metrics,
		updates: make(chan Update, 1),
	}

	id, err := s.store.Subscribe(ctx, store.RoomPath(string(roomID)), sub.onSnapshot)
	if err != nil {
		return nil, fmt.Errorf("subscribe room %s: %w", roomID, err)
	}
	sub.mu.Lock()
	sub.id = id
	sub.mu.Unlock()
	s.metrics.SubscriptionOpened()

	stop := context.AfterFunc(ctx, sub.Cancel)
	sub.mu.Lock()
	sub.stopCtx = stop
	sub.mu.Unlock()
	return sub, nil
}

// Snapshot — разовое чтение комнаты без подписки.
func (s *Synchronizer) Snapshot(ctx context.Context, roomID domain.RoomID, viewerID domain.UserID) (domain.RoomView, error) {
	if !domain.ValidKey(string(roomID)) {
		return domain.RoomView{}, domain.ErrRoomNotFound
	}
	snap, err := s.store.Get(ctx, store.RoomPath(string(roomID)))
	if err != nil {
		return domain.RoomView{}, fmt.Errorf("store.Get room: %w", err)
	}
	return aggregate.DecodeRoom(snap, viewerID)
}

// Subscription — единственный владелец одной подписки стора.
// Канал Updates сворачивает публикации: медленный читатель увидит последнее
// состояние, а не очередь устаревших.
type Subscription struct {
	roomID  domain.RoomID
	store   store.RemoteStore
	metrics *metrics.Metrics
	updates chan Update

	mu        sync.Mutex
	id        store.SubscriptionID
	stopCtx   func() bool
	viewer    domain.UserID
	last      store.Snapshot // последний сырой снапшот, нужен только для SetViewer
	hasLast   bool
	latest    Update
	published bool
	cancelled bool
}

func (s *Subscription) RoomID() domain.RoomID { return s.roomID }

// Updates закрывается после Cancel.
func (s *Subscription) Updates() <-chan Update { return s.updates }

// Latest возвращает последнюю публикацию, false — если её ещё не было.
func (s *Subscription) Latest() (Update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.published
}

// SetViewer пересчитывает последний снапшот для нового зрителя без переподписки.
func (s *Subscription) SetViewer(viewerID domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.viewer == viewerID {
		return
	}
	s.viewer = viewerID
	if s.hasLast {
		s.publishLocked(s.decodeLocked())
	}
}

// ViewerSource — источник смен зрителя, например identity.Session.
type ViewerSource interface {
	Watch(fn func(*domain.Viewer)) (stop func())
}

// Follow подписывает SetViewer на смены зрителя в src.
func (s *Subscription) Follow(src ViewerSource) (stop func()) {
	return src.Watch(func(v *domain.Viewer) { s.SetViewer(v.UserID()) })
}

// Cancel снимает подписку со стора и закрывает Updates. Повторный вызов ничего не делает.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	id, stopCtx := s.id, s.stopCtx
	s.hasLast = false
	s.last = store.Snapshot{}
	close(s.updates)
	s.mu.Unlock()

	if stopCtx != nil {
		stopCtx()
	}
	s.store.Unsubscribe(id)
	s.metrics.SubscriptionClosed()
	slog.Debug("room subscription cancelled", "module", "roomsync", "room_id", s.roomID)
}

func (s *Subscription) onSnapshot(snap store.Snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	if err != nil {
		s.publishLocked(Update{View: domain.RoomView{ID: s.roomID}, Err: fmt.Errorf("room %s: %w", s.roomID, err)})
		return
	}
	s.last = snap
	s.hasLast = true
	s.publishLocked(s.decodeLocked())
}

func (s *Subscription) decodeLocked() Update {
	view, err := aggregate.DecodeRoom(s.last, s.viewer)
	if err != nil {
		return Update{View: domain.RoomView{ID: s.roomID}, Err: err}
	}
	view.ID = s.roomID
	return Update{View: view}
}

// publishLocked заменяет непрочитанную публикацию новой. Отправитель всегда
// держит mu, поэтому после вычитывания канал пуст и send не блокируется.
func (s *Subscription) publishLocked(u Update) {
	select {
	case <-s.updates:
	default:
	}
	s.updates <- u
	s.latest = u
	s.published = true
	s.metrics.ViewPublished()
}
