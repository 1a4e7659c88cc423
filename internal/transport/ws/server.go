package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/qaroom/internal/domain"
	"github.com/cwrk-planet/qaroom/internal/identity"
	"github.com/cwrk-planet/qaroom/internal/metrics"
	"github.com/cwrk-planet/qaroom/internal/roomsync"
	"github.com/cwrk-planet/qaroom/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type Mutations interface {
	ToggleLike(ctx context.Context, roomID domain.RoomID, questionID domain.QuestionID, viewer *domain.Viewer, currentLikeID domain.LikeID) (domain.LikeID, error)
	DeleteQuestion(ctx context.Context, roomID domain.RoomID, questionID domain.QuestionID) error
}

type TokenVerifier interface {
	Verify(token string, now time.Time) (*domain.Viewer, error)
}

type Options struct {
	PingEvery    time.Duration
	WriteTimeout time.Duration
	CheckOrigin  func(r *http.Request) bool
}

type Server struct {
	upgrader  websocket.Upgrader
	hub       *Hub
	rooms     *roomsync.Synchronizer
	mutations Mutations
	verifier  TokenVerifier
	metrics   *metrics.Metrics

	pingEvery    time.Duration
	writeTimeout time.Duration
}

func NewServer(hub *Hub, rooms *roomsync.Synchronizer, mutations Mutations, verifier TokenVerifier, m *metrics.Metrics, opts Options) *Server {
	if opts.PingEvery <= 0 {
		opts.PingEvery = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return &Server{
		hub:       hub,
		rooms:     rooms,
		mutations: mutations,
		verifier:  verifier,
		metrics:   m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		pingEvery:    opts.PingEvery,
		writeTimeout: opts.WriteTimeout,
	}
}

// session — состояние одного соединения: зритель, подписка на комнату и
// двухшаговое удаление.
type session struct {
	conn    *wsConn
	roomID  domain.RoomID
	viewer  *identity.Session
	sub     *roomsync.Subscription
	confirm *service.DeleteConfirmation
}

// WS endpoint: GET /ws/rooms/{id}?access_token=...
// Токен необязателен: без него соединение анонимное (только чтение).
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	if !domain.ValidKey(roomID) {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	var viewer *domain.Viewer
	if tok := strings.TrimSpace(r.URL.Query().Get("access_token")); tok != "" {
		v, err := s.verify(tok)
		if err != nil {
			http.Error(w, "invalid access_token", http.StatusUnauthorized)
			return
		}
		viewer = v
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "module", "ws", "err", err)
		return
	}

	c := newWsConn(conn, roomID, s.writeTimeout)
	s.hub.Add(c)
	s.metrics.WSConnected()

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		s.hub.Remove(c)
		s.metrics.WSDisconnected()
		if err := c.Close(); err != nil {
			slog.Debug("ws close failed", "module", "ws", "room", roomID, "err", err)
		}
	}()

	sess := &session{
		conn:    c,
		roomID:  domain.RoomID(roomID),
		viewer:  identity.NewSession(viewer),
		confirm: service.NewDeleteConfirmation(s.mutations, domain.RoomID(roomID)),
	}
	sess.sub, err = s.rooms.Subscribe(ctx, sess.roomID, viewer.UserID())
	if err != nil {
		slog.Warn("ws subscribe failed", "module", "ws", "room", roomID, "err", err)
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Error: "room unavailable"}})
		return
	}
	defer sess.sub.Cancel()
	stopFollow := sess.sub.Follow(sess.viewer)
	defer stopFollow()

	go s.writeLoop(ctx, sess)
	s.readLoop(ctx, sess)
}

func (s *Server) verify(token string) (*domain.Viewer, error) {
	if s.verifier == nil {
		return nil, identity.ErrInvalidToken
	}
	return s.verifier.Verify(token, time.Now())
}

func (s *Server) readLoop(ctx context.Context, sess *session) {
	c := sess.conn
	c.conn.SetReadLimit(1 << 16)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.Send(errorMessage("invalid json"))
			continue
		}
		if out := s.dispatch(ctx, sess, msg); out != nil {
			_ = c.Send(*out)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, sess *session, msg Message) *Message {
	switch msg.Type {
	case TypeIdentify:
		var p IdentifyPayload
		if decode(msg.Payload, &p) != nil {
			return ptr(errorMessage("invalid payload"))
		}
		v, err := s.verify(p.AccessToken)
		if err != nil {
			return ptr(errorMessage("invalid token"))
		}
		sess.viewer.SignIn(*v)
		return &Message{Type: TypeIdentity, Payload: IdentityPayload{Viewer: v}}

	case TypeSignOut:
		sess.viewer.SignOut()
		return &Message{Type: TypeIdentity, Payload: IdentityPayload{}}

	case TypeSelectDelete:
		var p QuestionPayload
		if decode(msg.Payload, &p) != nil || p.QuestionID == "" {
			return ptr(errorMessage("questionId required"))
		}
		sess.confirm.Select(p.QuestionID)
		return &Message{Type: TypeDeletePending, Payload: QuestionPayload{QuestionID: p.QuestionID}}

	case TypeConfirmDelete:
		if _, err := sess.confirm.Confirm(ctx); err != nil {
			return ptr(s.failure(sess, "confirm_delete", err))
		}
		return &Message{Type: TypeDeletePending, Payload: QuestionPayload{}}

	case TypeCancelDelete:
		sess.confirm.Cancel()
		return &Message{Type: TypeDeletePending, Payload: QuestionPayload{}}

	case TypeToggleLike:
		var p QuestionPayload
		if decode(msg.Payload, &p) != nil || p.QuestionID == "" {
			return ptr(errorMessage("questionId required"))
		}
		_, err := s.mutations.ToggleLike(ctx, sess.roomID, p.QuestionID, sess.viewer.Current(), currentLike(sess.sub, p.QuestionID))
		if err != nil {
			return ptr(s.failure(sess, "toggle_like", err))
		}
		// новое состояние придёт через подписку
		return nil

	case TypePing:
		return &Message{Type: TypePong}

	default:
		// ignore
		return nil
	}
}

func (s *Server) writeLoop(ctx context.Context, sess *session) {
	c := sess.conn
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	wasClosed := false
	for {
		select {
		case u, ok := <-sess.sub.Updates():
			if !ok {
				return
			}
			for _, msg := range render(u, &wasClosed) {
				if err := c.Send(msg); err != nil {
					slog.Debug("ws send failed", "module", "ws", "room", sess.roomID, "err", err)
					_ = c.Close()
					return
				}
			}
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				_ = c.Close()
				return
			}
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

// render превращает публикацию в сообщения. room_closed уходит один раз,
// при первом view с closed=true.
func render(u roomsync.Update, wasClosed *bool) []Message {
	switch {
	case errors.Is(u.Err, domain.ErrRoomNotFound):
		return []Message{{Type: TypeRoomNotFound, Payload: RoomRefPayload{RoomID: u.View.ID}}}
	case u.Err != nil:
		slog.Warn("ws room update failed", "module", "ws", "room", u.View.ID, "err", u.Err)
		return []Message{errorMessage("room unavailable")}
	}

	out := []Message{{Type: TypeRoomState, Payload: u.View}}
	if u.View.Closed && !*wasClosed {
		out = append(out, Message{Type: TypeRoomClosed, Payload: RoomRefPayload{RoomID: u.View.ID}})
	}
	*wasClosed = u.View.Closed
	return out
}

func (s *Server) failure(sess *session, op string, err error) Message {
	switch {
	case errors.Is(err, domain.ErrViewerRequired),
		errors.Is(err, domain.ErrAlreadyLiked),
		errors.Is(err, domain.ErrNothingToConfirm),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrLikeRequired):
		return errorMessage(err.Error())
	}
	slog.Error("ws "+op+" failed", "module", "ws", "room", sess.roomID, "err", err)
	return errorMessage("internal error")
}

// currentLike — likeId зрителя из последнего опубликованного view.
func currentLike(sub *roomsync.Subscription, questionID domain.QuestionID) domain.LikeID {
	u, ok := sub.Latest()
	if !ok || u.Err != nil {
		return ""
	}
	for _, q := range u.View.Questions {
		if q.ID == questionID {
			return q.LikeID
		}
	}
	return ""
}

// --- helpers ---

func decode(payload any, dst any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

func errorMessage(text string) Message {
	return Message{Type: TypeError, Payload: ErrorPayload{Error: text}}
}

func ptr(m Message) *Message { return &m }
