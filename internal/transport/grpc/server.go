package grpcx

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/qaroom/internal/domain"
	"github.com/cwrk-planet/qaroom/internal/roomsync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const mdAuthorization = "authorization"

// Типы событий в WatchRoom, как в ws.
const (
	EventRoomState    = "room_state"
	EventRoomNotFound = "room_not_found"
)

type TokenVerifier interface {
	Verify(token string, now time.Time) (*domain.Viewer, error)
}

// Server отдаёт комнаты только на чтение: мутации идут через HTTP.
type Server struct {
	rooms    *roomsync.Synchronizer
	verifier TokenVerifier

	done     chan struct{}
	shutdown sync.Once
}

var _ RoomServiceServer = (*Server)(nil)

func NewServer(rooms *roomsync.Synchronizer, verifier TokenVerifier) *Server {
	return &Server{rooms: rooms, verifier: verifier, done: make(chan struct{})}
}

// Shutdown завершает открытые WatchRoom со статусом UNAVAILABLE. Вызывать до
// GracefulStop: иначе тот ждёт стримы, которые сами не кончаются.
func (s *Server) Shutdown() {
	s.shutdown.Do(func() { close(s.done) })
}

// NewGRPCServer собирает grpc.Server с интерсепторами, RoomService и health.
func NewGRPCServer(srv *Server, guard time.Duration) (*grpc.Server, *health.Server) {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(guard)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	Register(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	return gs, hs
}

// -------- methods --------

func (s *Server) GetRoom(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	viewer, err := s.viewerFromMD(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.rooms.Snapshot(ctx, domain.RoomID(in.GetValue()), viewer.UserID())
	if err != nil {
		return nil, mapErr(err)
	}
	return viewStruct(view)
}

// WatchRoom шлёт событие на каждую публикацию подписки. Отсутствие комнаты
// не завершает стрим: комната может появиться позже.
func (s *Server) WatchRoom(in *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	viewer, err := s.viewerFromMD(ctx)
	if err != nil {
		return err
	}
	roomID := domain.RoomID(in.GetValue())
	if !domain.ValidKey(string(roomID)) {
		return status.Error(codes.InvalidArgument, "invalid room id")
	}

	sub, err := s.rooms.Subscribe(ctx, roomID, viewer.UserID())
	if err != nil {
		return mapErr(err)
	}
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return status.Error(codes.Unavailable, "server shutting down")
		case u, ok := <-sub.Updates():
			if !ok {
				return nil
			}
			msg, err := eventStruct(u)
			if err != nil {
				return mapErr(err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// -------- helpers --------

// viewerFromMD — Authorization: Bearer <token>. Без заголовка зритель анонимный.
func (s *Server) viewerFromMD(ctx context.Context) (*domain.Viewer, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, nil
	}
	auth := first(md.Get(mdAuthorization))
	if auth == "" {
		return nil, nil
	}
	if !strings.HasPrefix(strings.ToLower(auth), "bearer ") || len(auth) <= 7 {
		return nil, status.Error(codes.Unauthenticated, "invalid authorization")
	}
	if s.verifier == nil {
		return nil, status.Error(codes.Unauthenticated, "tokens are not accepted")
	}
	v, err := s.verifier.Verify(strings.TrimSpace(auth[7:]), time.Now())
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	return v, nil
}

func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}

	return ss[0]
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func eventStruct(u roomsync.Update) (*structpb.Struct, error) {
	if errors.Is(u.Err, domain.ErrRoomNotFound) {
		return structpb.NewStruct(map[string]any{"type": EventRoomNotFound, "roomId": string(u.View.ID)})
	}
	if u.Err != nil {
		return nil, u.Err
	}
	view, err := viewMap(u.View)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"type": EventRoomState, "view": view})
}

func viewStruct(v domain.RoomView) (*structpb.Struct, error) {
	m, err := viewMap(v)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// viewMap переводит RoomView в map через JSON, чтобы поля совпадали с HTTP/WS.
func viewMap(v domain.RoomView) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
