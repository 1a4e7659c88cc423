package grpcx

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cwrk-planet/qaroom/internal/domain"
	"github.com/cwrk-planet/qaroom/internal/identity"
	"github.com/cwrk-planet/qaroom/internal/roomsync"
	"github.com/cwrk-planet/qaroom/internal/service"
	"github.com/cwrk-planet/qaroom/internal/store/memory"
)

var secret = []byte("grpc-secret")

type env struct {
	svc    *service.MutationService
	conn   *grpc.ClientConn
	sign   func(domain.Viewer) string
	srv    *Server
	gs     *grpc.Server
	health *health.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.New()
	verifier := identity.NewHMACVerifier(secret, "", "", time.Minute)
	srv := NewServer(roomsync.New(st), verifier)
	gs, hs := NewGRPCServer(srv, time.Second)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = cc.Close()
		hs.Shutdown()
		gs.Stop()
		_ = st.Close()
	})

	signer := identity.NewHMACSigner(secret, "", "", time.Hour)
	return &env{
		svc:  service.NewMutationService(st, nil),
		conn: cc,
		sign: func(v domain.Viewer) string {
			tok, err := signer.Sign(v, time.Now())
			require.NoError(t, err)
			return tok
		},
		srv:    srv,
		gs:     gs,
		health: hs,
	}
}

func TestGetRoom(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roomID, err := e.svc.CreateRoom(ctx, "Demo", "mod")
	require.NoError(t, err)
	qid, err := e.svc.SubmitQuestion(ctx, roomID, "Q1", &domain.Viewer{ID: "bob", Name: "Bob"})
	require.NoError(t, err)
	likeID, err := e.svc.LikeQuestion(ctx, roomID, qid, "ann")
	require.NoError(t, err)

	anon, err := NewClient(e.conn, "").GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, "Demo", anon.Title)
	require.Len(t, anon.Questions, 1)
	assert.Equal(t, 1, anon.Questions[0].LikedCount)
	assert.Empty(t, anon.Questions[0].LikeID)

	ann, err := NewClient(e.conn, e.sign(domain.Viewer{ID: "ann"})).GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, likeID, ann.Questions[0].LikeID)

	_, err = NewClient(e.conn, "").GetRoom(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = NewClient(e.conn, "garbage").GetRoom(ctx, roomID)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestWatchRoom(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	roomID, err := e.svc.CreateRoom(ctx, "Live", "mod")
	require.NoError(t, err)

	done := errors.New("done")
	var seen []domain.RoomView
	submitted := false

	err = NewClient(e.conn, "").WatchRoom(ctx, roomID, func(v domain.RoomView, err error) error {
		require.NoError(t, err)
		seen = append(seen, v)
		if !submitted {
			submitted = true
			_, err := e.svc.SubmitQuestion(ctx, roomID, "Hello?", &domain.Viewer{ID: "bob"})
			require.NoError(t, err)
			return nil
		}
		if len(v.Questions) == 1 {
			return done
		}
		return nil
	})
	require.ErrorIs(t, err, done)
	assert.Empty(t, seen[0].Questions)
	assert.Equal(t, "Hello?", seen[len(seen)-1].Questions[0].Content)
}

func TestShutdownEndsWatchStreams(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	roomID, err := e.svc.CreateRoom(ctx, "Live", "mod")
	require.NoError(t, err)

	started := make(chan struct{})
	watchErr := make(chan error, 1)
	go func() {
		var once sync.Once
		watchErr <- NewClient(e.conn, "").WatchRoom(ctx, roomID, func(domain.RoomView, error) error {
			once.Do(func() { close(started) })
			return nil
		})
	}()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("no room_state on the stream")
	}

	// тот же порядок, что и в serve
	e.health.Shutdown()
	e.srv.Shutdown()
	stopped := make(chan struct{})
	go func() {
		e.gs.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("GracefulStop is blocked by an open WatchRoom stream")
	}
	select {
	case err := <-watchErr:
		assert.Equal(t, codes.Unavailable, status.Code(err))
	case <-time.After(3 * time.Second):
		t.Fatal("WatchRoom did not return")
	}
}

func TestWatchRoom_MissingAndInvalid(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := NewClient(e.conn, "").WatchRoom(ctx, "missing", func(_ domain.RoomView, err error) error {
		return err
	})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	err = NewClient(e.conn, "").WatchRoom(ctx, "bad/id", func(domain.RoomView, error) error { return nil })
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	resp, err := healthpb.NewHealthClient(e.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestUnaryInterceptorRecoversPanic(t *testing.T) {
	icpt := UnaryServerInterceptor(0)
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Panic"}

	_, err := icpt(context.Background(), nil, info, func(ctx context.Context, _ any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))

	_, err = icpt(context.Background(), nil, info, func(ctx context.Context, _ any) (any, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok, "guard deadline is set")
		return "ok", nil
	})
	assert.NoError(t, err)
}
