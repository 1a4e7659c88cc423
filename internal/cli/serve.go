package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/cwrk-planet/qaroom/config"
	"github.com/cwrk-planet/qaroom/internal/metrics"
	"github.com/cwrk-planet/qaroom/internal/roomsync"
	"github.com/cwrk-planet/qaroom/internal/service"
	grpcx "github.com/cwrk-planet/qaroom/internal/transport/grpc"
	httpx "github.com/cwrk-planet/qaroom/internal/transport/http"
	"github.com/cwrk-planet/qaroom/internal/transport/ws"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket API and the gRPC read API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			initLogger(cfg, rootOpts.Verbose)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting qaroom",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "store", cfg.Store.Driver)

	// --- store ---
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("store close", "err", err)
		}
	}()

	// --- tracing ---
	// экспортера нет: span нужны ради trace_id/span_id в логах
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// --- metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- auth ---
	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		return err
	}
	if verifier == nil {
		slog.Warn("auth is not configured, every viewer is anonymous")
	}

	// --- services ---
	mutations := service.NewMutationService(st, m)
	guard := service.NewLifecycleGuard(st)
	rooms := roomsync.New(st, roomsync.WithMetrics(m))

	// --- WS Hub & Server ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, rooms, mutations, verifier, m, ws.Options{
		PingEvery:    cfg.WS.PingInterval(),
		WriteTimeout: cfg.WS.WriteTimeoutDuration(),
	})

	// --- HTTP ---
	router := httpx.NewRouter(httpx.RouterDeps{
		Handler:  httpx.NewHandler(mutations, guard, rooms),
		WS:       wsServer.HandleWS,
		Verifier: verifier,
		Observer: m,
		Metrics:  metrics.Handler(reg),
		Health: func() error {
			hctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return st.ping(hctx)
		},
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// --- run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// --- gRPC ---
	if cfg.GRPC.Addr != "" {
		roomServer := grpcx.NewServer(rooms, verifier)
		grpcServer, health := grpcx.NewGRPCServer(roomServer, grpcx.DefaultCallTimeout)
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return err
		}
		g.Go(func() error {
			slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
			return grpcServer.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			health.Shutdown()
			roomServer.Shutdown()
			stopGRPC(grpcServer, cfg.HTTP.ShutdownTimeoutDuration())
			return nil
		})
	}

	// --- graceful shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeoutDuration())
		defer cancel()

		hub.CloseAll(ws.Message{Type: ws.TypeError, Payload: ws.ErrorPayload{Error: "server shutting down"}})
		return httpSrv.Shutdown(ctxShutdown)
	})

	err = g.Wait()
	slog.Info("stopped")
	return err
}

// stopGRPC ждёт GracefulStop не дольше timeout, потом рвёт соединения через Stop.
func stopGRPC(gs *grpc.Server, timeout time.Duration) {
	stopped := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		slog.Warn("grpc graceful stop timed out, forcing", "module", "grpc", "timeout", timeout)
		gs.Stop()
		<-stopped
	}
}
