package httpmw

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cwrk-planet/qaroom/http"

type DurationObserver interface {
	ObserveHTTP(method, route string, code int, d time.Duration)
}

// Observe открывает span на запрос, пишет access-лог в slog и латентность
// по шаблону маршрута. trace_id из span попадает во все логи обработчика.
func Observe(obs DurationObserver) func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			r = r.WithContext(ctx)

			ww := middlewareChi.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.status_code", status),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			dur := time.Since(start)
			if obs != nil {
				obs.ObserveHTTP(r.Method, route, status, dur)
			}
			slog.InfoContext(ctx, "http request",
				"module", "http",
				"method", r.Method,
				"route", route,
				"status", status,
				"dur_ms", dur.Milliseconds(),
				"request_id", middlewareChi.GetReqID(ctx))
		})
	}
}
