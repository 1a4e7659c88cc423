package httpmw

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/qaroom/internal/domain"
)

type ctxKey string

const ctxKeyViewer ctxKey = "viewer"

type TokenVerifier interface {
	Verify(token string, now time.Time) (*domain.Viewer, error)
}

// Auth кладёт зрителя из "Authorization: Bearer <token>" в контекст.
// Без заголовка запрос идёт дальше анонимно; кривой токен — 401.
// verifier == nil: токены не принимаются вовсе (только анонимный доступ).
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= 7 {
				writeUnauthorized(w, "malformed authorization header")
				return
			}
			if verifier == nil {
				writeUnauthorized(w, "token auth is not configured")
				return
			}

			viewer, err := verifier.Verify(strings.TrimSpace(auth[7:]), time.Now())
			if err != nil {
				slog.Debug("bearer rejected", "module", "http.auth", "err", err)
				writeUnauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), viewer)))
		})
	}
}

func WithViewer(ctx context.Context, v *domain.Viewer) context.Context {
	return context.WithValue(ctx, ctxKeyViewer, v)
}

// ViewerFromCtx возвращает зрителя или nil для анонима.
func ViewerFromCtx(ctx context.Context) *domain.Viewer {
	if v, ok := ctx.Value(ctxKeyViewer).(*domain.Viewer); ok {
		return v
	}
	return nil
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
