package http

import (
	"net/http"
	"time"

	httpmw "github.com/cwrk-planet/qaroom/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterDeps struct {
	Handler  *Handler
	WS       http.HandlerFunc // GET /ws/rooms/{id}
	Verifier httpmw.TokenVerifier
	Observer httpmw.DurationObserver
	Metrics  http.Handler // GET /metrics
	Health   func() error

	CORSOrigins []string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httpmw.Observe(d.Observer))
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// WS endpoint, токен — в access_token
	if d.WS != nil {
		r.Get("/ws/rooms/{id}", d.WS)
	}

	// Bearer необязателен: чтение доступно анониму, мутации с автором требуют зрителя
	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.Auth(d.Verifier))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/rooms", func(rm chi.Router) {
			rm.Post("/", d.Handler.CreateRoom)

			rm.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", d.Handler.GetRoom)
				rr.Get("/join", d.Handler.JoinRoom)
				rr.Get("/admin", d.Handler.AdminEntry)
				rr.Post("/close", d.Handler.CloseRoom)

				rr.Post("/questions", d.Handler.SubmitQuestion)
				rr.Route("/questions/{qid}", func(rq chi.Router) {
					rq.Delete("/", d.Handler.DeleteQuestion)
					rq.Post("/answer", d.Handler.MarkAnswered)
					rq.Post("/highlight", d.Handler.HighlightQuestion)
					rq.Post("/likes", d.Handler.LikeQuestion)
					rq.Delete("/likes/{likeId}", d.Handler.UnlikeQuestion)
				})
			})
		})
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.Health != nil {
			if err := d.Health(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
