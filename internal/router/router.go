package router

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"guruchat-backend/internal/handlers"
	"guruchat-backend/internal/metrics"
	"guruchat-backend/internal/middleware"
	"guruchat-backend/internal/websocket"
)

type Deps struct {
	JWTAuth        *middleware.JWTAuth
	AuthLimiter    *middleware.RateLimiter
	AuthHandler    *handlers.AuthHandler
	GuruHandler    *handlers.GuruHandler
	ChatHandler    *handlers.ChatHandler
	HistoryHandler *handlers.HistoryHandler
	WSHub          *websocket.Hub
	Metrics        *metrics.Collector
	Pages          fs.FS // page HTML at the root, assets under static/
	HealthCheck    func(ctx context.Context) error
	FrontendURL    string
	Log            *zap.Logger
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(d.Log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{d.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(d.Metrics.Middleware)
	r.Use(d.JWTAuth.Gatekeeper)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if d.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := d.HealthCheck(ctx); err != nil {
				d.Log.Warn("health check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {

		// ──── Auth Routes ────
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(d.AuthLimiter.Middleware)
				r.Post("/register", d.AuthHandler.Register)
				r.Post("/login", d.AuthHandler.Login)
			})

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(d.JWTAuth.Middleware)
				r.Post("/logout", d.AuthHandler.Logout)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(d.JWTAuth.Middleware)

			// ──── Guru Routes ────
			r.Get("/gurus", d.GuruHandler.List)
			r.Get("/gurus/{id}", d.GuruHandler.Get)

			// ──── Chat Routes ────
			r.Post("/chat", d.ChatHandler.Chat)
			r.Get("/chats", d.HistoryHandler.Get)

			// ──── WebSocket ────
			r.Get("/ws", d.WSHub.HandleWebSocket)
		})
	})

	// ──── Pages ────
	if d.Pages != nil {
		mountPages(r, d.Pages)
	}

	return r
}

func mountPages(r chi.Router, pages fs.FS) {
	page := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			data, err := fs.ReadFile(pages, name)
			if err != nil {
				http.NotFound(w, req)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			w.Write(data)
		}
	}

	r.Get("/", page("index.html"))
	r.Get("/chat", page("chat.html"))
	r.Get("/login", page("login.html"))
	r.Get("/register", page("register.html"))

	if static, err := fs.Sub(pages, "static"); err == nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}
}
