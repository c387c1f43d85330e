package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"paidqa/internal/auth"
	"paidqa/internal/metrics"
	"paidqa/internal/money"
	"paidqa/internal/realtime"
	"paidqa/internal/service"
	"paidqa/internal/storage"
)

// Users is the account storage the API reads and registers into.
type Users interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*storage.User, error)
	CreateUser(ctx context.Context, telegramID int64, username, firstName string, welcomeBonus money.Amount) (*storage.User, error)
	ListTransactions(ctx context.Context, userID int64, limit int) ([]*storage.Transaction, error)
	Ping(ctx context.Context) error
}

// Config wires the HTTP API.
type Config struct {
	Escrow       *service.EscrowService
	Users        Users
	Hub          *realtime.Hub
	InitData     *auth.Validator
	Operators    *auth.OperatorAuth
	RateLimiter  *RateLimiter
	WelcomeBonus money.Amount
	// StaticDir, when set, is served at the root for the Mini App.
	StaticDir string
}

// API holds the dependencies shared by the handlers.
type API struct {
	escrow       *service.EscrowService
	users        Users
	hub          *realtime.Hub
	welcomeBonus money.Amount
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg Config) http.Handler {
	api := &API{
		escrow:       cfg.Escrow,
		users:        cfg.Users,
		hub:          cfg.Hub,
		welcomeBonus: cfg.WelcomeBonus,
	}

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimiter != nil {
		limit = cfg.RateLimiter.Middleware
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", api.HandleHealth)
	r.Get("/api/ping", PingHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(cfg.InitData.Middleware)

		r.Get("/api/me", api.HandleMe)
		r.Get("/api/me/transactions", api.HandleTransactions)
		r.Get("/api/ws", api.HandleWS)
		r.Get("/api/conversations", api.HandleConversations)
		r.Get("/api/conversations/{conversationID}/messages", api.HandleMessages)
		r.With(limit).Post("/api/conversations/{conversationID}/messages", api.HandleSendMessage)

		r.Route("/api/questions", func(r chi.Router) {
			r.Get("/my-asked", api.HandleMyAsked)
			r.Get("/my-received", api.HandleMyReceived)
			r.Get("/conversation/{userID}", api.HandleConversation)
			r.Get("/{id}", api.HandleGetQuestion)

			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.Post("/", api.HandleCreateQuestion)
				r.Post("/{id}/accept", api.HandleAccept)
				r.Post("/{id}/reject", api.HandleReject)
				r.Post("/{id}/answer", api.HandleAnswer)
				r.Post("/{id}/dispute", api.HandleDispute)
			})
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(cfg.Operators.Middleware)
		r.Get("/disputes", api.HandleListDisputes)
		r.Get("/questions/{id}", api.HandleInspectQuestion)
		r.Post("/questions/{id}/resolve", api.HandleResolve)
	})

	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	return r
}
