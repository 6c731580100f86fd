package routes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lmstaker/core/state"
	"lmstaker/gateway/middleware"
	"lmstaker/indexer"
	"lmstaker/native/staker"
)

// EventLog serves the indexed event history.
type EventLog interface {
	Recent(ctx context.Context, eventType string, limit int) ([]indexer.Record, error)
}

type Config struct {
	Engine         *staker.Engine
	Store          *state.StakerStore
	Feeds          *state.Feeds
	Events         EventLog
	Stream         http.Handler
	MetricsHandler http.Handler
	Authenticator  *middleware.Authenticator
	RateLimiter    *middleware.RateLimiter
	Observability  *middleware.Observability
	CORS           middleware.CORSConfig
}

// New builds the HTTP API over the engine and its store.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("routes: engine required")
	}
	if cfg.Store == nil || cfg.Feeds == nil {
		return nil, fmt.Errorf("routes: store and feeds required")
	}
	auth := cfg.Authenticator
	if auth == nil {
		auth = middleware.NewAuthenticator(middleware.AuthConfig{}, nil)
	}
	api := &stakerRoutes{engine: cfg.Engine, store: cfg.Store, feeds: cfg.Feeds, events: cfg.Events}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// The limiter runs after authentication so buckets key on the caller.
	limit := func(g chi.Router) {
		if cfg.RateLimiter != nil {
			g.Use(cfg.RateLimiter.Middleware("api"))
		}
	}
	r.Route("/v1", func(sr chi.Router) {
		sr.Group(func(pub chi.Router) {
			pub.Use(auth.Middleware())
			limit(pub)
			api.mount(pub)
			if cfg.Stream != nil {
				pub.Handle("/events/ws", cfg.Stream)
			}
		})
		sr.Group(func(op chi.Router) {
			op.Use(auth.Middleware(middleware.ScopeOperator))
			limit(op)
			api.mountOperator(op)
		})
	})
	return r, nil
}

type stakerRoutes struct {
	engine *staker.Engine
	store  *state.StakerStore
	feeds  *state.Feeds
	events EventLog
}

func (sr *stakerRoutes) mount(r chi.Router) {
	r.Post("/incentives", sr.createIncentive)
	r.Get("/incentives", sr.listIncentives)
	r.Get("/incentives/{id}", sr.getIncentive)
	r.Post("/incentives/{id}/rewards", sr.addReward)
	r.Post("/incentives/{id}/end", sr.endIncentive)

	r.Post("/deposits", sr.createDeposit)
	r.Get("/deposits/{mint}", sr.getDeposit)
	r.Post("/deposits/{mint}/transfer", sr.transferDeposit)
	r.Post("/deposits/{mint}/withdraw", sr.withdrawDeposit)
	r.Post("/deposits/{mint}/stakes/{id}", sr.stake)
	r.Delete("/deposits/{mint}/stakes/{id}", sr.unstake)
	r.Get("/deposits/{mint}/stakes/{id}/preview", sr.previewReward)

	r.Post("/rewards", sr.createRewardAccount)
	r.Get("/rewards/{owner}", sr.listRewardAccounts)
	r.Post("/rewards/{token}/claim", sr.claimReward)

	r.Get("/balances/{token}/{owner}", sr.balance)
	r.Get("/events", sr.recentEvents)
}

func (sr *stakerRoutes) mountOperator(r chi.Router) {
	r.Post("/feeds/positions", sr.feedPosition)
	r.Post("/feeds/pools", sr.feedPool)
	r.Post("/feeds/lockers", sr.feedLocker)
	r.Post("/feeds/power", sr.feedPower)
	r.Post("/bank/mint", sr.mint)
}
