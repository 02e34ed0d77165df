// Package server exposes ladder planning and backtests over HTTP and streams
// grid events to websocket clients.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rustyeddy/gridtrader/events"
	"github.com/rustyeddy/gridtrader/fill"
	"github.com/rustyeddy/gridtrader/journal"
	"github.com/rustyeddy/gridtrader/market/data"
	"github.com/rustyeddy/gridtrader/metrics"
	"github.com/shopspring/decimal"
)

// Options configures a Server. Provider is required for backtests.
type Options struct {
	Provider data.Provider
	Journal  journal.Journal
	Logger   *slog.Logger

	// Defaults for backtest requests that leave them out.
	InitialCapital decimal.Decimal
	Fill           fill.Config
	Seed           int64
	Dataset        string
	OrgDir         string

	// RequestTimeout bounds every API call; zero means 60s.
	RequestTimeout time.Duration
}

type Server struct {
	opts   Options
	log    *slog.Logger
	bus    *events.Bus
	hub    *Hub
	router chi.Router
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}

	s := &Server{
		opts: opts,
		log:  opts.Logger,
		bus:  events.NewBus(),
		hub:  NewHub(opts.Logger),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "gridtrader"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws", s.hub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))
			r.Post("/ladder", s.handleLadder)
			r.Post("/ladder/two-point", s.handleTwoPoint)
			r.Post("/backtest", s.handleBacktest)
		})
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Bus is where backtest events are published.
func (s *Server) Bus() *events.Bus { return s.bus }

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start runs the hub and forwards bus events to it until ctx is done.
func (s *Server) Start(ctx context.Context) {
	ch, cancel := s.bus.Subscribe(256)
	go s.hub.Run(ctx)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				s.hub.Publish(e)
			}
		}
	}()
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.Start(ctx)

	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("gridtrader listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	s.bus.Close()
	return nil
}
