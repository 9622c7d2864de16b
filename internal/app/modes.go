package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/basketopt/internal/server"
	"github.com/alanyoungcy/basketopt/internal/server/handler"
	"github.com/alanyoungcy/basketopt/internal/server/ws"
	"github.com/alanyoungcy/basketopt/internal/worker"
)

// ServerMode serves the HTTP API and the WebSocket relay.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// WorkerMode consumes queued optimization requests.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startWorker(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the server and the worker in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startWorker(ctx, g, deps)
	return g.Wait()
}

func (a *App) startWorker(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	pool := worker.NewPool(deps.EventBus, deps.Service, worker.Config{
		Concurrency:  a.cfg.Worker.Concurrency,
		BatchSize:    a.cfg.Worker.BatchSize,
		PollInterval: a.cfg.Worker.PollInterval.Duration,
		RunTimeout:   a.cfg.Worker.RunTimeout.Duration,
		Group:        a.cfg.Worker.Group,
		Consumer:     a.cfg.Worker.Consumer,
	}, a.logger)
	g.Go(func() error {
		return pool.Run(ctx)
	})
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.EventBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	var reports handler.ReportReader
	if deps.ReportReader != nil {
		reports = deps.ReportReader
	}
	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		WriteTimeout:    a.cfg.Worker.RunTimeout.Duration,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.Checks, a.logger),
		Orders: handler.NewOrderHandler(deps.Service, reports, a.logger),
	}, deps.RateLimiter, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down", slog.Int("port", a.cfg.Server.Port))
		return srv.Shutdown(shutCtx)
	})
}
