// Package worker consumes queued optimization requests from the event bus
// stream and runs them with bounded concurrency.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// Runner optimizes one order.
type Runner interface {
	Run(ctx context.Context, orderID int64) (*domain.OptimizationResult, error)
}

// Config tunes the pool.
type Config struct {
	Concurrency  int
	BatchSize    int
	PollInterval time.Duration // block timeout of one stream read
	RunTimeout   time.Duration // zero means no per-run deadline
	// Group is the consumer group shared by every worker process. Requests
	// are delivered to one consumer of the group and stay pending until
	// acknowledged.
	Group    string
	Consumer string // defaults to the host name
}

// DefaultGroup is the consumer group used when Config.Group is empty.
const DefaultGroup = "basketopt-workers"

// Pool reads domain.StreamOptimize and runs each request through a Runner.
// Every run owns its own working set, so runs share nothing but the
// collaborators behind the Runner.
type Pool struct {
	bus    domain.EventBus
	runner Runner
	cfg    Config
	logger *slog.Logger
}

// NewPool creates a Pool.
func NewPool(bus domain.EventBus, runner Runner, cfg Config, logger *slog.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = cfg.Concurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "worker"
		if host, err := os.Hostname(); err == nil && host != "" {
			cfg.Consumer = host
		}
	}
	return &Pool{
		bus:    bus,
		runner: runner,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "worker")),
	}
}

// Run consumes the stream until ctx is cancelled. Entries left pending by an
// earlier run of this consumer are replayed first. An entry is acknowledged
// once its run ends, failed runs included, and stays pending when shutdown
// interrupts it. Only stream read errors other than cancellation end the loop.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "worker: started",
		slog.String("group", p.cfg.Group),
		slog.String("consumer", p.cfg.Consumer),
		slog.Int("concurrency", p.cfg.Concurrency),
		slog.Int("batch_size", p.cfg.BatchSize),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	readID := "0"
	for {
		if gctx.Err() != nil {
			break
		}
		msgs, err := p.bus.StreamGroupRead(gctx, domain.StreamOptimize, p.cfg.Group, p.cfg.Consumer, readID, p.cfg.BatchSize, p.cfg.PollInterval)
		if err != nil {
			if gctx.Err() != nil {
				break
			}
			_ = g.Wait()
			return fmt.Errorf("worker: read stream: %w", err)
		}
		if readID != ">" {
			if len(msgs) == 0 {
				readID = ">"
				continue
			}
			readID = msgs[len(msgs)-1].ID
		}

		for _, msg := range msgs {
			req, err := decodeRequest(msg)
			if err != nil {
				p.logger.WarnContext(gctx, "worker: dropping malformed request",
					slog.String("id", msg.ID),
					slog.String("error", err.Error()),
				)
				p.ack(gctx, msg.ID)
				continue
			}
			id := msg.ID
			g.Go(func() error {
				p.process(gctx, req)
				if gctx.Err() == nil {
					p.ack(gctx, id)
				}
				return nil
			})
		}
	}

	_ = g.Wait()
	p.logger.InfoContext(ctx, "worker: stopped")
	return nil
}

func (p *Pool) ack(ctx context.Context, id string) {
	if err := p.bus.StreamAck(ctx, domain.StreamOptimize, p.cfg.Group, id); err != nil {
		p.logger.WarnContext(ctx, "worker: ack failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pool) process(ctx context.Context, req domain.OptimizeRequest) {
	if p.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
		defer cancel()
	}

	log := p.logger.With(slog.Int64("order_id", req.OrderID))
	res, err := p.runner.Run(ctx, req.OrderID)
	switch {
	case errors.Is(err, domain.ErrLockHeld):
		log.InfoContext(ctx, "worker: order already being optimized")
	case err != nil:
		log.ErrorContext(ctx, "worker: run failed", slog.String("error", err.Error()))
	default:
		log.InfoContext(ctx, "worker: run finished",
			slog.String("run_id", res.RunID),
			slog.String("status", string(res.Status)),
			slog.Duration("queued_for", time.Since(req.RequestedAt)),
		)
	}
}

func decodeRequest(msg domain.StreamMessage) (domain.OptimizeRequest, error) {
	var req domain.OptimizeRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return req, err
	}
	if req.OrderID <= 0 {
		return req, fmt.Errorf("invalid order id %d", req.OrderID)
	}
	return req, nil
}
