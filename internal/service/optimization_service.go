// Package service orchestrates optimization runs across the stores, caches
// and notification channels.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/basketopt/internal/domain"
	"github.com/alanyoungcy/basketopt/internal/optimizer"
)

// RunNotifier alerts operators about finished runs.
type RunNotifier interface {
	NotifyRun(ctx context.Context, s domain.ResultSummary) error
}

// Deps are the collaborators of an OptimizationService. Offers, Exclusions,
// Results and Locks are required; the rest may be nil.
type Deps struct {
	Offers     domain.OfferStore
	Exclusions domain.ExclusionStore
	Results    domain.ResultStore
	Locks      domain.LockManager
	Cache      domain.ResultCache
	Bus        domain.EventBus
	Audit      domain.AuditStore
	Exporter   domain.ReportExporter
	Notifier   RunNotifier
}

// Config tunes the service.
type Config struct {
	Optimizer optimizer.Config
	LockTTL   time.Duration
}

// OrderResult is the latest known outcome of an order.
type OrderResult struct {
	Summary domain.ResultSummary `json:"summary"`
	Baskets []domain.Basket      `json:"baskets"`
}

// OptimizationService runs the optimizer for one order end to end.
type OptimizationService struct {
	deps   Deps
	opt    *optimizer.Optimizer
	cfg    Config
	logger *slog.Logger
}

// NewOptimizationService creates an OptimizationService.
func NewOptimizationService(deps Deps, cfg Config, logger *slog.Logger) *OptimizationService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &OptimizationService{
		deps:   deps,
		opt:    optimizer.New(cfg.Optimizer, logger),
		cfg:    cfg,
		logger: logger.With(slog.String("component", "optimization_service")),
	}
}

// Run optimizes one order while holding its lock and returns the result.
// Optimization outcomes such as no data or too many combinations are
// reported through the result status; the error is reserved for lock
// contention, store failures and cancellation.
func (s *OptimizationService) Run(ctx context.Context, orderID int64) (*domain.OptimizationResult, error) {
	unlock, err := s.deps.Locks.Acquire(ctx, domain.OrderLockKey(orderID), s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("optimization_service: lock order %d: %w", orderID, err)
	}
	defer unlock()

	in, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	res, err := s.opt.Optimize(ctx, in)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("optimization_service: order %d: %w", orderID, ctxErr)
		}
		status, msg := domain.StatusFor(err)
		s.logger.WarnContext(ctx, "optimization_service: run did not succeed",
			slog.Int64("order_id", orderID),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
		res = &domain.OptimizationResult{
			OrderID:   orderID,
			RunID:     uuid.NewString(),
			Status:    status,
			Message:   msg,
			Baskets:   []domain.Basket{},
			Warnings:  []domain.Warning{},
			StartedAt: started,
			Elapsed:   time.Since(started),
		}
		var capErr *domain.CapacityExceededError
		if errors.As(err, &capErr) {
			res.Combinations = capErr.Combinations
		}
	}

	if err := s.persist(ctx, res); err != nil {
		return nil, err
	}
	s.finish(ctx, res)
	return res, nil
}

func (s *OptimizationService) load(ctx context.Context, orderID int64) (optimizer.Input, error) {
	items, err := s.deps.Offers.ListRequestedItems(ctx, orderID)
	if err != nil {
		return optimizer.Input{}, fmt.Errorf("optimization_service: load items of order %d: %w", orderID, err)
	}
	offers, err := s.deps.Offers.ListOffers(ctx, orderID)
	if err != nil {
		return optimizer.Input{}, fmt.Errorf("optimization_service: load offers of order %d: %w", orderID, err)
	}
	excl, err := s.deps.Exclusions.ForOrder(ctx, orderID)
	if err != nil {
		return optimizer.Input{}, fmt.Errorf("optimization_service: load exclusions of order %d: %w", orderID, err)
	}
	return optimizer.Input{OrderID: orderID, Items: items, Offers: offers, Exclusions: excl}, nil
}

func (s *OptimizationService) persist(ctx context.Context, res *domain.OptimizationResult) error {
	if res.Status == domain.StatusSuccess {
		if err := s.deps.Results.Replace(ctx, res); err != nil {
			return fmt.Errorf("optimization_service: store result of order %d: %w", res.OrderID, err)
		}
		return nil
	}
	rec := domain.RunRecord{
		OrderID:      res.OrderID,
		RunID:        res.RunID,
		Status:       res.Status,
		Message:      res.Message,
		Engine:       res.Engine,
		Combinations: res.Combinations,
		Warnings:     res.Warnings,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.StartedAt.Add(res.Elapsed),
	}
	if err := s.deps.Results.RecordRun(ctx, rec); err != nil {
		return fmt.Errorf("optimization_service: record run of order %d: %w", res.OrderID, err)
	}
	return nil
}

// finish runs the best-effort side effects of a persisted run. Failures are
// logged and never change the outcome.
func (s *OptimizationService) finish(ctx context.Context, res *domain.OptimizationResult) {
	log := s.logger.With(slog.Int64("order_id", res.OrderID), slog.String("run_id", res.RunID))
	summary := res.Summarize()

	if s.deps.Exporter != nil && res.Status == domain.StatusSuccess {
		path, err := s.deps.Exporter.Export(ctx, res)
		if err != nil {
			log.WarnContext(ctx, "optimization_service: export report failed", slog.String("error", err.Error()))
		} else if err := s.deps.Results.SetReportPath(ctx, res.RunID, path); err != nil {
			log.WarnContext(ctx, "optimization_service: store report path failed", slog.String("error", err.Error()))
		} else {
			summary.ReportPath = path
		}
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(ctx, summary); err != nil {
			log.WarnContext(ctx, "optimization_service: cache summary failed", slog.String("error", err.Error()))
		}
	}

	if s.deps.Bus != nil {
		payload, err := json.Marshal(domain.OptimizationEvent{Type: "optimization_" + string(res.Status), Summary: summary})
		if err == nil {
			err = s.deps.Bus.Publish(ctx, domain.ChannelOptimization, payload)
		}
		if err != nil {
			log.WarnContext(ctx, "optimization_service: publish event failed", slog.String("error", err.Error()))
		}
	}

	if s.deps.Audit != nil {
		detail := map[string]any{
			"order_id":     res.OrderID,
			"run_id":       res.RunID,
			"status":       string(res.Status),
			"engine":       res.Engine,
			"combinations": res.Combinations,
			"baskets":      len(res.Baskets),
		}
		if res.Message != "" {
			detail["message"] = res.Message
		}
		if err := s.deps.Audit.Log(ctx, "optimization_run", detail); err != nil {
			log.WarnContext(ctx, "optimization_service: audit log failed", slog.String("error", err.Error()))
		}
	}

	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.NotifyRun(ctx, summary); err != nil {
			log.WarnContext(ctx, "optimization_service: notify failed", slog.String("error", err.Error()))
		}
	}
}

// Enqueue queues an order for the worker pool.
func (s *OptimizationService) Enqueue(ctx context.Context, orderID int64) error {
	if s.deps.Bus == nil {
		return fmt.Errorf("optimization_service: enqueue order %d: no event bus configured", orderID)
	}
	payload, err := json.Marshal(domain.OptimizeRequest{OrderID: orderID, RequestedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("optimization_service: marshal request: %w", err)
	}
	if err := s.deps.Bus.StreamAppend(ctx, domain.StreamOptimize, payload); err != nil {
		return fmt.Errorf("optimization_service: enqueue order %d: %w", orderID, err)
	}
	s.logger.DebugContext(ctx, "optimization_service: order enqueued", slog.Int64("order_id", orderID))
	return nil
}

// Result returns the latest outcome of an order. The summary comes from the
// cache when present, otherwise from the latest stored run. It returns
// domain.ErrNotFound if the order was never optimized.
func (s *OptimizationService) Result(ctx context.Context, orderID int64) (OrderResult, error) {
	summary, err := s.cachedSummary(ctx, orderID)
	cached := err == nil
	if !cached {
		rec, err := s.deps.Results.LatestRun(ctx, orderID)
		if err != nil {
			return OrderResult{}, fmt.Errorf("optimization_service: result of order %d: %w", orderID, err)
		}
		summary = summaryOf(rec)
	}

	out := OrderResult{Summary: summary, Baskets: []domain.Basket{}}
	if summary.Status != domain.StatusSuccess {
		return out, nil
	}
	baskets, err := s.deps.Results.ListBaskets(ctx, orderID)
	if err != nil {
		return OrderResult{}, fmt.Errorf("optimization_service: baskets of order %d: %w", orderID, err)
	}
	out.Baskets = baskets
	if !cached {
		out.Summary.Baskets = len(baskets)
		if len(baskets) > 0 {
			out.Summary.BestTotalCost = baskets[0].Metrics.TotalCost
			out.Summary.BestKey = baskets[0].Metrics.TotalLossAndDelivery
		}
	}
	return out, nil
}

func (s *OptimizationService) cachedSummary(ctx context.Context, orderID int64) (domain.ResultSummary, error) {
	if s.deps.Cache == nil {
		return domain.ResultSummary{}, domain.ErrNotFound
	}
	summary, err := s.deps.Cache.Get(ctx, orderID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "optimization_service: cache read failed",
			slog.Int64("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
	return summary, err
}

func summaryOf(rec domain.RunRecord) domain.ResultSummary {
	return domain.ResultSummary{
		OrderID:            rec.OrderID,
		RunID:              rec.RunID,
		Status:             rec.Status,
		Message:            rec.Message,
		Engine:             rec.Engine,
		Combinations:       rec.Combinations,
		MissingMonoVendors: domain.MissingMonoVendors(rec.Warnings),
		ReportPath:         rec.ReportPath,
		FinishedAt:         rec.FinishedAt,
	}
}
