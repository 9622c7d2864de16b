package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// Config tunes engine selection and the materialisation ceiling.
type Config struct {
	Engine          string // auto, direct or batch
	DirectThreshold int64  // auto picks the direct engine up to this many combinations
	MaxCombinations int64  // hard ceiling; larger spaces fail with CapacityExceededError
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Engine:          EngineAuto,
		DirectThreshold: 50_000,
		MaxCombinations: 2_000_000,
	}
}

// Input is everything one optimization run needs.
type Input struct {
	OrderID    int64
	Items      []domain.RequestedItem
	Offers     []domain.OfferRow
	Exclusions domain.Exclusions
}

// Optimizer runs the load, score and select pipeline for one order at a
// time. It holds no per-order state, so one Optimizer may serve concurrent
// callers.
type Optimizer struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Optimizer that logs through logger.
func New(cfg Config, logger *slog.Logger) *Optimizer {
	return &Optimizer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "optimizer")),
		now:    time.Now,
	}
}

// Optimize selects the best basket and its mono companions for one order.
// Fatal conditions are reported before scoring starts as NoCandidatesError,
// ConfigurationError or CapacityExceededError.
func (o *Optimizer) Optimize(ctx context.Context, in Input) (*domain.OptimizationResult, error) {
	start := o.now()

	c, warnings, err := LoadCandidates(in.Offers, in.Items, in.Exclusions)
	if err != nil {
		return nil, fmt.Errorf("optimizer: load order %d: %w", in.OrderID, err)
	}
	space, err := NewSpace(c)
	if err != nil {
		return nil, fmt.Errorf("optimizer: order %d: %w", in.OrderID, err)
	}
	engine, err := ChooseEngine(o.cfg, space.Size())
	if err != nil {
		return nil, fmt.Errorf("optimizer: order %d: %w", in.OrderID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.logger.DebugContext(ctx, "optimizer: scoring",
		slog.Int64("order_id", in.OrderID),
		slog.Int("items", c.NumItems()),
		slog.Int("offers", len(c.Offers)),
		slog.Int("vendors", c.NumVendors()),
		slog.Int64("combinations", space.Size()),
		slog.Int64("estimated_bytes", space.EstimateBytes()),
		slog.String("engine", engine.Name()),
	)

	scores := engine.Score(space)
	sel := Select(space, scores)
	warnings = append(warnings, sel.Warnings...)

	res := &domain.OptimizationResult{
		OrderID:      in.OrderID,
		RunID:        uuid.NewString(),
		Status:       domain.StatusSuccess,
		Engine:       engine.Name(),
		Combinations: space.Size(),
		Baskets:      Materialize(space, scores, sel),
		Warnings:     warnings,
		StartedAt:    start,
	}
	if res.Warnings == nil {
		res.Warnings = []domain.Warning{}
	}
	res.Elapsed = o.now().Sub(start)

	o.logger.InfoContext(ctx, "optimizer: done",
		slog.Int64("order_id", in.OrderID),
		slog.String("run_id", res.RunID),
		slog.String("engine", res.Engine),
		slog.Int64("combinations", res.Combinations),
		slog.Int("baskets", len(res.Baskets)),
		slog.Int("warnings", len(res.Warnings)),
		slog.Duration("elapsed", res.Elapsed),
		slog.Float64("combinations_per_sec", throughput(res.Combinations, res.Elapsed)),
	)
	return res, nil
}

// Materialize turns selected picks into baskets with rounded money and a
// per-vendor breakdown. Ranks follow the selection order.
func Materialize(s *Space, sc *Scores, sel Selection) []domain.Basket {
	c := s.c
	ce := NewCostEngine(c)
	out := make([]domain.Basket, 0, len(sel.Picks))
	for i, p := range sel.Picks {
		b := domain.Basket{
			Rank:             i + 1,
			CombinationIndex: p.Index,
			Kind:             p.Kind,
			IsMono:           p.IsMono,
			Offers:           make([]domain.CandidateOffer, 0, len(p.Locals)),
			Metrics:          RoundMetrics(sc.Metrics(p.Index)),
		}
		for item, l := range p.Locals {
			b.Offers = append(b.Offers, c.Offers[c.Offset[item]+int(l)])
		}
		for _, line := range ce.Evaluate(p.Locals).Vendors {
			v := c.Vendors[line.Slot]
			b.Vendors = append(b.Vendors, domain.VendorCharge{
				VendorID:       v.ID,
				VendorName:     v.Name,
				Subtotal:       Round2(line.Subtotal),
				MinOrderAmount: Round2(v.MinOrderAmount),
				Topup:          Round2(line.Topup),
				DeliveryFee:    Round2(line.Fee),
			})
		}
		out = append(out, b)
	}
	return out
}

func throughput(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
