package optimizer

import (
	"fmt"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// Engine names accepted in Config.Engine.
const (
	EngineAuto   = "auto"
	EngineDirect = "direct"
	EngineBatch  = "batch"
)

// Engine scores every combination of a space.
type Engine interface {
	Name() string
	Score(s *Space) *Scores
}

// Scores holds the raw per-combination totals as columns indexed by
// combination index.
type Scores struct {
	Loss     []float64
	Goods    []float64
	Delivery []float64
	Topup    []float64
}

func newScores(n int) *Scores {
	return &Scores{
		Loss:     make([]float64, n),
		Goods:    make([]float64, n),
		Delivery: make([]float64, n),
		Topup:    make([]float64, n),
	}
}

// Len returns the number of scored combinations.
func (s *Scores) Len() int { return len(s.Loss) }

// Key returns the ranking key loss + topup + delivery of combination i.
func (s *Scores) Key(i int64) float64 {
	return s.Loss[i] + s.Topup[i] + s.Delivery[i]
}

// TotalCost returns goods + topup + delivery of combination i.
func (s *Scores) TotalCost(i int64) float64 {
	return s.Goods[i] + s.Topup[i] + s.Delivery[i]
}

// Metrics returns the raw metrics of combination i.
func (s *Scores) Metrics(i int64) domain.BasketMetrics {
	return totals{loss: s.Loss[i], goods: s.Goods[i], delivery: s.Delivery[i], topup: s.Topup[i]}.metrics()
}

// DirectEngine walks combination indices one at a time with an odometer.
type DirectEngine struct{}

func (DirectEngine) Name() string { return EngineDirect }

func (DirectEngine) Score(s *Space) *Scores {
	c := s.c
	n := int(s.size)
	out := newScores(n)
	sub := make([]float64, c.NumVendors())
	present := make([]bool, c.NumVendors())
	locals := make([]int32, s.Items())

	for row := 0; row < n; row++ {
		clear(sub)
		clear(present)
		var t totals
		c.accumulate(locals, sub, present, &t)
		for v := range sub {
			if !present[v] {
				continue
			}
			topup, fee := c.vendorCharge(v, sub[v])
			t.topup += topup
			t.delivery += fee
		}
		out.Loss[row], out.Goods[row] = t.loss, t.goods
		out.Delivery[row], out.Topup[row] = t.delivery, t.topup

		// Advance the odometer; the last item varies fastest.
		for i := len(locals) - 1; i >= 0; i-- {
			locals[i]++
			if int64(locals[i]) < s.radix[i] {
				break
			}
			locals[i] = 0
		}
	}
	return out
}

// BatchEngine materialises the full index matrix and evaluates whole columns:
// a gather and row-wise sum for loss and goods, then one segmented reduction
// per vendor for subtotals, topups and fees.
type BatchEngine struct{}

func (BatchEngine) Name() string { return EngineBatch }

func (BatchEngine) Score(s *Space) *Scores {
	c := s.c
	m := s.IndexMatrix()
	n := m.Rows
	out := newScores(n)

	for j := 0; j < m.Cols; j++ {
		off := c.Offset[j]
		for r, l := range m.Column(j) {
			g := off + int(l)
			out.Loss[r] += c.loss[g]
			out.Goods[r] += c.cost[g]
		}
	}

	sub := make([]float64, n)
	present := make([]bool, n)
	for v := 0; v < c.NumVendors(); v++ {
		clear(sub)
		clear(present)
		seen := false
		for j := 0; j < m.Cols; j++ {
			off := c.Offset[j]
			if !itemHasVendor(c, j, v) {
				continue
			}
			for r, l := range m.Column(j) {
				g := off + int(l)
				if int(c.vendor[g]) == v {
					sub[r] += c.cost[g]
					present[r] = true
					seen = true
				}
			}
		}
		if !seen {
			continue
		}
		for r := 0; r < n; r++ {
			if !present[r] {
				continue
			}
			topup, fee := c.vendorCharge(v, sub[r])
			out.Topup[r] += topup
			out.Delivery[r] += fee
		}
	}
	return out
}

func itemHasVendor(c *Candidates, item, v int) bool {
	for g := c.Offset[item]; g < c.Offset[item+1]; g++ {
		if int(c.vendor[g]) == v {
			return true
		}
	}
	return false
}

// ChooseEngine picks the engine for a space of the given size, once, before
// any scoring starts. Spaces above maxCombinations are rejected, and the
// ceiling itself must be positive.
func ChooseEngine(cfg Config, size int64) (Engine, error) {
	if cfg.MaxCombinations <= 0 {
		return nil, &domain.ConfigurationError{
			Field:  "max_combinations",
			Reason: fmt.Sprintf("must be positive, got %d", cfg.MaxCombinations),
		}
	}
	if size <= 0 {
		return nil, &domain.ConfigurationError{Field: "combinations", Reason: "count must be positive"}
	}
	if size > cfg.MaxCombinations {
		return nil, &domain.CapacityExceededError{Combinations: size, Limit: cfg.MaxCombinations}
	}
	switch cfg.Engine {
	case EngineDirect:
		return DirectEngine{}, nil
	case EngineBatch:
		return BatchEngine{}, nil
	case EngineAuto, "":
		if size <= cfg.DirectThreshold {
			return DirectEngine{}, nil
		}
		return BatchEngine{}, nil
	default:
		return nil, &domain.ConfigurationError{Field: "engine", Reason: fmt.Sprintf("unknown engine %q", cfg.Engine)}
	}
}
