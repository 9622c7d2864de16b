package optimizer

import "github.com/alanyoungcy/basketopt/internal/domain"

// vendorCharge returns the topup and delivery fee for one vendor at subtotal.
// The tier is looked up on the post-topup amount, and the fixed surcharge is
// always added.
func (c *Candidates) vendorCharge(v int, subtotal float64) (topup, fee float64) {
	amount := subtotal
	if m := c.minOrder[v]; m > 0 && subtotal < m {
		topup = m - subtotal
		amount = m
	}
	return topup, c.fees[v].fee(amount) + c.fixedFee[v]
}

// VendorLine is one vendor's share of a single combination.
type VendorLine struct {
	Slot     int
	Subtotal float64
	Topup    float64
	Fee      float64
}

// Evaluation is the full cost breakdown of a single combination.
type Evaluation struct {
	Metrics domain.BasketMetrics
	Vendors []VendorLine
}

// CostEngine prices individual combinations.
type CostEngine struct {
	c *Candidates
}

// NewCostEngine returns a CostEngine over c.
func NewCostEngine(c *Candidates) *CostEngine {
	return &CostEngine{c: c}
}

// Evaluate prices the combination given by per-item local offer indices.
// Vendors are reported in ascending vendor id order.
func (e *CostEngine) Evaluate(locals []int32) Evaluation {
	sub := make([]float64, e.c.NumVendors())
	present := make([]bool, e.c.NumVendors())
	var t totals
	e.c.accumulate(locals, sub, present, &t)

	var ev Evaluation
	for v := range sub {
		if !present[v] {
			continue
		}
		topup, fee := e.c.vendorCharge(v, sub[v])
		t.topup += topup
		t.delivery += fee
		ev.Vendors = append(ev.Vendors, VendorLine{Slot: v, Subtotal: sub[v], Topup: topup, Fee: fee})
	}
	ev.Metrics = t.metrics()
	return ev
}

// totals are the raw sums of one combination.
type totals struct {
	loss     float64
	goods    float64
	delivery float64
	topup    float64
}

func (t totals) metrics() domain.BasketMetrics {
	return domain.BasketMetrics{
		TotalLoss:            t.loss,
		TotalGoodsCost:       t.goods,
		TotalDeliveryCost:    t.delivery,
		TotalTopup:           t.topup,
		TotalCost:            t.goods + t.topup + t.delivery,
		TotalLossAndDelivery: t.loss + t.topup + t.delivery,
	}
}

// accumulate adds the item losses and costs of a combination in item order
// and fills per-vendor subtotals. sub and present must be zeroed.
func (c *Candidates) accumulate(locals []int32, sub []float64, present []bool, t *totals) {
	for i, l := range locals {
		g := c.Offset[i] + int(l)
		t.loss += c.loss[g]
		t.goods += c.cost[g]
		v := c.vendor[g]
		sub[v] += c.cost[g]
		present[v] = true
	}
}
