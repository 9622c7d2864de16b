package domain

import "time"

// Status is the terminal state of one optimization run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusNoData  Status = "no_data"
	StatusFailed  Status = "failed"
)

// BasketKind distinguishes the best basket from its single-vendor companions.
type BasketKind string

const (
	BasketBest BasketKind = "best"
	BasketMono BasketKind = "mono"
)

// BasketMetrics are the money totals of one combination. Values surfaced in
// results are rounded to two decimals.
type BasketMetrics struct {
	TotalLoss            float64 `json:"total_loss"`
	TotalGoodsCost       float64 `json:"total_goods_cost"`
	TotalDeliveryCost    float64 `json:"total_delivery_cost"`
	TotalTopup           float64 `json:"total_topup"`
	TotalCost            float64 `json:"total_cost"`
	TotalLossAndDelivery float64 `json:"total_loss_and_delivery"`
}

// VendorCharge is the delivery breakdown for one vendor inside a basket.
type VendorCharge struct {
	VendorID       int64   `json:"vendor_id"`
	VendorName     string  `json:"vendor_name"`
	Subtotal       float64 `json:"subtotal"`
	MinOrderAmount float64 `json:"min_order_amount"`
	Topup          float64 `json:"topup"`
	DeliveryFee    float64 `json:"delivery_fee"`
}

// Basket is one selected combination, fully materialised.
type Basket struct {
	Rank             int              `json:"rank"`
	CombinationIndex int64            `json:"combination_index"`
	Kind             BasketKind       `json:"kind"`
	IsMono           bool             `json:"is_mono"`
	Offers           []CandidateOffer `json:"offers"`
	Vendors          []VendorCharge   `json:"vendors"`
	Metrics          BasketMetrics    `json:"metrics"`
}

// WarningKind names a non-fatal condition attached to a result.
type WarningKind string

const (
	WarnAllVariantsExcluded WarningKind = "all_variants_excluded"
	WarnMissingMonoVendor   WarningKind = "missing_mono_vendor"
)

// Warning is a non-fatal diagnostic.
type Warning struct {
	Kind       WarningKind `json:"kind"`
	ItemID     int64       `json:"item_id,omitempty"`
	VendorID   int64       `json:"vendor_id,omitempty"`
	VendorName string      `json:"vendor_name,omitempty"`
}

// MissingMonoVendors returns the vendor names of every missing_mono_vendor warning.
func MissingMonoVendors(ws []Warning) []string {
	var out []string
	for _, w := range ws {
		if w.Kind == WarnMissingMonoVendor {
			out = append(out, w.VendorName)
		}
	}
	return out
}

// OptimizationResult is what one run hands to persistence and notification.
type OptimizationResult struct {
	OrderID      int64         `json:"order_id"`
	RunID        string        `json:"run_id"`
	Status       Status        `json:"status"`
	Message      string        `json:"message,omitempty"`
	Engine       string        `json:"engine,omitempty"`
	Combinations int64         `json:"combinations"`
	Baskets      []Basket      `json:"baskets"`
	Warnings     []Warning     `json:"warnings"`
	StartedAt    time.Time     `json:"started_at"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Best returns the rank 1 basket, if any.
func (r *OptimizationResult) Best() (Basket, bool) {
	if r == nil || len(r.Baskets) == 0 {
		return Basket{}, false
	}
	return r.Baskets[0], true
}

// ResultSummary is the compact form of a result kept in the cache and sent
// on the event bus.
type ResultSummary struct {
	OrderID            int64     `json:"order_id"`
	RunID              string    `json:"run_id"`
	Status             Status    `json:"status"`
	Message            string    `json:"message,omitempty"`
	Engine             string    `json:"engine,omitempty"`
	Combinations       int64     `json:"combinations"`
	Baskets            int       `json:"baskets"`
	BestTotalCost      float64   `json:"best_total_cost"`
	BestKey            float64   `json:"best_total_loss_and_delivery"`
	MissingMonoVendors []string  `json:"missing_mono_vendors,omitempty"`
	ReportPath         string    `json:"report_path,omitempty"`
	FinishedAt         time.Time `json:"finished_at"`
}

// Summarize builds the compact summary of r.
func (r *OptimizationResult) Summarize() ResultSummary {
	s := ResultSummary{
		OrderID:            r.OrderID,
		RunID:              r.RunID,
		Status:             r.Status,
		Message:            r.Message,
		Engine:             r.Engine,
		Combinations:       r.Combinations,
		Baskets:            len(r.Baskets),
		MissingMonoVendors: MissingMonoVendors(r.Warnings),
		FinishedAt:         r.StartedAt.Add(r.Elapsed),
	}
	if best, ok := r.Best(); ok {
		s.BestTotalCost = best.Metrics.TotalCost
		s.BestKey = best.Metrics.TotalLossAndDelivery
	}
	return s
}
