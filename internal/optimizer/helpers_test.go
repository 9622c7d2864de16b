package optimizer

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

const standardTiers = `{"delivery_cost":[{"min":0,"max":500,"fee":500},{"min":500,"max":1200,"fee":99},{"min":1200,"max":null,"fee":0}]}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func offer(item, id, vendor int64, cost, loss float64) domain.OfferRow {
	return domain.OfferRow{
		OfferID:         id,
		RequestedItemID: item,
		VendorID:        vendor,
		VendorName:      fmt.Sprintf("vendor-%d", vendor),
		ProductName:     fmt.Sprintf("product-%d", id),
		UnitPrice:       cost,
		BaseUnit:        "kg",
		BaseQuantity:    1,
		ItemCost:        cost,
		Loss:            loss,
	}
}

func named(r domain.OfferRow, product string) domain.OfferRow {
	r.ProductName = product
	return r
}

// withVendor sets delivery economics on every row of vendor.
func withVendor(rows []domain.OfferRow, vendor int64, minOrder, fixed float64, model string) []domain.OfferRow {
	for i := range rows {
		if rows[i].VendorID == vendor {
			rows[i].MinOrderAmount = minOrder
			rows[i].FixedDeliveryFee = fixed
			if model != "" {
				rows[i].FeeModel = json.RawMessage(model)
			}
		}
	}
	return rows
}

func mustLoad(rows []domain.OfferRow) (*Candidates, *Space) {
	c, _, err := LoadCandidates(rows, nil, domain.Exclusions{})
	if err != nil {
		panic(err)
	}
	s, err := NewSpace(c)
	if err != nil {
		panic(err)
	}
	return c, s
}

var randomModels = []string{
	"",
	standardTiers,
	`[{"min":0,"max":300,"fee":199},{"min":300,"max":null,"fee":0}]`,
	`[{"min":100,"max":400,"fee":150},{"min":600,"max":900,"fee":50}]`,
}

// randomRows builds a reproducible feed where the cheapest offer of every
// item has zero loss.
func randomRows(seed int64) []domain.OfferRow {
	rng := rand.New(rand.NewSource(seed))
	nItems := 1 + rng.Intn(5)
	nVendors := 1 + rng.Intn(4)

	type vendorCfg struct {
		min, fixed float64
		model      string
	}
	vendors := make([]vendorCfg, nVendors)
	for v := range vendors {
		vendors[v] = vendorCfg{
			min:   []float64{0, 300, 800}[rng.Intn(3)],
			fixed: []float64{0, 49.9}[rng.Intn(2)],
			model: randomModels[rng.Intn(len(randomModels))],
		}
	}

	var rows []domain.OfferRow
	id := int64(1)
	for item := int64(1); item <= int64(nItems); item++ {
		n := 1 + rng.Intn(4)
		start := len(rows)
		cheapest := math.Inf(1)
		for j := 0; j < n; j++ {
			cost := math.Round((50+rng.Float64()*550)*100) / 100
			cheapest = math.Min(cheapest, cost)
			rows = append(rows, offer(item, id, int64(1+rng.Intn(nVendors)), cost, 0))
			id++
		}
		for j := start; j < len(rows); j++ {
			rows[j].Loss = math.Round((rows[j].ItemCost-cheapest)*100) / 100
		}
	}
	for v, cfg := range vendors {
		rows = withVendor(rows, int64(v+1), cfg.min, cfg.fixed, cfg.model)
	}
	return rows
}
