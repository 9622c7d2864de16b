package optimizer

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// Round2 rounds a money value half away from zero to two decimals.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// FormatMoney renders v with exactly two decimals.
func FormatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// RoundMetrics rounds every total of m to two decimals. The derived totals
// are recomputed from the rounded parts in decimal so they add up exactly.
func RoundMetrics(m domain.BasketMetrics) domain.BasketMetrics {
	loss := decimal.NewFromFloat(m.TotalLoss).Round(2)
	goods := decimal.NewFromFloat(m.TotalGoodsCost).Round(2)
	delivery := decimal.NewFromFloat(m.TotalDeliveryCost).Round(2)
	topup := decimal.NewFromFloat(m.TotalTopup).Round(2)
	return domain.BasketMetrics{
		TotalLoss:            loss.InexactFloat64(),
		TotalGoodsCost:       goods.InexactFloat64(),
		TotalDeliveryCost:    delivery.InexactFloat64(),
		TotalTopup:           topup.InexactFloat64(),
		TotalCost:            goods.Add(topup).Add(delivery).InexactFloat64(),
		TotalLossAndDelivery: loss.Add(topup).Add(delivery).InexactFloat64(),
	}
}
