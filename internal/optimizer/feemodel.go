package optimizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// ParseFeeModel decodes a vendor delivery fee model. Both the wrapped form
// {"delivery_cost":[...]} and a bare tier array are accepted; an empty or
// null document yields a model without tiers.
func ParseFeeModel(raw []byte) (domain.DeliveryFeeModel, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.DeliveryFeeModel{}, nil
	}

	var model domain.DeliveryFeeModel
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &model.Tiers); err != nil {
			return model, &domain.ConfigurationError{Field: "fee_model", Reason: err.Error()}
		}
		return model, nil
	}
	if err := json.Unmarshal(raw, &model); err != nil {
		return model, &domain.ConfigurationError{Field: "fee_model", Reason: err.Error()}
	}
	return model, nil
}

// ValidateFeeModel checks that tiers are non-negative, ascending and
// non-overlapping, and that only the last tier is open-ended.
func ValidateFeeModel(m domain.DeliveryFeeModel) error {
	for i, t := range m.Tiers {
		field := fmt.Sprintf("fee_model.tier[%d]", i)
		if !finite(t.Min) || t.Min < 0 {
			return &domain.ConfigurationError{Field: field, Reason: "min must be a non-negative number"}
		}
		if !finite(t.Fee) || t.Fee < 0 {
			return &domain.ConfigurationError{Field: field, Reason: "fee must be a non-negative number"}
		}
		if t.Max == nil {
			if i != len(m.Tiers)-1 {
				return &domain.ConfigurationError{Field: field, Reason: "only the last tier may be open-ended"}
			}
		} else if !finite(*t.Max) || *t.Max <= t.Min {
			return &domain.ConfigurationError{Field: field, Reason: "max must be greater than min"}
		}
		if i > 0 {
			prev := m.Tiers[i-1]
			if t.Min < *prev.Max {
				return &domain.ConfigurationError{Field: field, Reason: "tiers overlap or are not ascending"}
			}
		}
	}
	return nil
}

// feeTable is the compiled form of a validated fee model.
type feeTable struct {
	mins []float64
	maxs []float64 // +Inf for the open-ended tier
	fees []float64
}

func compileFeeModel(m domain.DeliveryFeeModel) feeTable {
	t := feeTable{
		mins: make([]float64, len(m.Tiers)),
		maxs: make([]float64, len(m.Tiers)),
		fees: make([]float64, len(m.Tiers)),
	}
	for i, tier := range m.Tiers {
		t.mins[i] = tier.Min
		t.maxs[i] = math.Inf(1)
		if tier.Max != nil {
			t.maxs[i] = *tier.Max
		}
		t.fees[i] = tier.Fee
	}
	return t
}

// fee returns the tier fee for amount, excluding the fixed surcharge.
//
// The tier whose [min, max) contains amount wins. An amount that falls into a
// gap between tiers takes the next higher tier, an amount above every tier
// clamps to the last one, and an amount below every tier pays nothing.
func (t feeTable) fee(amount float64) float64 {
	n := len(t.mins)
	i := 0
	for i < n && t.mins[i] <= amount {
		i++
	}
	switch {
	case i == 0:
		return 0
	case amount < t.maxs[i-1]:
		return t.fees[i-1]
	case i < n:
		return t.fees[i]
	default:
		return t.fees[n-1]
	}
}

// TierFee evaluates a fee model at amount using the same rule as the engines.
func TierFee(m domain.DeliveryFeeModel, amount float64) float64 {
	return compileFeeModel(m).fee(amount)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
