package optimizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func TestParseFeeModel(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		tiers int
	}{
		{"wrapped", standardTiers, 3},
		{"bare array", `[{"min":0,"max":null,"fee":10}]`, 1},
		{"null", `null`, 0},
		{"empty", ``, 0},
		{"empty object", `{}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseFeeModel([]byte(tt.raw))
			require.NoError(t, err)
			assert.Len(t, m.Tiers, tt.tiers)
		})
	}

	_, err := ParseFeeModel([]byte(`{"delivery_cost":"nope"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestValidateFeeModel(t *testing.T) {
	tests := []struct {
		name    string
		tiers   []domain.FeeTier
		wantErr bool
	}{
		{"empty", nil, false},
		{"standard", []domain.FeeTier{{Min: 0, Max: ptr(500), Fee: 500}, {Min: 500, Max: ptr(1200), Fee: 99}, {Min: 1200, Fee: 0}}, false},
		{"gap allowed", []domain.FeeTier{{Min: 0, Max: ptr(500), Fee: 300}, {Min: 600, Max: ptr(1000), Fee: 100}}, false},
		{"negative fee", []domain.FeeTier{{Min: 0, Max: ptr(500), Fee: -1}}, true},
		{"negative min", []domain.FeeTier{{Min: -5, Max: ptr(500), Fee: 1}}, true},
		{"max not above min", []domain.FeeTier{{Min: 500, Max: ptr(500), Fee: 1}}, true},
		{"overlap", []domain.FeeTier{{Min: 0, Max: ptr(600), Fee: 1}, {Min: 500, Max: ptr(1000), Fee: 2}}, true},
		{"descending", []domain.FeeTier{{Min: 500, Max: ptr(1000), Fee: 1}, {Min: 0, Max: ptr(500), Fee: 2}}, true},
		{"open tier not last", []domain.FeeTier{{Min: 0, Fee: 1}, {Min: 500, Max: ptr(1000), Fee: 2}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFeeModel(domain.DeliveryFeeModel{Tiers: tt.tiers})
			if tt.wantErr {
				require.Error(t, err)
				var ce *domain.ConfigurationError
				assert.ErrorAs(t, err, &ce)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTierFee(t *testing.T) {
	standard, err := ParseFeeModel([]byte(standardTiers))
	require.NoError(t, err)
	gapped := domain.DeliveryFeeModel{Tiers: []domain.FeeTier{
		{Min: 0, Max: ptr(500), Fee: 300},
		{Min: 600, Max: ptr(1000), Fee: 100},
	}}
	late := domain.DeliveryFeeModel{Tiers: []domain.FeeTier{{Min: 100, Max: ptr(200), Fee: 50}}}

	tests := []struct {
		name   string
		model  domain.DeliveryFeeModel
		amount float64
		want   float64
	}{
		{"zero", standard, 0, 500},
		{"just below boundary", standard, 499.99, 500},
		{"lower bound inclusive", standard, 500, 99},
		{"upper bound exclusive", standard, 1200, 0},
		{"open tier", standard, 10_000, 0},
		{"gap takes next tier", gapped, 550, 100},
		{"above all clamps to last", gapped, 1500, 100},
		{"below all tiers", late, 50, 0},
		{"no tiers", domain.DeliveryFeeModel{}, 123, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TierFee(tt.model, tt.amount))
		})
	}
}
