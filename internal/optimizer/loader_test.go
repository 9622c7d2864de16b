package optimizer

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

func TestLoadCandidatesGroupsAndOrders(t *testing.T) {
	rows := []domain.OfferRow{
		offer(20, 7, 1, 10, 0),
		offer(10, 5, 2, 30, 5),
		offer(10, 3, 1, 25, 0),
		offer(20, 6, 2, 12, 2),
	}
	c, warnings, err := LoadCandidates(rows, nil, domain.Exclusions{})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Equal(t, 2, c.NumItems())
	assert.Equal(t, int64(10), c.Items[0].ID)
	assert.Equal(t, int64(20), c.Items[1].ID)
	assert.Equal(t, []int{0, 2, 4}, c.Offset)

	ids := func(item int) []int64 {
		var out []int64
		for _, o := range c.ItemOffers(item) {
			out = append(out, o.OfferID)
		}
		return out
	}
	assert.Equal(t, []int64{3, 5}, ids(0))
	assert.Equal(t, []int64{6, 7}, ids(1))

	require.Equal(t, 2, c.NumVendors())
	assert.Equal(t, int64(1), c.Vendors[0].ID)
	assert.Equal(t, int64(2), c.Vendors[1].ID)
	assert.Equal(t, 0, c.VendorSlot(0))
	assert.Equal(t, 1, c.VendorSlot(1))
}

func TestLoadCandidatesExclusions(t *testing.T) {
	rows := []domain.OfferRow{
		named(offer(1, 1, 1, 10, 0), "Whole MILK 3.2%"),
		named(offer(1, 2, 1, 12, 2), "Oat drink"),
		named(offer(1, 3, 2, 11, 1), "Almond drink Brand-X"),
		named(offer(2, 4, 1, 5, 0), "Bread"),
	}
	excl := domain.Exclusions{Keywords: []string{"milk", "  "}, Products: []string{"brand-x"}}

	c, warnings, err := LoadCandidates(rows, nil, excl)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, c.ItemOffers(0), 1)
	assert.Equal(t, "Oat drink", c.ItemOffers(0)[0].ProductName)
	assert.Len(t, c.ItemOffers(1), 1)
}

func TestLoadCandidatesAllVariantsExcluded(t *testing.T) {
	rows := []domain.OfferRow{
		named(offer(1, 9, 1, 10, 0), "Pork sausage"),
		named(offer(1, 4, 2, 12, 2), "pork ham"),
		named(offer(2, 5, 1, 5, 0), "Bread"),
	}
	c, warnings, err := LoadCandidates(rows, nil, domain.Exclusions{Keywords: []string{"PORK"}})
	require.NoError(t, err)

	require.Len(t, c.ItemOffers(0), 1)
	assert.Equal(t, int64(4), c.ItemOffers(0)[0].OfferID, "lowest offer id is kept")
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.Warning{Kind: domain.WarnAllVariantsExcluded, ItemID: 1}, warnings[0])

	s, err := NewSpace(c)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Size())
}

func TestLoadCandidatesNoCandidates(t *testing.T) {
	_, _, err := LoadCandidates(nil, nil, domain.Exclusions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoCandidates))

	rows := []domain.OfferRow{offer(1, 1, 1, 10, 0)}
	items := []domain.RequestedItem{{ID: 1}, {ID: 2}}
	_, _, err = LoadCandidates(rows, items, domain.Exclusions{})
	var nc *domain.NoCandidatesError
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, int64(2), nc.ItemID)
}

func TestLoadCandidatesExplicitItemsIgnoreStrayRows(t *testing.T) {
	rows := []domain.OfferRow{offer(1, 1, 1, 10, 0), offer(99, 2, 1, 10, 0)}
	c, _, err := LoadCandidates(rows, []domain.RequestedItem{{ID: 1, Quantity: 2, Unit: "pcs"}}, domain.Exclusions{})
	require.NoError(t, err)
	require.Equal(t, 1, c.NumItems())
	assert.Equal(t, "pcs", c.Items[0].Unit)
	assert.Len(t, c.Offers, 1)
}

func TestLoadCandidatesValidatesOnlyKeptRows(t *testing.T) {
	stray := offer(99, 2, 1, 10, math.NaN())
	stray.ItemCost = -1
	rows := []domain.OfferRow{offer(1, 1, 1, 10, 0), stray}
	c, _, err := LoadCandidates(rows, []domain.RequestedItem{{ID: 1, Quantity: 1}}, domain.Exclusions{})
	require.NoError(t, err)
	assert.Len(t, c.Offers, 1)

	excluded := named(offer(1, 3, 1, 10, -1), "Cheap soy milk")
	rows = []domain.OfferRow{offer(1, 1, 1, 10, 0), excluded}
	_, _, err = LoadCandidates(rows, nil, domain.Exclusions{Keywords: []string{"soy"}})
	require.NoError(t, err)

	// A kept row is still checked.
	_, _, err = LoadCandidates(rows, nil, domain.Exclusions{})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestLoadCandidatesRejectsBadData(t *testing.T) {
	negLoss := offer(1, 1, 1, 10, -0.5)
	_, _, err := LoadCandidates([]domain.OfferRow{negLoss}, nil, domain.Exclusions{})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	bad := withVendor([]domain.OfferRow{offer(1, 1, 1, 10, 0)}, 1, 0, 0,
		`[{"min":0,"max":100,"fee":-10}]`)
	_, _, err = LoadCandidates(bad, nil, domain.Exclusions{})
	var ce *domain.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Field, "vendor 1")
}

func TestLossNonNegative(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		c, _ := mustLoad(randomRows(seed))
		for i := 0; i < c.NumItems(); i++ {
			minLoss := -1.0
			for _, o := range c.ItemOffers(i) {
				require.GreaterOrEqual(t, o.Loss, 0.0)
				if minLoss < 0 || o.Loss < minLoss {
					minLoss = o.Loss
				}
			}
			assert.Equal(t, 0.0, minLoss, "seed %d item %d", seed, i)
		}
	}
}
