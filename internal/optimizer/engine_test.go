package optimizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

func TestEnginesAgree(t *testing.T) {
	for seed := int64(1); seed <= 60; seed++ {
		_, s := mustLoad(randomRows(seed))
		direct := DirectEngine{}.Score(s)
		batch := BatchEngine{}.Score(s)

		require.Equal(t, int(s.Size()), direct.Len())
		require.Equal(t, direct.Len(), batch.Len())
		assert.Equal(t, direct.Loss, batch.Loss, "seed %d loss", seed)
		assert.Equal(t, direct.Goods, batch.Goods, "seed %d goods", seed)
		assert.Equal(t, direct.Delivery, batch.Delivery, "seed %d delivery", seed)
		assert.Equal(t, direct.Topup, batch.Topup, "seed %d topup", seed)
		for i := int64(0); i < s.Size(); i++ {
			require.Equal(t, RoundMetrics(direct.Metrics(i)), RoundMetrics(batch.Metrics(i)), "seed %d combo %d", seed, i)
		}
	}
}

func TestDirectEngineMatchesCostEngine(t *testing.T) {
	for seed := int64(100); seed < 120; seed++ {
		c, s := mustLoad(randomRows(seed))
		sc := DirectEngine{}.Score(s)
		ce := NewCostEngine(c)
		for i := int64(0); i < s.Size(); i++ {
			require.Equal(t, ce.Evaluate(s.Locals(i, nil)).Metrics, sc.Metrics(i), "seed %d combo %d", seed, i)
		}
	}
}

func TestChooseEngine(t *testing.T) {
	cfg := Config{Engine: EngineAuto, DirectThreshold: 100, MaxCombinations: 1000}

	e, err := ChooseEngine(cfg, 100)
	require.NoError(t, err)
	assert.Equal(t, EngineDirect, e.Name())

	e, err = ChooseEngine(cfg, 101)
	require.NoError(t, err)
	assert.Equal(t, EngineBatch, e.Name())

	forced := cfg
	forced.Engine = EngineBatch
	e, err = ChooseEngine(forced, 5)
	require.NoError(t, err)
	assert.Equal(t, EngineBatch, e.Name())

	_, err = ChooseEngine(cfg, 1001)
	var ce *domain.CapacityExceededError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(1001), ce.Combinations)
	assert.Equal(t, int64(1000), ce.Limit)

	_, err = ChooseEngine(Config{Engine: "gpu", MaxCombinations: 10}, 1)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = ChooseEngine(cfg, 0)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestChooseEngineRequiresCeiling(t *testing.T) {
	for _, limit := range []int64{0, -1} {
		_, err := ChooseEngine(Config{Engine: EngineAuto, DirectThreshold: 100, MaxCombinations: limit}, 1<<40)
		var ce *domain.ConfigurationError
		require.ErrorAs(t, err, &ce, "limit %d", limit)
		assert.Equal(t, "max_combinations", ce.Field)
	}
}
