package optimizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

func scenarioRows() []domain.OfferRow {
	return []domain.OfferRow{
		offer(1, 1, 1, 100, 0), offer(1, 2, 2, 110, 10),
		offer(2, 3, 1, 50, 0), offer(2, 4, 2, 55, 5), offer(2, 5, 3, 60, 10),
		offer(3, 6, 1, 20, 0),
	}
}

func TestSpaceScenario(t *testing.T) {
	c, s := mustLoad(scenarioRows())
	require.Equal(t, int64(6), s.Size())

	seen := make(map[[3]int]bool)
	for i := int64(0); i < s.Size(); i++ {
		var key [3]int
		for j := 0; j < s.Items(); j++ {
			g := s.OfferAt(i, j)
			require.GreaterOrEqual(t, g, c.Offset[j])
			require.Less(t, g, c.Offset[j+1])
			key[j] = g
		}
		assert.False(t, seen[key], "combination %d duplicates an earlier one", i)
		seen[key] = true
	}
	assert.Len(t, seen, 6)
}

func TestSpaceLastItemVariesFastest(t *testing.T) {
	_, s := mustLoad(scenarioRows())
	assert.Equal(t, []int32{0, 0, 0}, s.Locals(0, nil))
	assert.Equal(t, []int32{0, 1, 0}, s.Locals(1, nil))
	assert.Equal(t, []int32{0, 2, 0}, s.Locals(2, nil))
	assert.Equal(t, []int32{1, 0, 0}, s.Locals(3, nil))
	assert.Equal(t, []int32{1, 2, 0}, s.Locals(5, nil))
}

func TestSpaceIndexRoundTrip(t *testing.T) {
	_, s := mustLoad(randomRows(7))
	buf := make([]int32, 0, s.Items())
	for i := int64(0); i < s.Size(); i++ {
		buf = s.Locals(i, buf)
		assert.Equal(t, i, s.Index(buf))
	}
}

func TestIndexMatrixMatchesMixedRadix(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 11} {
		_, s := mustLoad(randomRows(seed))
		m := s.IndexMatrix()
		require.Equal(t, int(s.Size()), m.Rows)
		require.Equal(t, s.Items(), m.Cols)
		for r := 0; r < m.Rows; r++ {
			for j := 0; j < m.Cols; j++ {
				require.Equal(t, int32(s.Local(int64(r), j)), m.At(r, j), "seed %d row %d item %d", seed, r, j)
			}
		}
	}
}

func TestSpaceOverflow(t *testing.T) {
	var rows []domain.OfferRow
	id := int64(1)
	for item := int64(1); item <= 64; item++ {
		rows = append(rows, offer(item, id, 1, 1, 0), offer(item, id+1, 2, 1, 0))
		id += 2
	}
	c, _, err := LoadCandidates(rows, nil, domain.Exclusions{})
	require.NoError(t, err)

	_, err = NewSpace(c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestSpaceEstimateBytes(t *testing.T) {
	_, s := mustLoad(scenarioRows())
	assert.Equal(t, int64(6*(3*4+4*8+8+1)), s.EstimateBytes())
}
