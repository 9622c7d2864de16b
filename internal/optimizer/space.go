package optimizer

import (
	"math"
	"math/bits"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// Space is the Cartesian product of per-item offer lists, addressed by a
// mixed-radix combination index. Item 0 is the most significant digit, so the
// last item varies fastest.
type Space struct {
	c      *Candidates
	radix  []int64
	stride []int64
	size   int64
}

// NewSpace builds the combination space over c. A count that does not fit in
// an int64 is a configuration error.
func NewSpace(c *Candidates) (*Space, error) {
	k := c.NumItems()
	if k == 0 {
		return nil, &domain.ConfigurationError{Field: "combinations", Reason: "no requested items"}
	}
	s := &Space{
		c:      c,
		radix:  make([]int64, k),
		stride: make([]int64, k),
	}

	size := uint64(1)
	for i := 0; i < k; i++ {
		n := c.Radix(i)
		if n <= 0 {
			return nil, &domain.ConfigurationError{Field: "combinations", Reason: "item without candidates"}
		}
		s.radix[i] = int64(n)
		hi, lo := bits.Mul64(size, uint64(n))
		if hi != 0 || lo > math.MaxInt64 {
			return nil, &domain.ConfigurationError{Field: "combinations", Reason: "count overflows int64"}
		}
		size = lo
	}
	s.size = int64(size)

	st := int64(1)
	for i := k - 1; i >= 0; i-- {
		s.stride[i] = st
		st *= s.radix[i]
	}
	return s, nil
}

// Size returns the number of combinations.
func (s *Space) Size() int64 { return s.size }

// Items returns the number of item positions.
func (s *Space) Items() int { return len(s.radix) }

// Candidates returns the loader output the space is built on.
func (s *Space) Candidates() *Candidates { return s.c }

// Local returns the offer position within item's list chosen by combo.
func (s *Space) Local(combo int64, item int) int {
	return int((combo / s.stride[item]) % s.radix[item])
}

// OfferAt returns the global offer index chosen by combo for item.
func (s *Space) OfferAt(combo int64, item int) int {
	return s.c.Offset[item] + s.Local(combo, item)
}

// Locals decomposes combo into per-item local offer indices, reusing dst.
func (s *Space) Locals(combo int64, dst []int32) []int32 {
	dst = dst[:0]
	for i := range s.radix {
		dst = append(dst, int32(s.Local(combo, i)))
	}
	return dst
}

// Index is the inverse of Locals.
func (s *Space) Index(locals []int32) int64 {
	var idx int64
	for i, l := range locals {
		idx += int64(l) * s.stride[i]
	}
	return idx
}

// EstimateBytes approximates the memory the batch engine needs for the full
// index matrix and its metric columns.
func (s *Space) EstimateBytes() int64 {
	perRow := int64(len(s.radix))*4 + 4*8 + 8 + 1
	if s.size > math.MaxInt64/perRow {
		return math.MaxInt64
	}
	return s.size * perRow
}

// IndexMatrix holds the local offer index of every combination, column-major:
// column j is the item j digit for rows 0..Rows-1.
type IndexMatrix struct {
	Rows int
	Cols int
	data []int32
}

// Column returns the local offer indices of item j for every combination.
func (m *IndexMatrix) Column(j int) []int32 {
	return m.data[j*m.Rows : (j+1)*m.Rows]
}

// At returns the local offer index of item j in combination row.
func (m *IndexMatrix) At(row, j int) int32 {
	return m.data[j*m.Rows+row]
}

// IndexMatrix materialises the dense index matrix. Each item column repeats
// every local index stride times and tiles that block across all rows.
func (s *Space) IndexMatrix() *IndexMatrix {
	rows := int(s.size)
	m := &IndexMatrix{Rows: rows, Cols: len(s.radix), data: make([]int32, rows*len(s.radix))}
	for j := range s.radix {
		col := m.Column(j)
		radix, stride := int32(s.radix[j]), int(s.stride[j])
		pos := 0
		for pos < rows {
			for l := int32(0); l < radix; l++ {
				for r := 0; r < stride; r++ {
					col[pos] = l
					pos++
				}
			}
		}
	}
	return m
}
