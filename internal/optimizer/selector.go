package optimizer

import (
	"math"
	"sort"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// monoCompanions is how many other vendors' mono baskets accompany a best
// basket that is already mono.
const monoCompanions = 2

// Pick is one selected combination.
type Pick struct {
	Index  int64
	Locals []int32
	Kind   domain.BasketKind
	IsMono bool
}

// Selection is the ordered result set: best overall first, then mono
// companions by ascending key.
type Selection struct {
	Picks    []Pick
	Warnings []domain.Warning
}

// rank is the comparable form of a combination: key and total cost in whole
// cents, then combination index.
type rank struct {
	key   int64
	cost  int64
	index int64
}

func (a rank) less(b rank) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	return a.index < b.index
}

func cents(v float64) int64 { return int64(math.Round(v * 100)) }

func rankOf(sc *Scores, i int64) rank {
	return rank{key: cents(sc.Key(i)), cost: cents(sc.TotalCost(i)), index: i}
}

// Select picks the best overall combination and its mono companions.
func Select(s *Space, sc *Scores) Selection {
	var sel Selection
	best := rankOf(sc, 0)
	for i := int64(1); i < int64(sc.Len()); i++ {
		if r := rankOf(sc, i); r.less(best) {
			best = r
		}
	}

	c := s.c
	bestLocals := s.Locals(best.index, nil)
	vendors := vendorsOf(c, bestLocals)
	isMono := len(vendors) == 1
	sel.Picks = append(sel.Picks, Pick{Index: best.index, Locals: bestLocals, Kind: domain.BasketBest, IsMono: isMono})

	type candidate struct {
		r      rank
		locals []int32
	}
	var monos []candidate
	if !isMono {
		for _, v := range vendors {
			r, locals, ok := bestMono(s, sc, v)
			if !ok {
				sel.Warnings = append(sel.Warnings, domain.Warning{
					Kind:       domain.WarnMissingMonoVendor,
					VendorID:   c.Vendors[v].ID,
					VendorName: c.Vendors[v].Name,
				})
				continue
			}
			monos = append(monos, candidate{r: r, locals: locals})
		}
	} else {
		for v := 0; v < c.NumVendors(); v++ {
			if v == vendors[0] {
				continue
			}
			if r, locals, ok := bestMono(s, sc, v); ok {
				monos = append(monos, candidate{r: r, locals: locals})
			}
		}
	}

	sort.Slice(monos, func(a, b int) bool { return monos[a].r.less(monos[b].r) })
	if isMono && len(monos) > monoCompanions {
		monos = monos[:monoCompanions]
	}
	for _, m := range monos {
		sel.Picks = append(sel.Picks, Pick{Index: m.r.index, Locals: m.locals, Kind: domain.BasketMono, IsMono: true})
	}
	return sel
}

// vendorsOf returns the distinct vendor slots of a combination, ascending.
func vendorsOf(c *Candidates, locals []int32) []int {
	seen := make([]bool, c.NumVendors())
	for i, l := range locals {
		seen[c.vendor[c.Offset[i]+int(l)]] = true
	}
	var out []int
	for v, ok := range seen {
		if ok {
			out = append(out, v)
		}
	}
	return out
}

// bestMono searches the combinations that use only vendor v and returns the
// one with the lowest rank, so tiers and topup are weighed the same way as for
// the best basket. It reports false when some item has no offer from v.
func bestMono(s *Space, sc *Scores, v int) (rank, []int32, bool) {
	c := s.c
	own := make([][]int32, c.NumItems())
	for i := range own {
		for g := c.Offset[i]; g < c.Offset[i+1]; g++ {
			if int(c.vendor[g]) == v {
				own[i] = append(own[i], int32(g-c.Offset[i]))
			}
		}
		if len(own[i]) == 0 {
			return rank{}, nil, false
		}
	}

	digits := make([]int, len(own))
	locals := make([]int32, len(own))
	var best rank
	var bestLocals []int32
	for {
		for i, d := range digits {
			locals[i] = own[i][d]
		}
		if r := rankOf(sc, s.Index(locals)); bestLocals == nil || r.less(best) {
			best = r
			bestLocals = append(bestLocals[:0], locals...)
		}

		i := len(digits) - 1
		for ; i >= 0; i-- {
			digits[i]++
			if digits[i] < len(own[i]) {
				break
			}
			digits[i] = 0
		}
		if i < 0 {
			return best, bestLocals, true
		}
	}
}
