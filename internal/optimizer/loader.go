package optimizer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// Candidates is the loader output: offers grouped by requested item and laid
// out as flat columns. Offers of item i occupy [Offset[i], Offset[i+1]).
type Candidates struct {
	Items   []domain.RequestedItem
	Offers  []domain.CandidateOffer
	Offset  []int
	Vendors []domain.Vendor

	loss   []float64
	cost   []float64
	vendor []int32 // dense vendor slot per offer

	minOrder []float64
	fixedFee []float64
	fees     []feeTable
}

// NumItems returns the number of requested items.
func (c *Candidates) NumItems() int { return len(c.Items) }

// NumVendors returns the number of distinct vendors among the candidates.
func (c *Candidates) NumVendors() int { return len(c.Vendors) }

// ItemOffers returns the candidate offers of item i in offer id order.
func (c *Candidates) ItemOffers(i int) []domain.CandidateOffer {
	return c.Offers[c.Offset[i]:c.Offset[i+1]]
}

// Radix returns the number of candidate offers of item i.
func (c *Candidates) Radix(i int) int { return c.Offset[i+1] - c.Offset[i] }

// VendorSlot returns the dense vendor index of the offer at global index g.
func (c *Candidates) VendorSlot(g int) int { return int(c.vendor[g]) }

// LoadCandidates groups offer rows by requested item, applies the exclusions
// and lays the survivors out as flat columns.
//
// When items is empty the requested items are derived from the rows. When it
// is given, rows for other items are ignored and an item without rows fails
// with NoCandidatesError. Only rows that survive grouping and exclusion are
// validated.
func LoadCandidates(rows []domain.OfferRow, items []domain.RequestedItem, excl domain.Exclusions) (*Candidates, []domain.Warning, error) {
	if len(rows) == 0 {
		return nil, nil, &domain.NoCandidatesError{}
	}

	byItem := make(map[int64][]*domain.OfferRow)
	for i := range rows {
		byItem[rows[i].RequestedItemID] = append(byItem[rows[i].RequestedItemID], &rows[i])
	}

	items = requestedItems(items, rows)
	for _, it := range items {
		if len(byItem[it.ID]) == 0 {
			return nil, nil, &domain.NoCandidatesError{ItemID: it.ID}
		}
	}

	m := newMatcher(excl)
	var warnings []domain.Warning
	kept := make([][]*domain.OfferRow, len(items))
	for i, it := range items {
		group := byItem[it.ID]
		sort.SliceStable(group, func(a, b int) bool { return group[a].OfferID < group[b].OfferID })

		survivors := make([]*domain.OfferRow, 0, len(group))
		for _, r := range group {
			if !m.excluded(r.ProductName) {
				survivors = append(survivors, r)
			}
		}
		if len(survivors) == 0 {
			survivors = append(survivors, group[0])
			warnings = append(warnings, domain.Warning{Kind: domain.WarnAllVariantsExcluded, ItemID: it.ID})
		}
		for _, r := range survivors {
			if err := validateRow(r); err != nil {
				return nil, nil, err
			}
		}
		kept[i] = survivors
	}

	c, err := buildCandidates(items, kept)
	if err != nil {
		return nil, nil, err
	}
	return c, warnings, nil
}

func requestedItems(items []domain.RequestedItem, rows []domain.OfferRow) []domain.RequestedItem {
	if len(items) == 0 {
		seen := make(map[int64]bool)
		for _, r := range rows {
			if seen[r.RequestedItemID] {
				continue
			}
			seen[r.RequestedItemID] = true
			items = append(items, domain.RequestedItem{
				ID:       r.RequestedItemID,
				Quantity: r.RequestedQuantity,
				Unit:     r.RequestedUnit,
			})
		}
	} else {
		items = append([]domain.RequestedItem(nil), items...)
	}
	sort.Slice(items, func(a, b int) bool { return items[a].ID < items[b].ID })
	return items
}

func buildCandidates(items []domain.RequestedItem, kept [][]*domain.OfferRow) (*Candidates, error) {
	total := 0
	for _, g := range kept {
		total += len(g)
	}
	c := &Candidates{
		Items:  items,
		Offers: make([]domain.CandidateOffer, 0, total),
		Offset: make([]int, 1, len(items)+1),
		loss:   make([]float64, 0, total),
		cost:   make([]float64, 0, total),
		vendor: make([]int32, 0, total),
	}

	// First row seen per vendor defines its delivery economics.
	first := make(map[int64]*domain.OfferRow)
	var vendorIDs []int64
	for _, g := range kept {
		for _, r := range g {
			if _, ok := first[r.VendorID]; !ok {
				first[r.VendorID] = r
				vendorIDs = append(vendorIDs, r.VendorID)
			}
		}
	}
	sort.Slice(vendorIDs, func(a, b int) bool { return vendorIDs[a] < vendorIDs[b] })

	slot := make(map[int64]int32, len(vendorIDs))
	for i, id := range vendorIDs {
		r := first[id]
		model, err := ParseFeeModel(r.FeeModel)
		if err != nil {
			return nil, vendorErr(id, err)
		}
		if err := ValidateFeeModel(model); err != nil {
			return nil, vendorErr(id, err)
		}
		slot[id] = int32(i)
		c.Vendors = append(c.Vendors, domain.Vendor{
			ID:               id,
			Name:             r.VendorName,
			MinOrderAmount:   r.MinOrderAmount,
			FixedDeliveryFee: r.FixedDeliveryFee,
			FeeModel:         model,
		})
		c.minOrder = append(c.minOrder, r.MinOrderAmount)
		c.fixedFee = append(c.fixedFee, r.FixedDeliveryFee)
		c.fees = append(c.fees, compileFeeModel(model))
	}

	for _, g := range kept {
		for _, r := range g {
			c.Offers = append(c.Offers, domain.CandidateOffer{
				OfferID:         r.OfferID,
				RequestedItemID: r.RequestedItemID,
				VendorID:        r.VendorID,
				VendorName:      r.VendorName,
				ProductName:     r.ProductName,
				UnitPrice:       r.UnitPrice,
				BaseUnit:        r.BaseUnit,
				BaseQuantity:    r.BaseQuantity,
				ItemCost:        r.ItemCost,
				Loss:            r.Loss,
			})
			c.loss = append(c.loss, r.Loss)
			c.cost = append(c.cost, r.ItemCost)
			c.vendor = append(c.vendor, slot[r.VendorID])
		}
		c.Offset = append(c.Offset, len(c.Offers))
	}
	return c, nil
}

func vendorErr(vendorID int64, err error) error {
	var ce *domain.ConfigurationError
	if errors.As(err, &ce) {
		return &domain.ConfigurationError{
			Field:  fmt.Sprintf("vendor %d: %s", vendorID, ce.Field),
			Reason: ce.Reason,
		}
	}
	return err
}

func validateRow(r *domain.OfferRow) error {
	check := func(name string, v float64) error {
		if !finite(v) || v < 0 {
			return &domain.ConfigurationError{
				Field:  fmt.Sprintf("offer %d: %s", r.OfferID, name),
				Reason: fmt.Sprintf("must be a non-negative number, got %v", v),
			}
		}
		return nil
	}
	if err := check("loss", r.Loss); err != nil {
		return err
	}
	if err := check("item_cost", r.ItemCost); err != nil {
		return err
	}
	if err := check("vendor_min_order_amount", r.MinOrderAmount); err != nil {
		return err
	}
	return check("vendor_fixed_delivery_fee", r.FixedDeliveryFee)
}

// matcher holds lower-cased exclusion needles.
type matcher struct {
	needles []string
}

func newMatcher(e domain.Exclusions) matcher {
	var m matcher
	for _, list := range [][]string{e.Keywords, e.Products} {
		for _, s := range list {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				m.needles = append(m.needles, s)
			}
		}
	}
	return m
}

func (m matcher) excluded(product string) bool {
	if len(m.needles) == 0 {
		return false
	}
	p := strings.ToLower(product)
	for _, n := range m.needles {
		if strings.Contains(p, n) {
			return true
		}
	}
	return false
}
