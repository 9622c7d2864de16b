package domain

import "encoding/json"

// RequestedItem is one line of a customer order.
type RequestedItem struct {
	ID       int64   `json:"id"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// FeeTier is one delivery fee band. A nil Max means the band is open-ended.
type FeeTier struct {
	Min float64  `json:"min"`
	Max *float64 `json:"max"`
	Fee float64  `json:"fee"`
}

// DeliveryFeeModel is a vendor's ordered list of delivery fee tiers.
type DeliveryFeeModel struct {
	Tiers []FeeTier `json:"delivery_cost"`
}

// OfferRow is one row of the offer feed: a priced match of a requested item
// at one vendor, with the vendor's delivery economics denormalised onto it.
type OfferRow struct {
	OfferID           int64           `json:"offer_id"`
	RequestedItemID   int64           `json:"requested_item_id"`
	RequestedQuantity float64         `json:"requested_quantity,omitempty"`
	RequestedUnit     string          `json:"requested_unit,omitempty"`
	VendorID          int64           `json:"vendor_id"`
	VendorName        string          `json:"vendor_name"`
	ProductName       string          `json:"product_name"`
	UnitPrice         float64         `json:"unit_price"`
	BaseUnit          string          `json:"base_unit"`
	BaseQuantity      float64         `json:"base_quantity"`
	ItemCost          float64         `json:"item_cost"`
	Loss              float64         `json:"loss"`
	MinOrderAmount    float64         `json:"vendor_min_order_amount"`
	FixedDeliveryFee  float64         `json:"vendor_fixed_delivery_fee"`
	FeeModel          json.RawMessage `json:"vendor_delivery_fee_model,omitempty"`
}

// CandidateOffer is a validated offer that survived exclusion filtering.
type CandidateOffer struct {
	OfferID         int64   `json:"offer_id"`
	RequestedItemID int64   `json:"requested_item_id"`
	VendorID        int64   `json:"vendor_id"`
	VendorName      string  `json:"vendor_name"`
	ProductName     string  `json:"product_name"`
	UnitPrice       float64 `json:"unit_price"`
	BaseUnit        string  `json:"base_unit"`
	BaseQuantity    float64 `json:"base_quantity"`
	ItemCost        float64 `json:"item_cost"`
	Loss            float64 `json:"loss"`
}

// Vendor carries the delivery economics shared by all offers of one vendor.
type Vendor struct {
	ID               int64            `json:"id"`
	Name             string           `json:"name"`
	MinOrderAmount   float64          `json:"min_order_amount"`
	FixedDeliveryFee float64          `json:"fixed_delivery_fee"`
	FeeModel         DeliveryFeeModel `json:"fee_model"`
}

// Exclusions lists user dietary or brand exclusions. Both lists are matched
// as case-insensitive substrings of the product name.
type Exclusions struct {
	Keywords []string `json:"keywords"`
	Products []string `json:"products"`
}

// Empty reports whether no exclusion would ever match.
func (e Exclusions) Empty() bool {
	return len(e.Keywords) == 0 && len(e.Products) == 0
}
