package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/alanyoungcy/basketopt/internal/domain"
	"github.com/alanyoungcy/basketopt/internal/optimizer"
)

// multipartThreshold is the report size above which uploads go through the
// multipart manager.
const multipartThreshold = 8 * 1024 * 1024

var reportHeader = []string{
	"rank", "kind", "is_mono", "combination_index",
	"requested_item_id", "offer_id", "vendor_id", "vendor_name", "product_name",
	"unit_price", "base_unit", "base_quantity", "item_cost", "loss",
	"vendor_subtotal", "vendor_min_order_amount", "vendor_topup", "vendor_delivery_fee",
	"total_loss", "total_goods_cost", "total_delivery_cost", "total_topup",
	"total_cost", "total_loss_and_delivery",
}

// ReportExporter renders the selected baskets of a result as CSV and uploads
// it under prefix/order_<id>/<run>.csv.
type ReportExporter struct {
	w      domain.BlobWriter
	prefix string
}

// NewReportExporter creates a ReportExporter writing through w.
func NewReportExporter(w domain.BlobWriter, prefix string) *ReportExporter {
	return &ReportExporter{w: w, prefix: strings.Trim(prefix, "/")}
}

// ReportPath returns the object key a result's report is stored under.
func ReportPath(prefix string, orderID int64, runID string) string {
	key := fmt.Sprintf("order_%d/%s.csv", orderID, runID)
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// Export uploads the report for res and returns its path.
func (e *ReportExporter) Export(ctx context.Context, res *domain.OptimizationResult) (string, error) {
	if res == nil || len(res.Baskets) == 0 {
		return "", fmt.Errorf("s3blob: export: result has no baskets")
	}
	data, err := RenderCSV(res)
	if err != nil {
		return "", fmt.Errorf("s3blob: export order %d: %w", res.OrderID, err)
	}

	path := ReportPath(e.prefix, res.OrderID, res.RunID)
	if len(data) > multipartThreshold {
		err = e.w.PutMultipart(ctx, path, bytes.NewReader(data), minPartSize)
	} else {
		err = e.w.Put(ctx, path, bytes.NewReader(data), "text/csv")
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// RenderCSV writes one line per offer of every basket, in rank order. Vendor
// and basket totals are repeated on each line of the basket.
func RenderCSV(res *domain.OptimizationResult) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(reportHeader); err != nil {
		return nil, err
	}

	money := optimizer.FormatMoney
	for _, b := range res.Baskets {
		charges := make(map[int64]domain.VendorCharge, len(b.Vendors))
		for _, v := range b.Vendors {
			charges[v.VendorID] = v
		}
		m := b.Metrics
		for _, o := range b.Offers {
			v := charges[o.VendorID]
			row := []string{
				strconv.Itoa(b.Rank),
				string(b.Kind),
				strconv.FormatBool(b.IsMono),
				strconv.FormatInt(b.CombinationIndex, 10),
				strconv.FormatInt(o.RequestedItemID, 10),
				strconv.FormatInt(o.OfferID, 10),
				strconv.FormatInt(o.VendorID, 10),
				o.VendorName,
				o.ProductName,
				money(o.UnitPrice),
				o.BaseUnit,
				strconv.FormatFloat(o.BaseQuantity, 'f', -1, 64),
				money(o.ItemCost),
				money(o.Loss),
				money(v.Subtotal),
				money(v.MinOrderAmount),
				money(v.Topup),
				money(v.DeliveryFee),
				money(m.TotalLoss),
				money(m.TotalGoodsCost),
				money(m.TotalDeliveryCost),
				money(m.TotalTopup),
				money(m.TotalCost),
				money(m.TotalLossAndDelivery),
			}
			if err := cw.Write(row); err != nil {
				return nil, err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ domain.ReportExporter = (*ReportExporter)(nil)
