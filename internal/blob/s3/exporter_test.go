package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

type memWriter struct {
	objects   map[string][]byte
	multipart int
	err       error
}

func (m *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if m.err != nil {
		return m.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[path] = b
	return nil
}

func (m *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	m.multipart++
	return m.Put(ctx, path, data, "")
}

func sampleResult() *domain.OptimizationResult {
	return &domain.OptimizationResult{
		OrderID: 42,
		RunID:   "run-1",
		Status:  domain.StatusSuccess,
		Baskets: []domain.Basket{
			{
				Rank: 1, CombinationIndex: 3, Kind: domain.BasketBest,
				Offers: []domain.CandidateOffer{
					{OfferID: 10, RequestedItemID: 1, VendorID: 7, VendorName: "Green, Farm", ProductName: "Milk", UnitPrice: 1.5, BaseUnit: "l", BaseQuantity: 1, ItemCost: 1.5},
					{OfferID: 11, RequestedItemID: 2, VendorID: 8, VendorName: "Baker", ProductName: "Bread", UnitPrice: 2, BaseUnit: "pcs", BaseQuantity: 1, ItemCost: 2, Loss: 0.25},
				},
				Vendors: []domain.VendorCharge{
					{VendorID: 7, VendorName: "Green, Farm", Subtotal: 1.5, DeliveryFee: 3},
					{VendorID: 8, VendorName: "Baker", Subtotal: 2, MinOrderAmount: 5, Topup: 3, DeliveryFee: 1},
				},
				Metrics: domain.BasketMetrics{TotalLoss: 0.25, TotalGoodsCost: 3.5, TotalDeliveryCost: 4, TotalTopup: 3, TotalCost: 10.5, TotalLossAndDelivery: 7.25},
			},
			{
				Rank: 2, CombinationIndex: 0, Kind: domain.BasketMono, IsMono: true,
				Offers: []domain.CandidateOffer{
					{OfferID: 12, RequestedItemID: 1, VendorID: 8, VendorName: "Baker", ProductName: "Milk", ItemCost: 2},
				},
				Vendors: []domain.VendorCharge{{VendorID: 8, VendorName: "Baker", Subtotal: 2}},
			},
		},
	}
}

func TestRenderCSV(t *testing.T) {
	data, err := RenderCSV(sampleResult())
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, reportHeader, rows[0])

	first := rows[1]
	assert.Equal(t, "1", first[0])
	assert.Equal(t, "best", first[1])
	assert.Equal(t, "false", first[2])
	assert.Equal(t, "Green, Farm", first[7])
	assert.Equal(t, "1.50", first[9])
	assert.Equal(t, "3.00", first[17])
	assert.Equal(t, "10.50", first[22])
	assert.Equal(t, "7.25", first[23])

	second := rows[2]
	assert.Equal(t, "3.00", second[16], "topup of the second vendor")
	assert.Equal(t, "0.25", second[13])

	mono := rows[3]
	assert.Equal(t, "mono", mono[1])
	assert.Equal(t, "true", mono[2])
}

func TestReportExporterExport(t *testing.T) {
	w := &memWriter{}
	e := NewReportExporter(w, "/reports/")

	path, err := e.Export(context.Background(), sampleResult())
	require.NoError(t, err)
	assert.Equal(t, "reports/order_42/run-1.csv", path)
	assert.Contains(t, string(w.objects[path]), "Bread")
	assert.Zero(t, w.multipart)
}

func TestReportExporterErrors(t *testing.T) {
	_, err := NewReportExporter(&memWriter{}, "").Export(context.Background(), &domain.OptimizationResult{})
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = NewReportExporter(&memWriter{err: boom}, "").Export(context.Background(), sampleResult())
	assert.ErrorIs(t, err, boom)
}

func TestReportPath(t *testing.T) {
	assert.Equal(t, "order_1/r.csv", ReportPath("", 1, "r"))
	assert.Equal(t, "x/order_1/r.csv", ReportPath("x", 1, "r"))
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "http://x", normaliseEndpoint("http://x", true))
}
