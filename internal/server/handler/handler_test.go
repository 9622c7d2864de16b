package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketopt/internal/domain"
	"github.com/alanyoungcy/basketopt/internal/service"
)

type stubOptimizer struct {
	runErr    error
	enqErr    error
	result    service.OrderResult
	resultErr error
	enqueued  []int64
}

func (s *stubOptimizer) Run(_ context.Context, orderID int64) (*domain.OptimizationResult, error) {
	if s.runErr != nil {
		return nil, s.runErr
	}
	return &domain.OptimizationResult{OrderID: orderID, RunID: "run-1", Status: domain.StatusSuccess}, nil
}

func (s *stubOptimizer) Enqueue(_ context.Context, orderID int64) error {
	s.enqueued = append(s.enqueued, orderID)
	return s.enqErr
}

func (s *stubOptimizer) Result(context.Context, int64) (service.OrderResult, error) {
	return s.result, s.resultErr
}

type stubReports map[string]string

func (s stubReports) Open(_ context.Context, path string) (*domain.BlobObject, error) {
	body, ok := s[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.BlobObject{
		Body:         io.NopCloser(strings.NewReader(body)),
		Size:         int64(len(body)),
		ETag:         `"etag-` + path + `"`,
		LastModified: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func routes(h *OrderHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/orders/{id}/optimize", h.Optimize)
	mux.HandleFunc("POST /api/orders/{id}/enqueue", h.Enqueue)
	mux.HandleFunc("GET /api/orders/{id}/result", h.Result)
	mux.HandleFunc("GET /api/orders/{id}/report", h.Report)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestOptimize(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		runErr error
		want   int
	}{
		{name: "ok", path: "/api/orders/5/optimize", want: http.StatusOK},
		{name: "bad id", path: "/api/orders/abc/optimize", want: http.StatusBadRequest},
		{name: "negative id", path: "/api/orders/-2/optimize", want: http.StatusBadRequest},
		{name: "lock held", path: "/api/orders/5/optimize", runErr: domain.ErrLockHeld, want: http.StatusConflict},
		{name: "store down", path: "/api/orders/5/optimize", runErr: errors.New("db"), want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mux := routes(NewOrderHandler(&stubOptimizer{runErr: tc.runErr}, nil, quietLogger()))
			rec := do(t, mux, http.MethodPost, tc.path)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestOptimizeBody(t *testing.T) {
	mux := routes(NewOrderHandler(&stubOptimizer{}, nil, quietLogger()))
	rec := do(t, mux, http.MethodPost, "/api/orders/5/optimize")
	require.Equal(t, http.StatusOK, rec.Code)

	var res domain.OptimizationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.EqualValues(t, 5, res.OrderID)
	assert.Equal(t, domain.StatusSuccess, res.Status)
}

func TestEnqueue(t *testing.T) {
	svc := &stubOptimizer{}
	mux := routes(NewOrderHandler(svc, nil, quietLogger()))
	rec := do(t, mux, http.MethodPost, "/api/orders/8/enqueue")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []int64{8}, svc.enqueued)

	svc.enqErr = errors.New("redis")
	rec = do(t, mux, http.MethodPost, "/api/orders/8/enqueue")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestResult(t *testing.T) {
	svc := &stubOptimizer{resultErr: domain.ErrNotFound}
	mux := routes(NewOrderHandler(svc, nil, quietLogger()))
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/api/orders/8/result").Code)

	svc.resultErr = nil
	svc.result = service.OrderResult{Summary: domain.ResultSummary{OrderID: 8, Status: domain.StatusNoData}}
	rec := do(t, mux, http.MethodGet, "/api/orders/8/result")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"no_data"`)
}

func TestReport(t *testing.T) {
	svc := &stubOptimizer{result: service.OrderResult{Summary: domain.ResultSummary{RunID: "r1", ReportPath: "reports/order_8/r1.csv"}}}
	reports := stubReports{"reports/order_8/r1.csv": "rank,kind\n1,best\n"}

	mux := routes(NewOrderHandler(svc, reports, quietLogger()))
	rec := do(t, mux, http.MethodGet, "/api/orders/8/report")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "17", rec.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename="order_8_r1.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Sun, 01 Mar 2026 12:00:00 GMT", rec.Header().Get("Last-Modified"))
	assert.Equal(t, "rank,kind\n1,best\n", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/orders/8/report", nil)
	req.Header.Set("If-None-Match", rec.Header().Get("ETag"))
	cached := httptest.NewRecorder()
	mux.ServeHTTP(cached, req)
	assert.Equal(t, http.StatusNotModified, cached.Code)
	assert.Empty(t, cached.Body.String())

	svc.result.Summary.ReportPath = "reports/missing.csv"
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/api/orders/8/report").Code)

	disabled := routes(NewOrderHandler(svc, nil, quietLogger()))
	assert.Equal(t, http.StatusNotFound, do(t, disabled, http.MethodGet, "/api/orders/8/report").Code)
}

func TestHealthCheck(t *testing.T) {
	ok := NewHealthHandler(map[string]Check{
		"redis": func(context.Context) error { return nil },
	}, quietLogger())
	rec := httptest.NewRecorder()
	ok.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	bad := NewHealthHandler(map[string]Check{
		"postgres": func(context.Context) error { return errors.New("refused") },
	}, quietLogger())
	rec = httptest.NewRecorder()
	bad.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "refused")
}
