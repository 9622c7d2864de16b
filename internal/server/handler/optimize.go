package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/basketopt/internal/domain"
	"github.com/alanyoungcy/basketopt/internal/service"
)

// Optimizer is the service surface the order endpoints need.
type Optimizer interface {
	Run(ctx context.Context, orderID int64) (*domain.OptimizationResult, error)
	Enqueue(ctx context.Context, orderID int64) error
	Result(ctx context.Context, orderID int64) (service.OrderResult, error)
}

// ReportReader opens stored reports.
type ReportReader interface {
	Open(ctx context.Context, path string) (*domain.BlobObject, error)
}

// OrderHandler serves the per-order optimization endpoints.
type OrderHandler struct {
	svc     Optimizer
	reports ReportReader
	logger  *slog.Logger
}

// NewOrderHandler creates an OrderHandler. reports may be nil, in which case
// the report endpoint answers 404.
func NewOrderHandler(svc Optimizer, reports ReportReader, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, reports: reports, logger: logHandler(logger, "orders")}
}

// Optimize runs the optimizer synchronously and returns the full result.
// Outcomes without baskets (no_data, failed) are still 200; the status field
// tells them apart.
// POST /api/orders/{id}/optimize
func (h *OrderHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Run(r.Context(), orderID)
	switch {
	case errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "optimization already running for this order")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "optimize failed",
			slog.Int64("order_id", orderID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, domain.MsgInternalFail)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Enqueue queues the order for the worker pool.
// POST /api/orders/{id}/enqueue
func (h *OrderHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Enqueue(r.Context(), orderID); err != nil {
		h.logger.ErrorContext(r.Context(), "enqueue failed",
			slog.Int64("order_id", orderID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusServiceUnavailable, "could not queue order")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"order_id": orderID, "queued": true})
}

// Result returns the latest stored outcome of the order.
// GET /api/orders/{id}/result
func (h *OrderHandler) Result(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Result(r.Context(), orderID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "order has not been optimized")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "load result failed",
			slog.Int64("order_id", orderID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "could not load result")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Report streams the CSV report of the order's latest successful run.
// GET /api/orders/{id}/report
func (h *OrderHandler) Report(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.reports == nil {
		writeError(w, http.StatusNotFound, "reports are disabled")
		return
	}
	res, err := h.svc.Result(r.Context(), orderID)
	if err != nil || res.Summary.ReportPath == "" {
		writeError(w, http.StatusNotFound, "no report for this order")
		return
	}

	obj, err := h.reports.Open(r.Context(), res.Summary.ReportPath)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no report for this order")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "fetch report failed",
			slog.Int64("order_id", orderID),
			slog.String("path", res.Summary.ReportPath),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "could not fetch report")
		return
	}
	defer obj.Body.Close()

	hdr := w.Header()
	if obj.ETag != "" {
		hdr.Set("ETag", obj.ETag)
		if r.Header.Get("If-None-Match") == obj.ETag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	if !obj.LastModified.IsZero() {
		hdr.Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	}
	if obj.Size >= 0 {
		hdr.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	hdr.Set("Content-Type", "text/csv; charset=utf-8")
	hdr.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="order_%d_%s.csv"`, orderID, res.Summary.RunID))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.WarnContext(r.Context(), "stream report interrupted",
			slog.Int64("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}
