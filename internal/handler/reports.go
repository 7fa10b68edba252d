package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/abba-pos/api/internal/store"
)

// ReportStore defines the database methods needed by report handlers.
// Satisfied by *store.Store.
type ReportStore interface {
	SalesByDay(ctx context.Context, from, to time.Time) ([]store.SalesRow, error)
	PaymentMethodTotals(ctx context.Context, from, to time.Time) ([]store.MethodRow, error)
}

// ReportHandler handles reporting endpoints.
type ReportHandler struct {
	store ReportStore
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(st ReportStore) *ReportHandler {
	return &ReportHandler{store: st}
}

// RegisterRoutes registers report endpoints on the given Chi router.
// Mounted at /api/reports.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sales", h.Sales)
	r.Get("/payment-methods", h.PaymentMethods)
}

// parseRange reads start_date and end_date query params. The default is
// the last 30 days; end_date is inclusive.
func parseRange(r *http.Request) (time.Time, time.Time, string) {
	to := time.Now().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -30)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, time.Time{}, "invalid start_date format, use YYYY-MM-DD"
		}
		from = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, time.Time{}, "invalid end_date format, use YYYY-MM-DD"
		}
		to = t.AddDate(0, 0, 1)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, "end_date must not be before start_date"
	}
	return from, to, ""
}

// Sales handles GET /api/reports/sales: closed-order totals per day.
func (h *ReportHandler) Sales(w http.ResponseWriter, r *http.Request) {
	from, to, msg := parseRange(r)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	report, err := h.store.SalesByDay(r.Context(), from, to)
	if err != nil {
		logrus.WithError(err).Error("sales report")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if report == nil {
		report = []store.SalesRow{}
	}
	writeJSON(w, http.StatusOK, report)
}

// PaymentMethods handles GET /api/reports/payment-methods: takings per
// payment method.
func (h *ReportHandler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	from, to, msg := parseRange(r)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	report, err := h.store.PaymentMethodTotals(r.Context(), from, to)
	if err != nil {
		logrus.WithError(err).Error("payment methods report")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if report == nil {
		report = []store.MethodRow{}
	}
	writeJSON(w, http.StatusOK, report)
}
