package reports

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
	"github.com/odyssey-erp/coopledger/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
	now     func() time.Time
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/balance-sheet", h.asOf(func(ctx context.Context, tenantID int64, asOf time.Time, unit string) (any, error) {
			return h.service.BalanceSheet(ctx, tenantID, asOf, unit)
		}))
		r.Get("/trial-balance", h.asOf(func(ctx context.Context, tenantID int64, asOf time.Time, unit string) (any, error) {
			return h.service.TrialBalance(ctx, tenantID, asOf, unit)
		}))
		r.Get("/data/as-of", h.asOf(func(ctx context.Context, tenantID int64, asOf time.Time, unit string) (any, error) {
			return h.service.GetReportDataAsOf(ctx, tenantID, asOf, unit)
		}))
		r.Get("/income-statement", h.ranged(func(ctx context.Context, tenantID int64, start, end time.Time, unit string) (any, error) {
			return h.service.IncomeStatement(ctx, tenantID, start, end, unit)
		}))
		r.Get("/cash-flow", h.ranged(func(ctx context.Context, tenantID int64, start, end time.Time, unit string) (any, error) {
			return h.service.CashFlow(ctx, tenantID, start, end, unit)
		}))
		r.Get("/equity-changes", h.ranged(func(ctx context.Context, tenantID int64, start, end time.Time, unit string) (any, error) {
			return h.service.EquityChanges(ctx, tenantID, start, end, unit)
		}))
		r.Get("/data", h.ranged(func(ctx context.Context, tenantID int64, start, end time.Time, unit string) (any, error) {
			return h.service.GetReportData(ctx, tenantID, start, end, unit)
		}))
	})
}

type asOfLoader func(ctx context.Context, tenantID int64, asOf time.Time, unit string) (any, error)

type rangeLoader func(ctx context.Context, tenantID int64, start, end time.Time, unit string) (any, error)

// asOf serves reports taking ?date= (default today) and ?unit=.
func (h *Handler) asOf(load asOfLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := httpx.Int64Param(r, "tenant")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		date, err := httpx.DateQuery(r, "date")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if date.IsZero() {
			date = h.now()
		}
		out, err := load(r.Context(), tenantID, date, r.URL.Query().Get("unit"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, out)
	}
}

// ranged serves reports taking ?start=&end= (both required) and ?unit=.
func (h *Handler) ranged(load rangeLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := httpx.Int64Param(r, "tenant")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		start, err := httpx.DateQuery(r, "start")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		end, err := httpx.DateQuery(r, "end")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if start.IsZero() || end.IsZero() {
			httpx.RespondError(w, shared.MissingFields("start", "end"))
			return
		}
		out, err := load(r.Context(), tenantID, start, end, r.URL.Query().Get("unit"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, out)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("report failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
