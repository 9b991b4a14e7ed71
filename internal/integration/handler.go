package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/coopledger/internal/ledger/journal"
	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
	"github.com/odyssey-erp/coopledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/coopledger/internal/shared"
)

// Handler accepts business events from the cooperative's operational modules.
type Handler struct {
	hooks  *Hooks
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, hooks *Hooks) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{hooks: hooks, logger: logger}
}

// MountRoutes attaches event routes below /tenants/{tenant}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Post("/savings-deposits", eventRoute(h, "savings deposit", h.hooks.HandleSavingsDeposit))
		r.Post("/savings-withdrawals", eventRoute(h, "savings withdrawal", h.hooks.HandleSavingsWithdrawal))
		r.Post("/loan-disbursements", eventRoute(h, "loan disbursement", h.hooks.HandleLoanDisbursed))
		r.Post("/loan-repayments", eventRoute(h, "loan repayment", h.hooks.HandleLoanRepayment))
		r.Post("/retail-sales", eventRoute(h, "retail sale", h.hooks.HandleRetailSale))
		r.Post("/ppob-sales", eventRoute(h, "ppob sale", h.hooks.HandlePPOB))
		r.Post("/manual-journals", eventRoute(h, "manual journal", func(ctx context.Context, evt ManualJournal) ([]journal.Entry, error) {
			entry, err := h.hooks.HandleManualJournal(ctx, evt)
			if err != nil {
				return nil, err
			}
			return []journal.Entry{entry}, nil
		}))
	})
}

type event interface {
	SavingsEvent | LoanDisbursedEvent | LoanRepaidEvent | RetailSaleEvent | PPOBEvent | ManualJournal
}

func eventRoute[E event](h *Handler, op string, handle func(context.Context, E) ([]journal.Entry, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := httpx.Int64Param(r, "tenant")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		var evt E
		meta, err := decodeEvent(r, &evt)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		meta.TenantID = tenantID
		meta.Actor = internalShared.ActorFromContext(r.Context())
		entries, err := handle(r.Context(), evt)
		if err != nil {
			if httpx.StatusFor(err) >= http.StatusInternalServerError {
				h.logger.Error(op, slog.String("category", shared.Category(err)), slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		status := http.StatusOK
		for _, e := range entries {
			if !e.Replayed {
				status = http.StatusCreated
			}
		}
		httpx.JSON(w, status, map[string]any{"entries": entries})
	}
}

// decodeEvent fills the event body and returns its embedded Meta so the
// caller can stamp tenant and actor from the request.
func decodeEvent(r *http.Request, target any) (*Meta, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", shared.ErrValidation, err)
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(target); err != nil {
		return nil, fmt.Errorf("%w: malformed request body: %v", shared.ErrValidation, err)
	}
	var envelope struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: malformed request body: %v", shared.ErrValidation, err)
	}
	meta := metaOf(target)
	if envelope.Date != "" {
		date, err := time.Parse(time.DateOnly, envelope.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", shared.ErrValidation)
		}
		meta.Date = date
	}
	return meta, nil
}

func metaOf(target any) *Meta {
	switch evt := target.(type) {
	case *SavingsEvent:
		return &evt.Meta
	case *LoanDisbursedEvent:
		return &evt.Meta
	case *LoanRepaidEvent:
		return &evt.Meta
	case *RetailSaleEvent:
		return &evt.Meta
	case *PPOBEvent:
		return &evt.Meta
	case *ManualJournal:
		return &evt.Meta
	}
	return &Meta{}
}
