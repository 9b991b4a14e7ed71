package journal

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
	"github.com/odyssey-erp/coopledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/coopledger/internal/shared"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches entry routes below /tenants/{tenant}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.Record)
	r.Get("/entries", h.List)
	r.Get("/entries/{id}", h.Get)
	r.Post("/entries/{id}/reverse", h.Reverse)
	r.Get("/chain/verify", h.Verify)
}

type recordRequest struct {
	TxType      string          `json:"tx_type"`
	TxReference string          `json:"tx_reference"`
	Debit       accounts.Ref    `json:"debit"`
	Credit      accounts.Ref    `json:"credit"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	EntryDate   string          `json:"entry_date"`
	Unit        string          `json:"unit"`
	Metadata    map[string]any  `json:"metadata"`
}

type reverseRequest struct {
	EntryDate string `json:"entry_date"`
	Reason    string `json:"reason"`
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.Int64Param(r, "tenant")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var entryDate time.Time
	if req.EntryDate != "" {
		entryDate, err = time.Parse(time.DateOnly, req.EntryDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "entry_date must be YYYY-MM-DD")
			return
		}
	}
	entry, err := h.service.RecordTransaction(r.Context(), RecordInput{
		TenantID:    tenantID,
		TxType:      req.TxType,
		TxReference: req.TxReference,
		Debit:       req.Debit,
		Credit:      req.Credit,
		Amount:      req.Amount,
		Description: req.Description,
		EntryDate:   entryDate,
		Actor:       internalShared.ActorFromContext(r.Context()),
		Unit:        req.Unit,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.fail(w, "record entry", err)
		return
	}
	status := http.StatusCreated
	if entry.Replayed {
		status = http.StatusOK
	}
	httpx.JSON(w, status, entry)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.Int64Param(r, "tenant")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := EntryFilter{TenantID: tenantID, Unit: r.URL.Query().Get("unit"), TxType: r.URL.Query().Get("tx_type")}
	if filter.StartDate, err = httpx.DateQuery(r, "start"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.EndDate, err = httpx.DateQuery(r, "end"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		filter.AccountID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		filter.Limit, _ = strconv.Atoi(raw)
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		filter.Offset, _ = strconv.Atoi(raw)
	}
	entries, err := h.service.ListEntries(r.Context(), filter)
	if err != nil {
		h.fail(w, "list entries", err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.Int64Param(r, "tenant")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.GetEntry(r.Context(), tenantID, id)
	if err != nil {
		h.fail(w, "get entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.Int64Param(r, "tenant")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	input := ReverseInput{
		TenantID: tenantID,
		EntryID:  id,
		Actor:    internalShared.ActorFromContext(r.Context()),
		Reason:   req.Reason,
	}
	if req.EntryDate != "" {
		date, err := time.Parse(time.DateOnly, req.EntryDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "entry_date must be YYYY-MM-DD")
			return
		}
		input.EntryDate = &date
	}
	entry, err := h.service.ReverseEntry(r.Context(), input)
	if err != nil {
		h.fail(w, "reverse entry", err)
		return
	}
	status := http.StatusCreated
	if entry.Replayed {
		status = http.StatusOK
	}
	httpx.JSON(w, status, entry)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.Int64Param(r, "tenant")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.VerifyChain(r.Context(), tenantID)
	if err != nil {
		h.fail(w, "verify chain", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.String("category", shared.Category(err)), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
