package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

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

// MountRoutes attaches chart-of-accounts routes below /tenants/{tenant}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.List)
	r.Post("/accounts", h.Create)
	r.Post("/accounts/seed", h.Seed)
	r.Get("/accounts/{id}", h.Get)
	r.Patch("/accounts/{id}", h.Update)
}

type createRequest struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Type           AccountType     `json:"type"`
	ParentID       *int64          `json:"parent_id"`
	IsHeader       bool            `json:"is_header"`
	Classification Classification  `json:"classification"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type updateRequest struct {
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	IsActive    *bool        `json:"is_active"`
	Code        *string      `json:"code"`
	Type        *AccountType `json:"type"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.Int64Param(r, "tenant")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if accounts == nil {
		accounts = []Account{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
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
	account, err := h.service.GetAccount(r.Context(), tenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.Int64Param(r, "tenant")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.CreateAccount(r.Context(), CreateInput{
		TenantID:       tenantID,
		Code:           req.Code,
		Name:           req.Name,
		Description:    req.Description,
		Type:           req.Type,
		ParentID:       req.ParentID,
		IsHeader:       req.IsHeader,
		Classification: req.Classification,
		InitialBalance: req.InitialBalance,
		Actor:          internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
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
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.UpdateAccount(r.Context(), tenantID, id, UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
		Code:        req.Code,
		Type:        req.Type,
		Actor:       internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.Int64Param(r, "tenant")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.SeedDefaults(r.Context(), tenantID, internalShared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("seed accounts", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
