package periods

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

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

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/periods", h.List)
	r.Post("/periods", h.Create)
	r.Get("/periods/open", h.Open)
	r.Post("/periods/{id}/close", h.Close)
}

type createRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := httpx.Int64Param(r, "tenant")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	periods, err := h.service.ListPeriods(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("list periods", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if periods == nil {
		periods = []Period{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": periods})
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
	input := CreateInput{TenantID: tenantID, Name: req.Name, Actor: internalShared.ActorFromContext(r.Context())}
	for _, field := range []struct {
		raw  string
		dest *time.Time
	}{{req.StartDate, &input.StartDate}, {req.EndDate, &input.EndDate}} {
		if field.raw == "" {
			continue
		}
		parsed, err := time.Parse(time.DateOnly, field.raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "dates must be YYYY-MM-DD")
			return
		}
		*field.dest = parsed
	}
	period, err := h.service.CreatePeriod(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, period)
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
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
		date = time.Now()
	}
	period, err := h.service.GetOpenPeriod(r.Context(), tenantID, date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
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
	period, err := h.service.ClosePeriod(r.Context(), tenantID, id, internalShared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}
