package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", shared.ErrReferenceConflict), http.StatusConflict},
		{shared.ErrPeriodOverlap, http.StatusConflict},
		{shared.MissingFields("Amount"), http.StatusBadRequest},
		{shared.ErrPeriodClosed, http.StatusUnprocessableEntity},
		{shared.ErrNotFound, http.StatusNotFound},
		{shared.Storage("journal: insert", errors.New("conn reset")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestRespondErrorIntegrity(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, &shared.IntegrityError{TenantID: 3, Violations: []shared.Violation{
		{EntryID: 9, Kind: shared.ViolationHashMismatch},
	}})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	var p ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, "Ledger Integrity Violation", p.Title)
	require.Len(t, p.Violations, 1)
	assert.EqualValues(t, 9, p.Violations[0].EntryID)
}

func TestRespondErrorStorageHidesCause(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, shared.Storage("journal: insert", errors.New("password authentication failed")))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")
	assert.Contains(t, rr.Body.String(), "tx_reference")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Amount string `json:"amount"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1","extra":true}`))
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestParams(t *testing.T) {
	r := chi.NewRouter()
	var gotID int64
	var gotErr error
	r.Get("/entries/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotID, gotErr = Int64Param(r, "id")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/entries/12", nil))
	require.NoError(t, gotErr)
	assert.EqualValues(t, 12, gotID)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/entries/-1", nil))
	assert.ErrorIs(t, gotErr, shared.ErrValidation)

	req := httptest.NewRequest(http.MethodGet, "/?date=2024-02-29", nil)
	d, err := DateQuery(req, "date")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.Format("2006-01-02"))

	_, err = DateQuery(httptest.NewRequest(http.MethodGet, "/?date=29-02-2024", nil), "date")
	assert.ErrorIs(t, err, shared.ErrValidation)

	d, err = DateQuery(httptest.NewRequest(http.MethodGet, "/", nil), "date")
	require.NoError(t, err)
	assert.True(t, d.IsZero())
}
