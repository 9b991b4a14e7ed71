package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/coopledger/internal/ledger/shared"
)

// StatusFor maps ledger errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrReferenceConflict),
		errors.Is(err, shared.ErrDuplicateCode),
		errors.Is(err, shared.ErrPeriodOverlap):
		return http.StatusConflict
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrPeriod):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	problem := ProblemDetail{Title: http.StatusText(status), Status: status}
	switch status {
	case http.StatusServiceUnavailable:
		problem.Detail = "storage temporarily unavailable, retry with the same tx_reference"
	case http.StatusInternalServerError:
		var integrity *shared.IntegrityError
		if errors.As(err, &integrity) {
			problem.Title = "Ledger Integrity Violation"
			problem.Detail = integrity.Error()
			problem.Violations = integrity.Violations
		}
	default:
		problem.Detail = err.Error()
	}
	writeProblem(w, problem)
}
