package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/satriadwik/dealroom-be/internal/domain"
)

// writeError maps domain errors to HTTP statuses. Idempotent no-ops
// never reach here; they return the current state as success.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrListingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrDuplicateClaim), errors.Is(err, domain.ErrNoPendingClaim):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPreconditionFailed):
		status = http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrPaymentVerificationFailed):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrConfirmationTimeout):
		status = http.StatusRequestTimeout
	case errors.Is(err, domain.ErrInvalidAmounts), errors.Is(err, domain.ErrInvalidRole), errors.Is(err, domain.ErrInvalidPhase):
		status = http.StatusBadRequest
	}

	return c.JSON(status, map[string]string{
		"error": err.Error(),
	})
}
