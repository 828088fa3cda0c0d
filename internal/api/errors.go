package api

import (
	"errors"
	"net/http"

	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/labstack/echo/v4"
)

// errorResponse is the structured error body returned to callers
type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
}

// writeError maps the domain error taxonomy onto HTTP statuses. Internal
// failures never leak stack details to the caller.
func writeError(c echo.Context, err error) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode: domain.ErrCodeValidation,
			Message:   ve.Message,
			Details:   ve.Field,
		})
	}

	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return c.JSON(http.StatusNotFound, errorResponse{
			ErrorCode: domain.ErrCodeNotFound,
			Message:   nf.Error(),
		})
	}

	var ie *domain.IntegrationError
	if errors.As(err, &ie) {
		return c.JSON(http.StatusBadGateway, errorResponse{
			ErrorCode: domain.ErrCodeIntegration,
			Message:   "a downstream dependency is unavailable, retry later",
		})
	}

	return c.JSON(http.StatusInternalServerError, errorResponse{
		ErrorCode: domain.ErrCodeProcessing,
		Message:   "internal error",
	})
}
