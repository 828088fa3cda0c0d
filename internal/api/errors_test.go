package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callWriteError(t *testing.T, err error) (int, errorResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, writeError(c, err))

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestWriteErrorValidation(t *testing.T) {
	status, body := callWriteError(t, domain.NewValidationError("amount", "amount is required"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.ErrCodeValidation, body.ErrorCode)
	assert.Equal(t, "amount is required", body.Message)
	assert.Equal(t, "amount", body.Details)
}

func TestWriteErrorNotFound(t *testing.T) {
	status, body := callWriteError(t, domain.NewNotFoundError("case", "abc"))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, domain.ErrCodeNotFound, body.ErrorCode)
}

func TestWriteErrorIntegrationHidesInternals(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.5:5432: connection refused")
	status, body := callWriteError(t, &domain.IntegrationError{System: "postgres", Err: cause})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, domain.ErrCodeIntegration, body.ErrorCode)
	assert.NotContains(t, body.Message, "10.0.0.5")
}

func TestWriteErrorFallsBackToProcessing(t *testing.T) {
	status, body := callWriteError(t, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, domain.ErrCodeProcessing, body.ErrorCode)
	assert.Equal(t, "internal error", body.Message)
}
