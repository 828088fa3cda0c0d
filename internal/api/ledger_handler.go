package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/courtcase/financial-analysis/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// LedgerHandler serves account and transaction CRUD
type LedgerHandler struct {
	ledger *service.LedgerService
}

func NewLedgerHandler(ledger *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// CreateAccount handles POST /accounts
func (h *LedgerHandler) CreateAccount(c echo.Context) error {
	var req domain.CreateAccountRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, domain.NewValidationError("body", "malformed request body"))
	}

	account, err := h.ledger.CreateAccount(c.Request().Context(), req, actorID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, account)
}

// GetAccount handles GET /accounts/:account_id
func (h *LedgerHandler) GetAccount(c echo.Context) error {
	accountID, err := uuid.Parse(c.Param("account_id"))
	if err != nil {
		return writeError(c, domain.NewValidationError("account_id", "invalid account id"))
	}

	account, err := h.ledger.GetAccount(c.Request().Context(), accountID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, account)
}

// ListAccounts handles GET /cases/:case_id/accounts
func (h *LedgerHandler) ListAccounts(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("case_id"))
	if err != nil {
		return writeError(c, domain.NewValidationError("case_id", "invalid case id"))
	}

	accounts, err := h.ledger.ListAccounts(c.Request().Context(), caseID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, accounts)
}

// DeleteAccount handles DELETE /accounts/:account_id. Cascades to the
// account's transactions; rejected while unacknowledged alerts reference any.
func (h *LedgerHandler) DeleteAccount(c echo.Context) error {
	accountID, err := uuid.Parse(c.Param("account_id"))
	if err != nil {
		return writeError(c, domain.NewValidationError("account_id", "invalid account id"))
	}

	if err := h.ledger.DeleteAccount(c.Request().Context(), accountID, actorID(c)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateTransaction handles POST /transactions
func (h *LedgerHandler) CreateTransaction(c echo.Context) error {
	var req domain.CreateTransactionRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, domain.NewValidationError("body", "malformed request body"))
	}

	tx, err := h.ledger.CreateTransaction(c.Request().Context(), req, actorID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, tx)
}

// GetTransaction handles GET /transactions/:transaction_id
func (h *LedgerHandler) GetTransaction(c echo.Context) error {
	transactionID, err := uuid.Parse(c.Param("transaction_id"))
	if err != nil {
		return writeError(c, domain.NewValidationError("transaction_id", "invalid transaction id"))
	}

	tx, err := h.ledger.GetTransaction(c.Request().Context(), transactionID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, tx)
}

// ListTransactions handles GET /cases/:case_id/transactions
func (h *LedgerHandler) ListTransactions(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("case_id"))
	if err != nil {
		return writeError(c, domain.NewValidationError("case_id", "invalid case id"))
	}

	filter := domain.TransactionFilter{CaseID: &caseID}
	if v := c.QueryParam("account_id"); v != "" {
		accountID, err := uuid.Parse(v)
		if err != nil {
			return writeError(c, domain.NewValidationError("account_id", "invalid account id"))
		}
		filter.AccountID = &accountID
	}
	if v := c.QueryParam("start_date"); v != "" {
		start, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return writeError(c, domain.NewValidationError("start_date", "must be RFC3339"))
		}
		filter.StartDate = &start
	}
	if v := c.QueryParam("end_date"); v != "" {
		end, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return writeError(c, domain.NewValidationError("end_date", "must be RFC3339"))
		}
		filter.EndDate = &end
	}
	filter.SuspiciousOnly, _ = strconv.ParseBool(c.QueryParam("suspicious_only"))
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	transactions, err := h.ledger.ListTransactions(c.Request().Context(), filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, transactions)
}

// CorrectTransaction handles PUT /transactions/:transaction_id. Only the
// descriptive fields can change; amount, date, and derived fields cannot.
func (h *LedgerHandler) CorrectTransaction(c echo.Context) error {
	transactionID, err := uuid.Parse(c.Param("transaction_id"))
	if err != nil {
		return writeError(c, domain.NewValidationError("transaction_id", "invalid transaction id"))
	}

	var corr domain.TransactionCorrection
	if err := c.Bind(&corr); err != nil {
		return writeError(c, domain.NewValidationError("body", "malformed request body"))
	}

	tx, err := h.ledger.CorrectTransaction(c.Request().Context(), transactionID, corr, actorID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, tx)
}

// RegisterRoutes registers the ledger API routes
func (h *LedgerHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/accounts", h.CreateAccount)
	g.GET("/accounts/:account_id", h.GetAccount)
	g.DELETE("/accounts/:account_id", h.DeleteAccount)
	g.GET("/cases/:case_id/accounts", h.ListAccounts)
	g.POST("/transactions", h.CreateTransaction)
	g.GET("/transactions/:transaction_id", h.GetTransaction)
	g.PUT("/transactions/:transaction_id", h.CorrectTransaction)
	g.GET("/cases/:case_id/transactions", h.ListTransactions)
}
