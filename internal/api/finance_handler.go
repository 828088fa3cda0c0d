package api

import (
	"net/http"
	"strconv"

	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/courtcase/financial-analysis/internal/repository/elasticsearch"
	"github.com/courtcase/financial-analysis/internal/repository/postgres"
	"github.com/courtcase/financial-analysis/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// FinanceHandler serves the analysis surface: summaries, analyze runs,
// the alert lifecycle, and the audit trail.
type FinanceHandler struct {
	analysis  *service.AnalysisService
	summaries *service.SummaryService
	alerts    *service.AlertService
	search    *elasticsearch.AlertIndex
	audit     *postgres.AuditRepository
}

func NewFinanceHandler(analysis *service.AnalysisService, summaries *service.SummaryService, alerts *service.AlertService, search *elasticsearch.AlertIndex, audit *postgres.AuditRepository) *FinanceHandler {
	return &FinanceHandler{
		analysis:  analysis,
		summaries: summaries,
		alerts:    alerts,
		search:    search,
		audit:     audit,
	}
}

// GetSummary handles GET /cases/:case_id/financial-summary
func (h *FinanceHandler) GetSummary(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("case_id"))
	if err != nil {
		return writeError(c, domain.NewValidationError("case_id", "invalid case id"))
	}

	summary, err := h.summaries.Summarize(c.Request().Context(), caseID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// AnalyzeCase handles POST /cases/:case_id/analyze. The run is synchronous
// but idempotent and cheap to retry, so it answers 202 with the run result.
func (h *FinanceHandler) AnalyzeCase(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("case_id"))
	if err != nil {
		return writeError(c, domain.NewValidationError("case_id", "invalid case id"))
	}

	result, err := h.analysis.AnalyzeCase(c.Request().Context(), caseID, actorID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, result)
}

// ListAlerts handles GET /cases/:case_id/alerts
func (h *FinanceHandler) ListAlerts(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("case_id"))
	if err != nil {
		return writeError(c, domain.NewValidationError("case_id", "invalid case id"))
	}

	var filter domain.AlertFilter
	if v := c.QueryParam("alert_type"); v != "" {
		filter.AlertType = &v
	}
	if v := c.QueryParam("severity"); v != "" {
		severity, ok := domain.ParseAlertSeverity(v)
		if !ok {
			return writeError(c, domain.NewValidationError("severity", "unknown severity "+v))
		}
		filter.Severity = &severity
	}
	if v := c.QueryParam("acknowledged"); v != "" {
		acknowledged, err := strconv.ParseBool(v)
		if err != nil {
			return writeError(c, domain.NewValidationError("acknowledged", "must be a boolean"))
		}
		filter.Acknowledged = &acknowledged
	}
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	alerts, err := h.alerts.ListAlerts(c.Request().Context(), caseID, filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, alerts)
}

// AcknowledgeAlert handles POST /alerts/:alert_id/acknowledge
func (h *FinanceHandler) AcknowledgeAlert(c echo.Context) error {
	alertID, err := uuid.Parse(c.Param("alert_id"))
	if err != nil {
		return writeError(c, domain.NewValidationError("alert_id", "invalid alert id"))
	}

	alert, err := h.alerts.Acknowledge(c.Request().Context(), alertID, actorID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, alert)
}

// SearchAlerts handles GET /alerts/search
func (h *FinanceHandler) SearchAlerts(c echo.Context) error {
	if h.search == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{
			ErrorCode: domain.ErrCodeIntegration,
			Message:   "alert search is unavailable",
		})
	}

	query := c.QueryParam("q")
	if query == "" {
		return writeError(c, domain.NewValidationError("q", "missing query parameter"))
	}

	from, _ := strconv.Atoi(c.QueryParam("from"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size == 0 {
		size = 20
	}

	alerts, total, err := h.search.SearchAlerts(c.Request().Context(), query, from, size)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"alerts":      alerts,
		"total_count": total,
	})
}

// GetAuditTrail handles GET /cases/:case_id/audit-trail
func (h *FinanceHandler) GetAuditTrail(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("case_id"))
	if err != nil {
		return writeError(c, domain.NewValidationError("case_id", "invalid case id"))
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 100
	}

	records, err := h.audit.ListByCase(c.Request().Context(), caseID.String(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, records)
}

// RegisterRoutes registers the analysis API routes
func (h *FinanceHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/cases/:case_id/financial-summary", h.GetSummary)
	g.POST("/cases/:case_id/analyze", h.AnalyzeCase)
	g.GET("/cases/:case_id/alerts", h.ListAlerts)
	g.GET("/cases/:case_id/audit-trail", h.GetAuditTrail)
	g.POST("/alerts/:alert_id/acknowledge", h.AcknowledgeAlert)
	g.GET("/alerts/search", h.SearchAlerts)
}
