package handlers

import (
	"net/http"

	"stockledger/internal/common"
	"stockledger/internal/models"
	"stockledger/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// AuditLogsHandlers handles audit logs related HTTP requests
type AuditLogsHandlers struct {
	auditLogsService services.AuditLogsService
	logger           *logrus.Logger
}

// NewAuditLogsHandlers creates a new audit logs handlers instance
func NewAuditLogsHandlers(auditLogsService services.AuditLogsService, logger *logrus.Logger) *AuditLogsHandlers {
	return &AuditLogsHandlers{
		auditLogsService: auditLogsService,
		logger:           logger,
	}
}

// ListAuditLogs retrieves audit logs with filtering and pagination
func (h *AuditLogsHandlers) ListAuditLogs(c echo.Context) error {
	ctx := c.Request().Context()

	filters := &models.AuditLogFilters{}
	if action := c.QueryParam("action"); action != "" {
		filters.Action = &action
	}
	if entityType := c.QueryParam("entity_type"); entityType != "" {
		filters.EntityType = &entityType
	}
	if entityID := c.QueryParam("entity_id"); entityID != "" {
		filters.EntityID = &entityID
	}

	var err error
	if filters.UserID, err = common.QueryUUID(c, "user_id"); err != nil {
		return respondError(c, h.logger, "list audit logs", err)
	}
	if filters.StartDate, err = queryTime(c, "start_date"); err != nil {
		return respondError(c, h.logger, "list audit logs", err)
	}
	if filters.EndDate, err = queryTime(c, "end_date"); err != nil {
		return respondError(c, h.logger, "list audit logs", err)
	}
	if filters.Limit, filters.Offset, err = common.Pagination(c); err != nil {
		return respondError(c, h.logger, "list audit logs", err)
	}

	logs, err := h.auditLogsService.ListAuditLogs(ctx, filters)
	if err != nil {
		return respondError(c, h.logger, "list audit logs", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"audit_logs": logs,
		"limit":      filters.Limit,
		"offset":     filters.Offset,
	})
}

// GetAuditLog retrieves a single audit log entry
func (h *AuditLogsHandlers) GetAuditLog(c echo.Context) error {
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "get audit log", err)
	}
	auditLog, err := h.auditLogsService.GetAuditLog(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, "get audit log", err)
	}
	return c.JSON(http.StatusOK, auditLog)
}
