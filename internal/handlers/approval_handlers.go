package handlers

import (
	"net/http"

	"stockledger/internal/common"
	"stockledger/internal/models"
	"stockledger/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// ApprovalHandlers resolves pending scrap requests and user registrations
type ApprovalHandlers struct {
	approvals services.ApprovalService
	logger    *logrus.Logger
}

func NewApprovalHandlers(approvals services.ApprovalService, logger *logrus.Logger) *ApprovalHandlers {
	return &ApprovalHandlers{approvals: approvals, logger: logger}
}

func (h *ApprovalHandlers) ListPendingScrap(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	pending, err := h.approvals.ListPending(c.Request().Context(), actor)
	if err != nil {
		return respondError(c, h.logger, "list scrap approvals", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"approvals": pending})
}

// ResolveScrap handles POST /approvals/scrap/:kind/:id/:action
func (h *ApprovalHandlers) ResolveScrap(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "resolve scrap approval", err)
	}

	res, err := h.approvals.Resolve(c.Request().Context(), actor,
		models.ApprovalKind(c.Param("kind")), id, models.ApprovalAction(c.Param("action")))
	if err != nil {
		return respondError(c, h.logger, "resolve scrap approval", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ApprovalHandlers) ListPendingUsers(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	users, err := h.approvals.ListPendingUsers(c.Request().Context(), actor)
	if err != nil {
		return respondError(c, h.logger, "list pending users", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"users": users})
}

func (h *ApprovalHandlers) ResolveUser(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "resolve user", err)
	}

	user, err := h.approvals.ResolveUser(c.Request().Context(), actor, id, models.ApprovalAction(c.Param("action")))
	if err != nil {
		return respondError(c, h.logger, "resolve user", err)
	}
	return c.JSON(http.StatusOK, user)
}
