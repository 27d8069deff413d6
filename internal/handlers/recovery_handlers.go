package handlers

import (
	"net/http"

	"stockledger/internal/common"
	"stockledger/internal/ledger"
	"stockledger/internal/models"
	"stockledger/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// recoverableEntities maps route segments to the entities that support
// soft delete and restore
var recoverableEntities = map[string]models.EntityType{
	"clusters":    models.EntityCluster,
	"plants":      models.EntityPlant,
	"item-groups": models.EntityItemGroup,
	"items":       models.EntityItem,
	"users":       models.EntityUser,
}

// RecoveryHandlers serves cascading soft delete, restore and the deleted-records view
type RecoveryHandlers struct {
	recovery services.RecoveryService
	logger   *logrus.Logger
}

func NewRecoveryHandlers(recovery services.RecoveryService, logger *logrus.Logger) *RecoveryHandlers {
	return &RecoveryHandlers{recovery: recovery, logger: logger}
}

func entityParam(c echo.Context) (models.EntityType, error) {
	entity, ok := recoverableEntities[c.Param("entity")]
	if !ok {
		return "", ledger.Violation(ledger.ErrValidation, "unknown entity %q", c.Param("entity"))
	}
	return entity, nil
}

// SoftDelete returns the handler for DELETE on one entity collection
func (h *RecoveryHandlers) SoftDelete(entity models.EntityType) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorFrom(c)
		if err != nil {
			return err
		}
		id, err := common.ParamUUID(c, "id")
		if err != nil {
			return respondError(c, h.logger, "delete record", err)
		}

		if err := h.recovery.SoftDelete(c.Request().Context(), actor, entity, id); err != nil {
			return respondError(c, h.logger, "delete record", err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (h *RecoveryHandlers) Restore(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	entity, err := entityParam(c)
	if err != nil {
		return respondError(c, h.logger, "restore record", err)
	}
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "restore record", err)
	}

	if err := h.recovery.Restore(c.Request().Context(), actor, entity, id); err != nil {
		return respondError(c, h.logger, "restore record", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "restored"})
}

func (h *RecoveryHandlers) ListDeleted(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	entity, err := entityParam(c)
	if err != nil {
		return respondError(c, h.logger, "list deleted records", err)
	}

	records, err := h.recovery.ListDeleted(c.Request().Context(), actor, entity)
	if err != nil {
		return respondError(c, h.logger, "list deleted records", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"records": records})
}
