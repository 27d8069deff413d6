package handlers

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"stockledger/internal/common"
	"stockledger/internal/ledger"
	"stockledger/internal/models"
	"stockledger/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const maxImportSize = 10 << 20

// InventoryHandlers serves receipts, consumption and current stock
type InventoryHandlers struct {
	ledger   services.LedgerService
	importer services.ImportService
	exporter services.ExportService
	logger   *logrus.Logger
}

func NewInventoryHandlers(ledger services.LedgerService, importer services.ImportService, exporter services.ExportService, logger *logrus.Logger) *InventoryHandlers {
	return &InventoryHandlers{
		ledger:   ledger,
		importer: importer,
		exporter: exporter,
		logger:   logger,
	}
}

// CreateInventory records a receipt. A scrap figure from an actor without
// approval authority is deferred and the response is 202.
func (h *InventoryHandlers) CreateInventory(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req services.ReceiptInput
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, "record inventory", err)
	}

	res, err := h.ledger.RecordInventoryReceipt(c.Request().Context(), actor, req)
	if err != nil {
		return respondError(c, h.logger, "record inventory", err)
	}
	return c.JSON(outcomeStatus(res.Outcome, http.StatusCreated), res)
}

func (h *InventoryHandlers) UpdateInventory(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "update inventory", err)
	}
	var req services.EditInput
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, "update inventory", err)
	}

	res, err := h.ledger.EditInventoryRecord(c.Request().Context(), actor, id, req)
	if err != nil {
		return respondError(c, h.logger, "update inventory", err)
	}
	return c.JSON(outcomeStatus(res.Outcome, http.StatusOK), res)
}

func (h *InventoryHandlers) DeleteInventory(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "delete inventory", err)
	}

	if err := h.ledger.DeleteInventoryRecord(c.Request().Context(), actor, id); err != nil {
		return respondError(c, h.logger, "delete inventory", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *InventoryHandlers) ListInventory(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	filter, err := ledgerFilter(c)
	if err != nil {
		return respondError(c, h.logger, "list inventory", err)
	}
	rows, err := h.ledger.ListInventory(c.Request().Context(), actor, filter)
	if err != nil {
		return respondError(c, h.logger, "list inventory", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"inventory": rows,
		"limit":     filter.Limit,
		"offset":    filter.Offset,
	})
}

// ImportInventory ingests an uploaded xlsx workbook from the "file" field
func (h *InventoryHandlers) ImportInventory(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return common.SendValidationError(c, "file", "an xlsx file is required")
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".xlsx") {
		return common.SendValidationError(c, "file", "only .xlsx files are supported")
	}
	if fh.Size > maxImportSize {
		return common.SendValidationError(c, "file", "file exceeds 10 MB")
	}

	f, err := fh.Open()
	if err != nil {
		return respondError(c, h.logger, "import inventory", err)
	}
	defer f.Close()

	res, err := h.importer.ImportInventory(c.Request().Context(), actor, fh.Filename, f)
	if err != nil {
		return respondError(c, h.logger, "import inventory", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *InventoryHandlers) CreateConsumption(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req services.ConsumptionInput
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, "record consumption", err)
	}

	res, err := h.ledger.RecordConsumption(c.Request().Context(), actor, req)
	if err != nil {
		return respondError(c, h.logger, "record consumption", err)
	}
	return c.JSON(outcomeStatus(res.Outcome, http.StatusCreated), res)
}

func (h *InventoryHandlers) UpdateConsumption(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "update consumption", err)
	}
	var req services.ConsumptionEditInput
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, "update consumption", err)
	}

	row, err := h.ledger.EditConsumption(c.Request().Context(), actor, id, req)
	if err != nil {
		return respondError(c, h.logger, "update consumption", err)
	}
	return c.JSON(http.StatusOK, row)
}

func (h *InventoryHandlers) DeleteConsumption(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "delete consumption", err)
	}

	if err := h.ledger.DeleteConsumption(c.Request().Context(), actor, id); err != nil {
		return respondError(c, h.logger, "delete consumption", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *InventoryHandlers) ListConsumption(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	filter, err := ledgerFilter(c)
	if err != nil {
		return respondError(c, h.logger, "list consumption", err)
	}
	rows, err := h.ledger.ListConsumption(c.Request().Context(), actor, filter)
	if err != nil {
		return respondError(c, h.logger, "list consumption", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"consumption": rows,
		"limit":       filter.Limit,
		"offset":      filter.Offset,
	})
}

func (h *InventoryHandlers) ListStock(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	filter, err := ledgerFilter(c)
	if err != nil {
		return respondError(c, h.logger, "list stock", err)
	}
	rows, err := h.ledger.ListCurrentStock(c.Request().Context(), actor, filter)
	if err != nil {
		return respondError(c, h.logger, "list stock", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"stock": rows})
}

func (h *InventoryHandlers) GetStock(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	plantID, err := common.ParamUUID(c, "plantId")
	if err != nil {
		return respondError(c, h.logger, "get stock", err)
	}
	itemID, err := common.ParamUUID(c, "itemId")
	if err != nil {
		return respondError(c, h.logger, "get stock", err)
	}

	stock, err := h.ledger.GetCurrentStock(c.Request().Context(), actor, plantID, itemID)
	if err != nil {
		return respondError(c, h.logger, "get stock", err)
	}
	return c.JSON(http.StatusOK, stock)
}

// ExportStock returns a short-lived download link for the stock workbook
func (h *InventoryHandlers) ExportStock(c echo.Context) error {
	return h.export(c, "export stock", h.exporter.ExportCurrentStock)
}

func (h *InventoryHandlers) ExportInventory(c echo.Context) error {
	return h.export(c, "export inventory", h.exporter.ExportInventory)
}

func (h *InventoryHandlers) ExportConsumption(c echo.Context) error {
	return h.export(c, "export consumption", h.exporter.ExportConsumption)
}

type exportFunc func(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) (string, error)

func (h *InventoryHandlers) export(c echo.Context, operation string, run exportFunc) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	filter, err := ledgerFilter(c)
	if err != nil {
		return respondError(c, h.logger, operation, err)
	}
	url, err := run(c.Request().Context(), actor, filter)
	if err != nil {
		return respondError(c, h.logger, operation, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

// Dashboard totals available, scrapped or consumed quantity per item group
// over the caller's plants
func (h *InventoryHandlers) Dashboard(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	plantID, err := common.QueryUUID(c, "plant_id")
	if err != nil {
		return respondError(c, h.logger, "dashboard", err)
	}
	filter := &models.SummaryFilter{
		PlantID:   plantID,
		DataType:  c.QueryParam("data_type"),
		StockType: c.QueryParam("stock_type"),
	}

	summary, err := h.ledger.SummaryByItemGroup(c.Request().Context(), actor, filter)
	if err != nil {
		return respondError(c, h.logger, "dashboard", err)
	}
	return c.JSON(http.StatusOK, summary)
}

func outcomeStatus(outcome ledger.Outcome, applied int) int {
	if outcome == ledger.PendingApproval {
		return http.StatusAccepted
	}
	return applied
}
