package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/ledger"
	"stockledger/internal/models"
	"stockledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const (
	exportURLExpiry = 15 * time.Minute
	// exportRowLimit is the largest page the repositories return
	exportRowLimit = 1000
)

var (
	stockExportHeaders       = []string{"Plant", "Item Code", "Description", "Unit", "New", "Old & Used", "Total"}
	inventoryExportHeaders   = []string{"Reservation No", "Date", "Plant", "Item Group", "Item Code", "Description", "Unit", "New", "Old & Used", "Scrapped", "Total", "Remarks"}
	consumptionExportHeaders = []string{"Date", "Plant", "Item Code", "Description", "Unit", "Source", "Quantity", "Returned Item", "Disposition", "Remarks"}
)

// ExportService renders stock and ledger listings as downloadable workbooks.
// Every export is limited to the actor's plants.
type ExportService interface {
	ExportCurrentStock(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) (string, error)
	ExportInventory(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) (string, error)
	ExportConsumption(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) (string, error)
}

type exportService struct {
	store   repositories.Store
	storage MinioService
	logger  *logrus.Logger
	now     func() time.Time
}

func NewExportService(store repositories.Store, storage MinioService, logger *logrus.Logger) ExportService {
	return &exportService{store: store, storage: storage, logger: logger, now: time.Now}
}

// ExportCurrentStock uploads the workbook and returns a presigned URL valid for 15 minutes
func (s *exportService) ExportCurrentStock(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) (string, error) {
	ctx, span := tracer.Start(ctx, "export.ExportCurrentStock")
	defer span.End()

	scoped, err := exportFilter(actor, filter)
	if err != nil {
		return "", err
	}
	rows, err := s.store.Stock().List(ctx, scoped)
	if err != nil {
		return "", err
	}

	buf, err := StockWorkbook(rows)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return s.publish(ctx, "stock", buf)
}

func (s *exportService) ExportInventory(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) (string, error) {
	ctx, span := tracer.Start(ctx, "export.ExportInventory")
	defer span.End()

	scoped, err := exportFilter(actor, filter)
	if err != nil {
		return "", err
	}
	records, err := s.store.Inventory().List(ctx, scoped)
	if err != nil {
		return "", err
	}

	names := newMasterNames(s.store)
	lines := make([][]interface{}, 0, len(records))
	for _, r := range records {
		plant, err := names.plant(ctx, r.PlantID)
		if err != nil {
			return "", err
		}
		item, group, err := names.item(ctx, r.ItemID)
		if err != nil {
			return "", err
		}
		lines = append(lines, []interface{}{
			r.ReservationRef, r.Date.Format("2006-01-02"), plant, group, item.Code, item.Description, item.Unit,
			r.NewQty, r.OldUsedQty, r.ScrappedQty, r.Total, r.Remarks,
		})
	}

	buf, err := writeSheet("Inventory Ledger", inventoryExportHeaders, lines)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return s.publish(ctx, "inventory", buf)
}

func (s *exportService) ExportConsumption(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) (string, error) {
	ctx, span := tracer.Start(ctx, "export.ExportConsumption")
	defer span.End()

	scoped, err := exportFilter(actor, filter)
	if err != nil {
		return "", err
	}
	records, err := s.store.Consumption().List(ctx, scoped)
	if err != nil {
		return "", err
	}

	names := newMasterNames(s.store)
	lines := make([][]interface{}, 0, len(records))
	for _, r := range records {
		plant, err := names.plant(ctx, r.PlantID)
		if err != nil {
			return "", err
		}
		item, _, err := names.item(ctx, r.ItemID)
		if err != nil {
			return "", err
		}
		returned, disposition := "-", "-"
		if r.ReturnedItemID != nil {
			ret, _, err := names.item(ctx, *r.ReturnedItemID)
			if err != nil {
				return "", err
			}
			returned = ret.Code
		}
		if r.ReturnDisposition != nil {
			disposition = string(*r.ReturnDisposition)
		}
		lines = append(lines, []interface{}{
			r.Date.Format("2006-01-02"), plant, item.Code, item.Description, item.Unit,
			string(r.SourceCategory), r.Quantity, returned, disposition, r.Remarks,
		})
	}

	buf, err := writeSheet("Consumption History", consumptionExportHeaders, lines)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return s.publish(ctx, "consumption", buf)
}

// publish uploads a workbook under prefix and presigns it. An object that
// cannot be presigned is removed again.
func (s *exportService) publish(ctx context.Context, prefix string, buf *bytes.Buffer) (string, error) {
	object := fmt.Sprintf("%s/%s-%s.xlsx", prefix, s.now().Format("20060102-150405"), uuid.NewString()[:8])
	if err := s.storage.Upload(ctx, ExportsBucket, object, bytes.NewReader(buf.Bytes()), int64(buf.Len()), xlsxContentType); err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}

	url, err := s.storage.GetPresignedURL(ctx, ExportsBucket, object, exportURLExpiry)
	if err != nil {
		if delErr := s.storage.Delete(ctx, ExportsBucket, object); delErr != nil {
			config.LogError(s.logger, "services/export_service.go", "publish", "remove unsigned export", object, delErr)
		}
		return "", fmt.Errorf("failed to sign export: %w", err)
	}
	return url, nil
}

// exportFilter scopes filter to the actor and reads from the first row
func exportFilter(actor models.Actor, filter *models.LedgerFilter) (*models.LedgerFilter, error) {
	scoped, err := ledger.ScopeFilter(actor, filter)
	if err != nil {
		return nil, err
	}
	if scoped.Limit <= 0 || scoped.Limit > exportRowLimit {
		scoped.Limit = exportRowLimit
	}
	scoped.Offset = 0
	return scoped, nil
}

// masterNames caches plant, item and item group lookups for one export
type masterNames struct {
	store  repositories.Store
	plants map[uuid.UUID]string
	items  map[uuid.UUID]*models.Item
	groups map[uuid.UUID]string
}

func newMasterNames(store repositories.Store) *masterNames {
	return &masterNames{
		store:  store,
		plants: map[uuid.UUID]string{},
		items:  map[uuid.UUID]*models.Item{},
		groups: map[uuid.UUID]string{},
	}
}

func (n *masterNames) plant(ctx context.Context, id uuid.UUID) (string, error) {
	if name, ok := n.plants[id]; ok {
		return name, nil
	}
	p, err := n.store.Plants().GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	n.plants[id] = p.Name
	return p.Name, nil
}

// item returns the item and the name of its group
func (n *masterNames) item(ctx context.Context, id uuid.UUID) (*models.Item, string, error) {
	it, ok := n.items[id]
	if !ok {
		var err error
		if it, err = n.store.Items().GetByID(ctx, id); err != nil {
			return nil, "", err
		}
		n.items[id] = it
	}

	group, ok := n.groups[it.ItemGroupID]
	if !ok {
		g, err := n.store.ItemGroups().GetByID(ctx, it.ItemGroupID)
		if err != nil {
			return nil, "", err
		}
		group = g.Name
		n.groups[it.ItemGroupID] = group
	}
	return it, group, nil
}

// StockWorkbook writes one sheet with a header row and one line per stock row
func StockWorkbook(rows []*models.StockView) (*bytes.Buffer, error) {
	lines := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, []interface{}{
			row.PlantName,
			row.ItemCode,
			row.ItemDescription,
			row.Unit,
			row.NewQty,
			row.OldUsedQty,
			row.NewQty + row.OldUsedQty,
		})
	}
	return writeSheet("Current Stock", stockExportHeaders, lines)
}

// writeSheet renders a single-sheet workbook with an auto-filtered header row
func writeSheet(sheet string, headers []string, lines [][]interface{}) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for r, line := range lines {
		for c, v := range line {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	if len(lines) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(headers), len(lines)+1)
		if err := f.AutoFilter(sheet, "A1:"+last, nil); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}
