package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"stockledger/internal/caching"
	"stockledger/internal/config"
	"stockledger/internal/ledger"
	"stockledger/internal/models"
	"stockledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/attribute"
)

const (
	importLockTTL   = 5 * time.Minute
	importHeaderRow = 2
)

// importHeaders are the required columns of row 2, lower-cased
var importHeaders = []string{"plant", "item group", "item", "item_name", "uom", "new", "old & used", "scrapped"}

// ImportService ingests inventory receipts from xlsx workbooks
type ImportService interface {
	ImportInventory(ctx context.Context, actor models.Actor, filename string, file io.Reader) (*models.BulkOperationResult, error)
}

type importService struct {
	store   repositories.Store
	ledger  *ledgerService
	storage MinioService
	locker  caching.Locker
	fx      *sideEffects
	logger  *logrus.Logger
	now     func() time.Time
}

func NewImportService(store repositories.Store, refs RefGenerator, storage MinioService, locker caching.Locker, cache caching.StockCache, audit AuditLogsService, notifier NotificationService, logger *logrus.Logger) ImportService {
	return &importService{
		store:   store,
		ledger:  newLedgerService(store, refs, cache, audit, notifier, logger),
		storage: storage,
		locker:  locker,
		fx:      newSideEffects(store, audit, notifier, cache, logger),
		logger:  logger,
		now:     time.Now,
	}
}

// ImportInventory applies every valid row in one transaction. Each row runs
// in its own savepoint, so a failing row is reported and skipped while the
// rows already applied are kept.
func (s *importService) ImportInventory(ctx context.Context, actor models.Actor, filename string, file io.Reader) (*models.BulkOperationResult, error) {
	ctx, span := tracer.Start(ctx, "import.ImportInventory")
	defer span.End()
	span.SetAttributes(attribute.String("import.filename", filename))

	if err := ledger.CanMutate(actor); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	rows, rowErrors, err := ParseInventoryWorkbook(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	opID := uuid.New()
	result := &models.BulkOperationResult{
		OperationID: opID.String(),
		StartTime:   s.now(),
		TotalItems:  len(rows) + len(rowErrors),
		FailedItems: len(rowErrors),
		Errors:      rowErrors,
	}
	for _, e := range rowErrors {
		msg := e.Error
		result.Items = append(result.Items, models.BulkOperationItem{Row: e.Row, Status: "failed", Error: &msg})
	}

	fx := &effects{}
	err = s.locker.WithLock(ctx, caching.ImportLockKey, importLockTTL, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(tx repositories.Store) error {
			masters := &importMasters{actor: actor}
			for _, row := range rows {
				rowFx := &effects{}
				var receipt *ReceiptResult
				err := tx.WithinTx(ctx, func(sp repositories.Store) error {
					var err error
					receipt, err = s.importRow(ctx, sp, masters, row, filename, rowFx)
					return err
				})
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					msg := ledger.RuleMessage(err)
					result.FailedItems++
					result.Errors = append(result.Errors, models.BulkOperationError{Row: row.Row, Error: msg})
					result.Items = append(result.Items, models.BulkOperationItem{Row: row.Row, Status: "failed", Error: &msg})
					continue
				}
				fx.merge(rowFx)
				result.ProcessedItems++
				result.Items = append(result.Items, models.BulkOperationItem{Row: row.Row, InventoryID: receipt.Inventory.ID.String(), Status: "success"})
			}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result.ArchiveObject = s.archive(ctx, opID, filename, data)
	result.Finish(s.now())

	fx.audit(models.ActionInventoryImport, models.EntityInventory, opID, models.JSONB{
		"file_name":     filename,
		"status":        result.Status,
		"total_rows":    result.TotalItems,
		"success_count": result.ProcessedItems,
		"error_count":   result.FailedItems,
	})
	s.fx.flush(actor.UserID, fx)

	s.logger.WithFields(logrus.Fields{
		"module":       "import",
		"operation_id": result.OperationID,
		"status":       result.Status,
		"processed":    result.ProcessedItems,
		"failed":       result.FailedItems,
	}).Info("Inventory import finished")
	return result, nil
}

func (s *importService) importRow(ctx context.Context, tx repositories.Store, masters *importMasters, row models.ImportRow, filename string, fx *effects) (*ReceiptResult, error) {
	plant, err := masters.plant(ctx, tx, row.Plant, fx)
	if err != nil {
		return nil, err
	}
	item, err := masters.item(ctx, tx, row, fx)
	if err != nil {
		return nil, err
	}

	return s.ledger.receipt(ctx, tx, masters.actor, ReceiptInput{
		PlantID:        plant.ID,
		ItemID:         item.ID,
		ReservationRef: s.ledger.refs.ImportRef(row.Row),
		NewQty:         row.NewQty,
		OldUsedQty:     row.OldUsedQty,
		ScrapRequest:   row.ScrappedQty,
		Remarks:        "Imported from " + filename,
	}, fx)
}

// archive stores the source workbook; a failure is logged and the import stands
func (s *importService) archive(ctx context.Context, opID uuid.UUID, filename string, data []byte) string {
	object := fmt.Sprintf("inventory/%s-%s", opID, path.Base(filename))
	err := s.storage.Upload(ctx, ImportsBucket, object, bytes.NewReader(data), int64(len(data)), xlsxContentType)
	if err != nil {
		config.LogError(s.logger, "services/import_service.go", "archive", "archive import workbook", object, err)
		return ""
	}
	return object
}

// importMasters resolves plants, groups and items by name, creating the
// missing ones. New plants go to the default cluster.
type importMasters struct {
	actor   models.Actor
	cluster *models.Cluster
}

func (m *importMasters) plant(ctx context.Context, tx repositories.Store, name string, fx *effects) (*models.Plant, error) {
	plant, err := tx.Plants().GetByName(ctx, name)
	if err == nil || !errors.Is(err, ledger.ErrEntityNotFound) {
		return plant, err
	}

	if m.cluster == nil {
		cluster, err := m.homeCluster(ctx, tx)
		if err != nil {
			return nil, ledger.Violation(ledger.ErrValidation, "no active cluster to create plant %q in", name)
		}
		m.cluster = cluster
	}
	return createPlant(ctx, tx, name, m.cluster.ID, m.actor.UserID, fx)
}

// homeCluster is the cluster new plants are created in: the manager's own
// cluster, or the default cluster for everyone else
func (m *importMasters) homeCluster(ctx context.Context, tx repositories.Store) (*models.Cluster, error) {
	if m.actor.Role != models.RoleClusterManager || m.actor.ClusterID == nil {
		return tx.Clusters().Default(ctx)
	}
	cluster, err := tx.Clusters().GetByID(ctx, *m.actor.ClusterID)
	if err != nil {
		return nil, err
	}
	if cluster.IsDeleted {
		return nil, ledger.NotFound("cluster")
	}
	return cluster, nil
}

func (m *importMasters) item(ctx context.Context, tx repositories.Store, row models.ImportRow, fx *effects) (*models.Item, error) {
	item, err := tx.Items().GetByCode(ctx, row.ItemCode)
	if err == nil || !errors.Is(err, ledger.ErrEntityNotFound) {
		return item, err
	}

	group, err := tx.ItemGroups().GetByName(ctx, row.ItemGroup)
	if errors.Is(err, ledger.ErrEntityNotFound) {
		group, err = createItemGroup(ctx, tx, row.ItemGroup, m.actor.UserID, fx)
	}
	if err != nil {
		return nil, err
	}

	return createItem(ctx, tx, ItemInput{
		Code:        row.ItemCode,
		Description: row.ItemName,
		Unit:        row.Unit,
		ItemGroupID: group.ID,
	}, m.actor.UserID, fx)
}

// ParseInventoryWorkbook reads the first sheet of an inventory workbook.
// Headers are on row 2 and data starts on row 3. Rows with missing fields or
// non-numeric quantities are returned as row errors; a missing header fails
// the whole workbook.
func ParseInventoryWorkbook(r io.Reader) ([]models.ImportRow, []models.BulkOperationError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, ledger.Violation(ledger.ErrValidation, "failed to read Excel file, please ensure the file is not corrupted")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ledger.Violation(ledger.ErrValidation, "Excel file contains no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows from Excel: %w", err)
	}
	if len(rows) < importHeaderRow {
		return nil, nil, ledger.Violation(ledger.ErrValidation, "invalid Excel template, row 2 must contain headers")
	}

	columns := make(map[string]int)
	for i, cell := range rows[importHeaderRow-1] {
		if h := strings.ToLower(strings.TrimSpace(cell)); h != "" {
			if _, seen := columns[h]; !seen {
				columns[h] = i
			}
		}
	}
	var missing []string
	for _, h := range importHeaders {
		if _, ok := columns[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, nil, ledger.Violation(ledger.ErrValidation, "missing columns: %s", strings.Join(missing, ", "))
	}

	var parsed []models.ImportRow
	var rowErrors []models.BulkOperationError
	for i := importHeaderRow; i < len(rows); i++ {
		cells := rows[i]
		rowNum := i + 1
		get := func(header string) string {
			idx := columns[header]
			if idx >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[idx])
		}
		if blankRow(cells) {
			continue
		}

		row := models.ImportRow{
			Row:       rowNum,
			Plant:     get("plant"),
			ItemGroup: get("item group"),
			ItemCode:  get("item"),
			ItemName:  get("item_name"),
			Unit:      get("uom"),
		}

		var absent []string
		for label, v := range map[string]string{"PLANT": row.Plant, "ITEM GROUP": row.ItemGroup, "ITEM": row.ItemCode, "ITEM_NAME": row.ItemName, "UOM": row.Unit} {
			if v == "" {
				absent = append(absent, label)
			}
		}
		if len(absent) > 0 {
			sort.Strings(absent)
			rowErrors = append(rowErrors, models.BulkOperationError{Row: rowNum, Error: "missing required fields: " + strings.Join(absent, ", ")})
			continue
		}

		var qtyErr error
		row.NewQty, qtyErr = parseQty(get("new"), qtyErr)
		row.OldUsedQty, qtyErr = parseQty(get("old & used"), qtyErr)
		row.ScrappedQty, qtyErr = parseQty(get("scrapped"), qtyErr)
		if qtyErr != nil {
			rowErrors = append(rowErrors, models.BulkOperationError{Row: rowNum, Error: "invalid quantity values (must be whole numbers)"})
			continue
		}

		parsed = append(parsed, row)
	}
	return parsed, rowErrors, nil
}

// parseQty reads an optional whole-number cell; prior carries the first error
func parseQty(v string, prior error) (int64, error) {
	if prior != nil {
		return 0, prior
	}
	if v == "" {
		return 0, nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == float64(int64(f)) {
		return int64(f), nil
	}
	return 0, fmt.Errorf("invalid quantity %q", v)
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
