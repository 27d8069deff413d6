package services

import (
	"context"
	"time"

	"stockledger/internal/caching"
	"stockledger/internal/config"
	"stockledger/internal/ledger"
	"stockledger/internal/models"
	"stockledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const stockCacheTTL = 5 * time.Minute

type ReceiptInput struct {
	PlantID        uuid.UUID  `json:"plant_id" validate:"required"`
	ItemID         uuid.UUID  `json:"item_id" validate:"required"`
	Date           *time.Time `json:"date"`
	ReservationRef string     `json:"reservation_ref" validate:"max=100"`
	NewQty         int64      `json:"new_qty" validate:"gte=0"`
	OldUsedQty     int64      `json:"old_used_qty" validate:"gte=0"`
	ScrapRequest   int64      `json:"scrap_request" validate:"gte=0"`
	Remarks        string     `json:"remarks" validate:"max=500"`
}

type ReceiptResult struct {
	Inventory  *models.Inventory `json:"inventory"`
	Outcome    ledger.Outcome    `json:"outcome"`
	ApprovalID *uuid.UUID        `json:"approval_id,omitempty"`
}

type ReturnedItemInput struct {
	ItemID      uuid.UUID                `json:"item_id" validate:"required"`
	Disposition models.ReturnDisposition `json:"disposition" validate:"required,oneof=OLD_USED SCRAPPED"`
}

type ConsumptionInput struct {
	PlantID      uuid.UUID            `json:"plant_id" validate:"required"`
	ItemID       uuid.UUID            `json:"item_id" validate:"required"`
	Date         *time.Time           `json:"date"`
	Quantity     int64                `json:"quantity" validate:"gt=0"`
	Source       models.StockCategory `json:"source_category" validate:"required,oneof=NEW OLD_USED"`
	ReturnedItem *ReturnedItemInput   `json:"returned_item,omitempty"`
	Remarks      string               `json:"remarks" validate:"max=500"`
}

type ConsumptionResult struct {
	Consumption      *models.Consumption `json:"consumption"`
	Outcome          ledger.Outcome      `json:"outcome"`
	ApprovalID       *uuid.UUID          `json:"approval_id,omitempty"`
	ScrapInventoryID *uuid.UUID          `json:"scrap_inventory_id,omitempty"`
}

type EditInput struct {
	NewQty       int64   `json:"new_qty" validate:"gte=0"`
	OldUsedQty   int64   `json:"old_used_qty" validate:"gte=0"`
	ScrapRequest int64   `json:"scrap_request" validate:"gte=0"`
	Remarks      *string `json:"remarks,omitempty"`
}

type EditResult struct {
	Inventory  *models.Inventory `json:"inventory"`
	Outcome    ledger.Outcome    `json:"outcome"`
	ApprovalID *uuid.UUID        `json:"approval_id,omitempty"`
}

type ConsumptionEditInput struct {
	Quantity int64   `json:"quantity" validate:"gt=0"`
	Remarks  *string `json:"remarks,omitempty"`
}

// LedgerService keeps the receipt and consumption ledgers and CurrentStock consistent
type LedgerService interface {
	RecordInventoryReceipt(ctx context.Context, actor models.Actor, in ReceiptInput) (*ReceiptResult, error)
	RecordConsumption(ctx context.Context, actor models.Actor, in ConsumptionInput) (*ConsumptionResult, error)
	EditInventoryRecord(ctx context.Context, actor models.Actor, id uuid.UUID, in EditInput) (*EditResult, error)
	DeleteInventoryRecord(ctx context.Context, actor models.Actor, id uuid.UUID) error
	EditConsumption(ctx context.Context, actor models.Actor, id uuid.UUID, in ConsumptionEditInput) (*models.Consumption, error)
	DeleteConsumption(ctx context.Context, actor models.Actor, id uuid.UUID) error

	// Reads are limited to the plants the actor is affiliated with
	GetCurrentStock(ctx context.Context, actor models.Actor, plantID, itemID uuid.UUID) (*models.CurrentStock, error)
	ListCurrentStock(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) ([]*models.StockView, error)
	ListInventory(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) ([]*models.Inventory, error)
	ListConsumption(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) ([]*models.Consumption, error)
	SummaryByItemGroup(ctx context.Context, actor models.Actor, filter *models.SummaryFilter) (*models.DashboardSummary, error)
}

type ledgerService struct {
	store  repositories.Store
	refs   RefGenerator
	cache  caching.StockCache
	fx     *sideEffects
	logger *logrus.Logger
}

func NewLedgerService(store repositories.Store, refs RefGenerator, cache caching.StockCache, audit AuditLogsService, notifier NotificationService, logger *logrus.Logger) LedgerService {
	return newLedgerService(store, refs, cache, audit, notifier, logger)
}

func newLedgerService(store repositories.Store, refs RefGenerator, cache caching.StockCache, audit AuditLogsService, notifier NotificationService, logger *logrus.Logger) *ledgerService {
	return &ledgerService{
		store:  store,
		refs:   refs,
		cache:  cache,
		fx:     newSideEffects(store, audit, notifier, cache, logger),
		logger: logger,
	}
}

func (s *ledgerService) RecordInventoryReceipt(ctx context.Context, actor models.Actor, in ReceiptInput) (*ReceiptResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.RecordInventoryReceipt")
	defer span.End()
	span.SetAttributes(attribute.String("plant.id", in.PlantID.String()), attribute.String("item.id", in.ItemID.String()))

	if err := ledger.CanMutate(actor); err != nil {
		return nil, err
	}

	fx := &effects{}
	var result *ReceiptResult
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		result, err = s.receipt(ctx, tx, actor, in, fx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.fx.flush(actor.UserID, fx)
	return result, nil
}

// receipt books one inventory receipt inside tx. Bulk import reuses it per row.
func (s *ledgerService) receipt(ctx context.Context, tx repositories.Store, actor models.Actor, in ReceiptInput, fx *effects) (*ReceiptResult, error) {
	if in.NewQty < 0 || in.OldUsedQty < 0 || in.ScrapRequest < 0 {
		return nil, ledger.Violation(ledger.ErrValidation, "quantities must not be negative")
	}
	if in.NewQty+in.OldUsedQty+in.ScrapRequest == 0 {
		return nil, ledger.Violation(ledger.ErrValidation, "at least one quantity must be greater than zero")
	}

	plant, item, err := activePlantItem(ctx, tx, in.PlantID, in.ItemID)
	if err != nil {
		return nil, err
	}
	if err := ledger.CanAccessPlant(actor, plant); err != nil {
		return nil, err
	}

	outcome := ledger.Dispatch(actor, plant.ClusterID, in.ScrapRequest)
	inv := &models.Inventory{
		ReservationRef: in.ReservationRef,
		PlantID:        plant.ID,
		ItemID:         item.ID,
		NewQty:         in.NewQty,
		OldUsedQty:     in.OldUsedQty,
		Remarks:        in.Remarks,
		CreatedBy:      actor.UserID,
	}
	if in.Date != nil {
		inv.Date = *in.Date
	}
	if inv.ReservationRef == "" {
		inv.ReservationRef = s.refs.ReceiptRef()
	}
	if outcome == ledger.Applied {
		inv.ScrappedQty = in.ScrapRequest
	}
	if err := tx.Inventory().Create(ctx, inv); err != nil {
		return nil, err
	}

	result := &ReceiptResult{Inventory: inv, Outcome: outcome}
	if outcome == ledger.PendingApproval {
		approval := &models.ScrapApproval{
			InventoryID:  inv.ID,
			RequestedQty: in.ScrapRequest,
			RequestedBy:  actor.UserID,
			Remarks:      "Initial scrap request on creation",
		}
		if err := tx.Approvals().CreateInventoryApproval(ctx, approval); err != nil {
			return nil, err
		}
		result.ApprovalID = &approval.ID

		fx.audit(models.ActionScrapRequestCreate, models.EntityScrapApproval, approval.ID, models.JSONB{
			"inventory_id": inv.ID, "requested_qty": in.ScrapRequest,
		})
		fx.notifyManager(models.NotificationScrapRequest, plant.ClusterID, scrapNotice(approval.ID, models.ApprovalKindInventory, plant, item, in.ScrapRequest, actor.Email))
	}

	pair := models.StockPair{PlantID: plant.ID, ItemID: item.ID}
	deltas := stockDeltas{}
	deltas.add(pair, ledger.ReceiptEntry(in.NewQty, in.OldUsedQty))
	if err := applyDeltas(ctx, tx, deltas); err != nil {
		return nil, err
	}

	fx.audit(models.ActionInventoryCreate, models.EntityInventory, inv.ID, models.JSONB{
		"reservation_ref": inv.ReservationRef,
		"plant_id":        plant.ID,
		"item_id":         item.ID,
		"new_qty":         inv.NewQty,
		"old_used_qty":    inv.OldUsedQty,
		"scrapped_qty":    inv.ScrappedQty,
	})
	fx.touch(pair)
	return result, nil
}

func (s *ledgerService) RecordConsumption(ctx context.Context, actor models.Actor, in ConsumptionInput) (*ConsumptionResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.RecordConsumption")
	defer span.End()
	span.SetAttributes(attribute.String("plant.id", in.PlantID.String()), attribute.String("item.id", in.ItemID.String()))

	if err := ledger.CanMutate(actor); err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, ledger.Violation(ledger.ErrValidation, "quantity must be greater than zero")
	}
	if !in.Source.Valid() {
		return nil, ledger.Violation(ledger.ErrValidation, "invalid source category %q", in.Source)
	}
	if in.ReturnedItem != nil && !in.ReturnedItem.Disposition.Valid() {
		return nil, ledger.Violation(ledger.ErrValidation, "invalid return disposition %q", in.ReturnedItem.Disposition)
	}

	fx := &effects{}
	var result *ConsumptionResult
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		plant, item, err := activePlantItem(ctx, tx, in.PlantID, in.ItemID)
		if err != nil {
			return err
		}
		if err := ledger.CanAccessPlant(actor, plant); err != nil {
			return err
		}

		var returned *models.Item
		if in.ReturnedItem != nil {
			returned, err = tx.Items().GetByID(ctx, in.ReturnedItem.ItemID)
			if err != nil {
				return err
			}
			if returned.IsDeleted {
				return ledger.NotFound("returned item")
			}
		}

		c := &models.Consumption{
			ID:             uuid.New(),
			PlantID:        plant.ID,
			ItemID:         item.ID,
			Quantity:       in.Quantity,
			SourceCategory: in.Source,
			Remarks:        in.Remarks,
			CreatedBy:      actor.UserID,
		}
		if in.Date != nil {
			c.Date = *in.Date
		}

		pair := models.StockPair{PlantID: plant.ID, ItemID: item.ID}
		deltas := stockDeltas{}
		deltas.add(pair, ledger.ConsumptionEntry(in.Quantity, in.Source))

		var retPair models.StockPair
		if returned != nil {
			disposition := in.ReturnedItem.Disposition
			c.ReturnedItemID = &returned.ID
			c.ReturnDisposition = &disposition
			retPair = models.StockPair{PlantID: plant.ID, ItemID: returned.ID}
			if disposition == models.DispositionOldUsed {
				c.ReturnCredited = true
				deltas.add(retPair, ledger.ReturnEntry(in.Quantity))
			}
		}

		locked, err := lockStock(ctx, tx, deltas.pairs())
		if err != nil {
			return err
		}
		if err := requireAvailable(locked[pair], in.Source, in.Quantity); err != nil {
			return err
		}
		if err := saveDeltas(ctx, tx, locked, deltas); err != nil {
			return err
		}
		if err := tx.Consumption().Create(ctx, c); err != nil {
			return err
		}

		result = &ConsumptionResult{Consumption: c, Outcome: ledger.Applied}
		if returned != nil && *c.ReturnDisposition == models.DispositionScrapped {
			if ledger.CanBypassApproval(actor, plant.ClusterID) {
				scrap := &models.Inventory{
					ReservationRef: s.refs.ScrapRef(c.ID),
					Date:           c.Date,
					PlantID:        plant.ID,
					ItemID:         returned.ID,
					ScrappedQty:    in.Quantity,
					Remarks:        "Scrapped item returned on consumption",
					CreatedBy:      actor.UserID,
				}
				if err := tx.Inventory().Create(ctx, scrap); err != nil {
					return err
				}
				result.ScrapInventoryID = &scrap.ID
			} else {
				approval := &models.ConsumptionScrapApproval{
					ConsumptionID: c.ID,
					RequestedQty:  in.Quantity,
					RequestedBy:   actor.UserID,
				}
				if err := tx.Approvals().CreateConsumptionApproval(ctx, approval); err != nil {
					return err
				}
				result.Outcome = ledger.PendingApproval
				result.ApprovalID = &approval.ID

				fx.audit(models.ActionScrapRequestCreate, models.EntityConsumptionScrapApproval, approval.ID, models.JSONB{
					"consumption_id": c.ID, "requested_qty": in.Quantity,
				})
				fx.notifyManager(models.NotificationScrapRequest, plant.ClusterID, scrapNotice(approval.ID, models.ApprovalKindConsumption, plant, returned, in.Quantity, actor.Email))
			}
		}

		fx.audit(models.ActionConsumptionCreate, models.EntityConsumption, c.ID, models.JSONB{
			"plant_id":        plant.ID,
			"item_id":         item.ID,
			"quantity":        c.Quantity,
			"source_category": c.SourceCategory,
		})
		fx.touch(deltas.pairs()...)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.fx.flush(actor.UserID, fx)
	return result, nil
}

func (s *ledgerService) EditInventoryRecord(ctx context.Context, actor models.Actor, id uuid.UUID, in EditInput) (*EditResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.EditInventoryRecord")
	defer span.End()
	span.SetAttributes(attribute.String("inventory.id", id.String()))

	if err := ledger.CanMutate(actor); err != nil {
		return nil, err
	}
	if in.NewQty < 0 || in.OldUsedQty < 0 || in.ScrapRequest < 0 {
		return nil, ledger.Violation(ledger.ErrValidation, "quantities must not be negative")
	}

	fx := &effects{}
	var result *EditResult
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		inv, err := tx.Inventory().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		plant, item, err := activePlantItem(ctx, tx, inv.PlantID, inv.ItemID)
		if err != nil {
			return err
		}
		if err := ledger.CanAccessPlant(actor, plant); err != nil {
			return err
		}

		scrapDelta := in.ScrapRequest - inv.ScrappedQty
		outcome := ledger.Dispatch(actor, plant.ClusterID, scrapDelta)
		result = &EditResult{Inventory: inv, Outcome: outcome}

		if outcome == ledger.PendingApproval {
			remarks := "Scrap increase requested on edit"
			if in.Remarks != nil && *in.Remarks != "" {
				remarks = *in.Remarks
			}
			approval := &models.ScrapApproval{
				InventoryID:  inv.ID,
				RequestedQty: in.ScrapRequest,
				RequestedBy:  actor.UserID,
				Remarks:      remarks,
			}
			if err := tx.Approvals().CreateInventoryApproval(ctx, approval); err != nil {
				return err
			}
			result.ApprovalID = &approval.ID

			fx.audit(models.ActionScrapRequestCreate, models.EntityScrapApproval, approval.ID, models.JSONB{
				"inventory_id": inv.ID, "requested_qty": in.ScrapRequest, "current_scrapped_qty": inv.ScrappedQty,
			})
			fx.notifyManager(models.NotificationScrapRequest, plant.ClusterID, scrapNotice(approval.ID, models.ApprovalKindInventory, plant, item, in.ScrapRequest, actor.Email))
			return nil
		}

		pair := models.StockPair{PlantID: inv.PlantID, ItemID: inv.ItemID}
		deltas := stockDeltas{}
		deltas.add(pair, ledger.ReceiptEntry(in.NewQty-inv.NewQty, in.OldUsedQty-inv.OldUsedQty))
		if err := applyDeltas(ctx, tx, deltas); err != nil {
			return err
		}

		before := models.JSONB{"new_qty": inv.NewQty, "old_used_qty": inv.OldUsedQty, "scrapped_qty": inv.ScrappedQty}
		inv.NewQty = in.NewQty
		inv.OldUsedQty = in.OldUsedQty
		inv.ScrappedQty = in.ScrapRequest
		if in.Remarks != nil {
			inv.Remarks = *in.Remarks
		}
		inv.UpdatedBy = &actor.UserID
		if err := tx.Inventory().Update(ctx, inv); err != nil {
			return err
		}

		fx.audit(models.ActionInventoryUpdate, models.EntityInventory, inv.ID, models.JSONB{
			"before": before,
			"after":  models.JSONB{"new_qty": inv.NewQty, "old_used_qty": inv.OldUsedQty, "scrapped_qty": inv.ScrappedQty},
		})
		fx.touch(pair)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.fx.flush(actor.UserID, fx)
	return result, nil
}

func (s *ledgerService) DeleteInventoryRecord(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "ledger.DeleteInventoryRecord")
	defer span.End()
	span.SetAttributes(attribute.String("inventory.id", id.String()))

	if err := ledger.CanMutate(actor); err != nil {
		return err
	}

	fx := &effects{}
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		inv, err := tx.Inventory().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := accessiblePlant(ctx, tx, actor, inv.PlantID); err != nil {
			return err
		}

		pair := models.StockPair{PlantID: inv.PlantID, ItemID: inv.ItemID}
		deltas := stockDeltas{}
		deltas.add(pair, ledger.ReceiptEntry(inv.NewQty, inv.OldUsedQty).Negate())
		if err := applyDeltas(ctx, tx, deltas); err != nil {
			return err
		}
		if err := tx.Inventory().SetDeleted(ctx, inv.ID, true, actor.UserID); err != nil {
			return err
		}

		fx.audit(models.ActionInventoryDelete, models.EntityInventory, inv.ID, models.JSONB{
			"reservation_ref": inv.ReservationRef, "new_qty": inv.NewQty, "old_used_qty": inv.OldUsedQty,
		})
		fx.touch(pair)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.fx.flush(actor.UserID, fx)
	return nil
}

func (s *ledgerService) EditConsumption(ctx context.Context, actor models.Actor, id uuid.UUID, in ConsumptionEditInput) (*models.Consumption, error) {
	ctx, span := tracer.Start(ctx, "ledger.EditConsumption")
	defer span.End()
	span.SetAttributes(attribute.String("consumption.id", id.String()))

	if err := ledger.CanMutate(actor); err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, ledger.Violation(ledger.ErrValidation, "quantity must be greater than zero")
	}

	fx := &effects{}
	var updated *models.Consumption
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		c, err := tx.Consumption().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := accessiblePlant(ctx, tx, actor, c.PlantID); err != nil {
			return err
		}

		diff := in.Quantity - c.Quantity
		if diff != 0 && c.ReturnDisposition != nil && *c.ReturnDisposition == models.DispositionScrapped && !c.ReturnCredited {
			return ledger.Violation(ledger.ErrValidation, "quantity of a consumption with a scrapped return cannot change; delete and record it again")
		}
		pair := models.StockPair{PlantID: c.PlantID, ItemID: c.ItemID}
		deltas := stockDeltas{}
		deltas.add(pair, ledger.ConsumptionEntry(diff, c.SourceCategory))
		if c.ReturnCredited && c.ReturnedItemID != nil {
			deltas.add(models.StockPair{PlantID: c.PlantID, ItemID: *c.ReturnedItemID}, ledger.ReturnEntry(diff))
		}

		locked, err := lockStock(ctx, tx, deltas.pairs())
		if err != nil {
			return err
		}
		if diff > 0 {
			if err := requireAvailable(locked[pair], c.SourceCategory, diff); err != nil {
				return err
			}
		}
		if err := saveDeltas(ctx, tx, locked, deltas); err != nil {
			return err
		}

		before := c.Quantity
		c.Quantity = in.Quantity
		if in.Remarks != nil {
			c.Remarks = *in.Remarks
		}
		c.UpdatedBy = &actor.UserID
		if err := tx.Consumption().Update(ctx, c); err != nil {
			return err
		}
		updated = c

		fx.audit(models.ActionConsumptionUpdate, models.EntityConsumption, c.ID, models.JSONB{
			"quantity_before": before, "quantity_after": c.Quantity,
		})
		fx.touch(deltas.pairs()...)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.fx.flush(actor.UserID, fx)
	return updated, nil
}

func (s *ledgerService) DeleteConsumption(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "ledger.DeleteConsumption")
	defer span.End()
	span.SetAttributes(attribute.String("consumption.id", id.String()))

	if err := ledger.CanMutate(actor); err != nil {
		return err
	}

	fx := &effects{}
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		c, err := tx.Consumption().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := accessiblePlant(ctx, tx, actor, c.PlantID); err != nil {
			return err
		}

		deltas := stockDeltas{}
		deltas.add(models.StockPair{PlantID: c.PlantID, ItemID: c.ItemID}, ledger.ConsumptionEntry(c.Quantity, c.SourceCategory).Negate())
		if c.ReturnCredited && c.ReturnedItemID != nil {
			deltas.add(models.StockPair{PlantID: c.PlantID, ItemID: *c.ReturnedItemID}, ledger.ReturnEntry(c.Quantity).Negate())
		}
		if err := applyDeltas(ctx, tx, deltas); err != nil {
			return err
		}
		if err := tx.Consumption().SetDeleted(ctx, c.ID, true, actor.UserID); err != nil {
			return err
		}

		fx.audit(models.ActionConsumptionDelete, models.EntityConsumption, c.ID, models.JSONB{
			"quantity": c.Quantity, "source_category": c.SourceCategory, "return_credited": c.ReturnCredited,
		})
		fx.touch(deltas.pairs()...)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.fx.flush(actor.UserID, fx)
	return nil
}

func (s *ledgerService) GetCurrentStock(ctx context.Context, actor models.Actor, plantID, itemID uuid.UUID) (*models.CurrentStock, error) {
	ctx, span := tracer.Start(ctx, "ledger.GetCurrentStock")
	defer span.End()

	if _, err := accessiblePlant(ctx, s.store, actor, plantID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, err := s.cache.GetStock(ctx, plantID, itemID)
		if err != nil {
			config.LogError(s.logger, "services/ledger_service.go", "GetCurrentStock", "read stock cache", plantID, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	stock, err := s.store.Stock().Get(ctx, plantID, itemID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetStock(ctx, stock, stockCacheTTL); err != nil {
			config.LogError(s.logger, "services/ledger_service.go", "GetCurrentStock", "write stock cache", plantID, err)
		}
	}
	return stock, nil
}

func (s *ledgerService) ListCurrentStock(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) ([]*models.StockView, error) {
	scoped, err := ledger.ScopeFilter(actor, filter)
	if err != nil {
		return nil, err
	}
	return s.store.Stock().List(ctx, scoped)
}

func (s *ledgerService) ListInventory(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) ([]*models.Inventory, error) {
	scoped, err := ledger.ScopeFilter(actor, filter)
	if err != nil {
		return nil, err
	}
	return s.store.Inventory().List(ctx, scoped)
}

func (s *ledgerService) ListConsumption(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) ([]*models.Consumption, error) {
	scoped, err := ledger.ScopeFilter(actor, filter)
	if err != nil {
		return nil, err
	}
	return s.store.Consumption().List(ctx, scoped)
}

// SummaryByItemGroup totals one measure per active item group within the
// actor's plants: available stock (optionally one bucket), scrapped receipts
// or consumed quantity.
func (s *ledgerService) SummaryByItemGroup(ctx context.Context, actor models.Actor, filter *models.SummaryFilter) (*models.DashboardSummary, error) {
	ctx, span := tracer.Start(ctx, "ledger.SummaryByItemGroup")
	defer span.End()

	if filter == nil {
		filter = &models.SummaryFilter{}
	}
	measure, ok := filter.Measure()
	if !ok {
		return nil, ledger.Violation(ledger.ErrValidation, "unsupported summary %q/%q", filter.DataType, filter.StockType)
	}
	scope, err := ledger.ScopeFilter(actor, &models.LedgerFilter{PlantID: filter.PlantID})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("summary.measure", string(measure)))

	groups, err := s.store.Stock().SummaryByItemGroup(ctx, measure, scope.PlantID, scope.ClusterID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return models.NewDashboardSummary(measure, groups), nil
}

// activePlantItem loads a plant and an item and requires both to be active
func activePlantItem(ctx context.Context, tx repositories.Store, plantID, itemID uuid.UUID) (*models.Plant, *models.Item, error) {
	plant, err := tx.Plants().GetByID(ctx, plantID)
	if err != nil {
		return nil, nil, err
	}
	if plant.IsDeleted {
		return nil, nil, ledger.NotFound("plant")
	}
	item, err := tx.Items().GetByID(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item.IsDeleted {
		return nil, nil, ledger.NotFound("item")
	}
	return plant, item, nil
}

// accessiblePlant loads a plant and checks the actor's affiliation with it.
// Deleted plants are returned too; callers that need an active plant check it.
func accessiblePlant(ctx context.Context, store repositories.Store, actor models.Actor, plantID uuid.UUID) (*models.Plant, error) {
	plant, err := store.Plants().GetByID(ctx, plantID)
	if err != nil {
		return nil, err
	}
	if err := ledger.CanAccessPlant(actor, plant); err != nil {
		return nil, err
	}
	return plant, nil
}

func scrapNotice(approvalID uuid.UUID, kind models.ApprovalKind, plant *models.Plant, item *models.Item, qty int64, requester string) models.ScrapNotice {
	return models.ScrapNotice{
		ApprovalID:    approvalID,
		Kind:          kind,
		ItemCode:      item.Code,
		ItemName:      item.Description,
		PlantName:     plant.Name,
		Quantity:      qty,
		RequesterName: requester,
	}
}
