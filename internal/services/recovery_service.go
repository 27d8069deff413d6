package services

import (
	"context"
	"errors"
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

const rebuildLockTTL = 30 * time.Second

// RecoveryService soft-deletes and restores hierarchy nodes. A delete
// cascades down ledger.Hierarchy; a restore rebuilds the stock of every
// pair it brings back from the surviving ledger rows.
type RecoveryService interface {
	SoftDelete(ctx context.Context, actor models.Actor, entity models.EntityType, id uuid.UUID) error
	Restore(ctx context.Context, actor models.Actor, entity models.EntityType, id uuid.UUID) error
	ListDeleted(ctx context.Context, actor models.Actor, entity models.EntityType) ([]*models.DeletedRecord, error)

	// Rebuild replays one pair under a cross-instance lock
	Rebuild(ctx context.Context, pair models.StockPair) (ledger.Balance, error)
	// Reconcile compares every active pair with its replay and rebuilds drifted rows.
	// It returns the number of rows rebuilt.
	Reconcile(ctx context.Context) (int, error)
}

type recoveryService struct {
	store  repositories.Store
	locker caching.Locker
	fx     *sideEffects
	graph  ledger.Graph
	logger *logrus.Logger
}

func NewRecoveryService(store repositories.Store, locker caching.Locker, audit AuditLogsService, notifier NotificationService, cache caching.StockCache, logger *logrus.Logger) RecoveryService {
	return &recoveryService{
		store:  store,
		locker: locker,
		fx:     newSideEffects(store, audit, notifier, cache, logger),
		graph:  ledger.Hierarchy,
		logger: logger,
	}
}

// node is a loaded hierarchy row. refs holds its parent references.
type node struct {
	entity  models.EntityType
	id      uuid.UUID
	label   string
	deleted bool
	refs    map[models.EntityType]*uuid.UUID
}

// cascadePlan lists the nodes reached by a delete, deepest first
type cascadePlan struct {
	order  []*node
	byType map[models.EntityType][]uuid.UUID
}

func (s *recoveryService) SoftDelete(ctx context.Context, actor models.Actor, entity models.EntityType, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "recovery.SoftDelete")
	defer span.End()
	span.SetAttributes(attribute.String("entity.type", string(entity)), attribute.String("entity.id", id.String()))

	if err := s.authorize(actor, entity); err != nil {
		return err
	}

	fx := &effects{}
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		root, err := loadNode(ctx, tx, entity, id)
		if err != nil {
			return err
		}
		if root.deleted {
			return ledger.Violation(ledger.ErrEntityNotFound, "%s %s not found", labelOf(entity), id)
		}

		plan, err := s.plan(ctx, tx, root)
		if err != nil {
			return err
		}

		var plants, items []uuid.UUID
		for _, n := range plan.order {
			rule, _ := s.graph.Rule(n.entity)
			if !rule.OwnsLedger {
				continue
			}
			switch n.entity {
			case models.EntityPlant:
				plants = append(plants, n.id)
			case models.EntityItem:
				items = append(items, n.id)
			}
		}

		details := models.JSONB{"name": root.label}

		// pairs must be collected while the rows are still visible
		var pairs []models.StockPair
		if len(plants) > 0 || len(items) > 0 {
			pairs, err = tx.Stock().LedgerPairs(ctx, plants, items)
			if err != nil {
				return err
			}
			inv, err := tx.Inventory().CascadeDelete(ctx, plants, items, actor.UserID)
			if err != nil {
				return err
			}
			cons, err := tx.Consumption().CascadeDelete(ctx, plants, items, actor.UserID)
			if err != nil {
				return err
			}
			stock, err := tx.Stock().DeleteFor(ctx, plants, items)
			if err != nil {
				return err
			}
			details["inventory_rows"] = inv
			details["consumption_rows"] = cons
			details["stock_rows"] = stock
		}

		users, err := s.deactivateUsers(ctx, tx, plan)
		if err != nil {
			return err
		}
		if users > 0 {
			details["users_deactivated"] = users
		}

		for _, n := range plan.order {
			if err := setNodeDeleted(ctx, tx, n.entity, n.id, true, actor.UserID); err != nil {
				return err
			}
		}
		if len(plan.order) > 1 {
			details["cascaded"] = len(plan.order) - 1
		}

		// pairs on the far side of a returned item lose their credits and are rebuilt
		if err := s.replayActive(ctx, tx, pairs); err != nil {
			if errors.Is(err, ledger.ErrNegativeResultRejected) {
				return ledger.Violation(ledger.ErrInsufficientStock,
					"cannot delete %s %q: stock it returned to another item has already been consumed",
					labelOf(entity), root.label)
			}
			return err
		}
		fx.touch(pairs...)
		fx.audit(models.HierarchyAction(entity, "DELETE"), entity, id, details)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.fx.flush(actor.UserID, fx)
	return nil
}

func (s *recoveryService) Restore(ctx context.Context, actor models.Actor, entity models.EntityType, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "recovery.Restore")
	defer span.End()
	span.SetAttributes(attribute.String("entity.type", string(entity)), attribute.String("entity.id", id.String()))

	if err := s.authorize(actor, entity); err != nil {
		return err
	}

	fx := &effects{}
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		n, err := loadNode(ctx, tx, entity, id)
		if err != nil {
			return err
		}
		if !n.deleted {
			return ledger.Violation(ledger.ErrEntityNotFound, "deleted %s %s not found", labelOf(entity), id)
		}

		if parentType, parentID, ok := s.graph.BlockingParent(entity, n.refs); ok {
			parent, err := loadNode(ctx, tx, parentType, parentID)
			if err != nil {
				return err
			}
			if parent.deleted {
				return ledger.Violation(ledger.ErrBlockingParentDeleted,
					"cannot restore %s %q: its %s %q is deleted; restore the %s first",
					labelOf(entity), n.label, labelOf(parent.entity), parent.label, labelOf(parent.entity))
			}
		}

		if err := setNodeDeleted(ctx, tx, entity, id, false, actor.UserID); err != nil {
			return err
		}

		details := models.JSONB{"entity_type": entity, "name": n.label}
		rule, _ := s.graph.Rule(entity)
		if rule.ReplaysOnRestore {
			var plantID, itemID *uuid.UUID
			var plants, items []uuid.UUID
			switch entity {
			case models.EntityPlant:
				plantID, plants = &id, []uuid.UUID{id}
			case models.EntityItem:
				itemID, items = &id, []uuid.UUID{id}
			}

			inv, err := tx.Inventory().CascadeRestore(ctx, plantID, itemID, actor.UserID)
			if err != nil {
				return err
			}
			cons, err := tx.Consumption().CascadeRestore(ctx, plantID, itemID, actor.UserID)
			if err != nil {
				return err
			}
			details["inventory_rows"] = inv
			details["consumption_rows"] = cons

			pairs, err := tx.Stock().LedgerPairs(ctx, plants, items)
			if err != nil {
				return err
			}
			if err := s.replayActive(ctx, tx, pairs); err != nil {
				return err
			}
			fx.touch(pairs...)
		}

		fx.audit(models.ActionDataRestore, entity, id, details)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.fx.flush(actor.UserID, fx)
	return nil
}

func (s *recoveryService) ListDeleted(ctx context.Context, actor models.Actor, entity models.EntityType) ([]*models.DeletedRecord, error) {
	if err := s.authorize(actor, entity); err != nil {
		return nil, err
	}

	var records []*models.DeletedRecord
	switch entity {
	case models.EntityCluster:
		rows, err := s.store.Clusters().ListDeleted(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range rows {
			records = append(records, &models.DeletedRecord{EntityType: entity, ID: c.ID, Label: c.Name, UpdatedAt: c.UpdatedAt})
		}
	case models.EntityPlant:
		rows, err := s.store.Plants().ListDeleted(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range rows {
			clusterID := p.ClusterID
			records = append(records, &models.DeletedRecord{EntityType: entity, ID: p.ID, Label: p.Name, ParentID: &clusterID, UpdatedAt: p.UpdatedAt})
		}
	case models.EntityItemGroup:
		rows, err := s.store.ItemGroups().ListDeleted(ctx)
		if err != nil {
			return nil, err
		}
		for _, g := range rows {
			records = append(records, &models.DeletedRecord{EntityType: entity, ID: g.ID, Label: g.Name, UpdatedAt: g.UpdatedAt})
		}
	case models.EntityItem:
		rows, err := s.store.Items().ListDeleted(ctx)
		if err != nil {
			return nil, err
		}
		for _, it := range rows {
			groupID := it.ItemGroupID
			records = append(records, &models.DeletedRecord{EntityType: entity, ID: it.ID, Label: it.Code, ParentID: &groupID, UpdatedAt: it.UpdatedAt})
		}
	case models.EntityUser:
		rows, err := s.store.Users().ListDeleted(ctx)
		if err != nil {
			return nil, err
		}
		for _, u := range rows {
			var parent *uuid.UUID
			if _, id, ok := s.graph.BlockingParent(entity, userRefs(u)); ok {
				parent = &id
			}
			records = append(records, &models.DeletedRecord{EntityType: entity, ID: u.ID, Label: u.Email, ParentID: parent, UpdatedAt: u.UpdatedAt})
		}
	}
	return records, nil
}

func (s *recoveryService) Rebuild(ctx context.Context, pair models.StockPair) (ledger.Balance, error) {
	ctx, span := tracer.Start(ctx, "recovery.Rebuild")
	defer span.End()
	span.SetAttributes(attribute.String("stock.pair", pair.String()))

	var balance ledger.Balance
	var before *models.CurrentStock
	err := s.locker.WithLock(ctx, caching.PairLockKey(pair.PlantID, pair.ItemID), rebuildLockTTL, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(tx repositories.Store) error {
			active, err := tx.Stock().PairActive(ctx, pair)
			if err != nil {
				return err
			}
			if !active {
				return ledger.Violation(ledger.ErrEntityNotFound, "plant or item of stock %s is deleted", pair)
			}
			before, err = tx.Stock().Lock(ctx, pair.PlantID, pair.ItemID)
			if err != nil {
				return err
			}
			prev := *before
			before = &prev
			balance, err = replayPair(ctx, tx, pair)
			return err
		})
	})
	if err != nil {
		span.RecordError(err)
		return balance, err
	}

	fx := &effects{}
	fx.touch(pair)
	fx.audits = append(fx.audits, auditEntry{
		action:     models.ActionStockRebuild,
		entityType: string(models.EntityCurrentStock),
		entityID:   pair.String(),
		details: models.JSONB{
			"plant_id":          pair.PlantID,
			"item_id":           pair.ItemID,
			"previous_new":      before.NewQty,
			"previous_old_used": before.OldUsedQty,
			"new":               balance.New,
			"old_used":          balance.OldUsed,
		},
	})
	s.fx.flush(uuid.Nil, fx)
	return balance, nil
}

func (s *recoveryService) Reconcile(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "recovery.Reconcile")
	defer span.End()

	pairs, err := s.store.Stock().ActivePairs(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	rebuilt := 0
	for _, pair := range pairs {
		if ctx.Err() != nil {
			return rebuilt, ctx.Err()
		}

		drifted, err := s.drifted(ctx, pair)
		if err != nil {
			config.LogError(s.logger, "services/recovery_service.go", "Reconcile", "check stock drift", pair, err)
			continue
		}
		if !drifted {
			continue
		}

		s.logger.WithFields(logrus.Fields{
			"module":   "recovery",
			"plant_id": pair.PlantID,
			"item_id":  pair.ItemID,
		}).Warn("Current stock drifted from ledger, rebuilding")

		if _, err := s.Rebuild(ctx, pair); err != nil {
			config.LogError(s.logger, "services/recovery_service.go", "Reconcile", "rebuild stock", pair, err)
			continue
		}
		rebuilt++
	}

	span.SetAttributes(attribute.Int("stock.rebuilt", rebuilt))
	return rebuilt, nil
}

func (s *recoveryService) drifted(ctx context.Context, pair models.StockPair) (bool, error) {
	entries, err := s.store.Stock().ReplayEntries(ctx, pair.PlantID, pair.ItemID)
	if err != nil {
		return false, err
	}
	want := ledger.Reduce(entries)

	cs, err := s.store.Stock().Get(ctx, pair.PlantID, pair.ItemID)
	if errors.Is(err, ledger.ErrEntityNotFound) {
		return want != (ledger.Balance{}), nil
	} else if err != nil {
		return false, err
	}
	return ledger.FromStock(cs) != want, nil
}

// plan walks the cascade graph from root, collecting active descendants
func (s *recoveryService) plan(ctx context.Context, tx repositories.Store, root *node) (*cascadePlan, error) {
	p := &cascadePlan{byType: make(map[models.EntityType][]uuid.UUID)}

	var visit func(n *node) error
	visit = func(n *node) error {
		rule, _ := s.graph.Rule(n.entity)
		for _, child := range rule.Children {
			ids, err := activeChildren(ctx, tx, n.entity, n.id)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err := visit(&node{entity: child, id: id}); err != nil {
					return err
				}
			}
		}
		p.order = append(p.order, n)
		p.byType[n.entity] = append(p.byType[n.entity], n.id)
		return nil
	}
	return p, visit(root)
}

func (s *recoveryService) deactivateUsers(ctx context.Context, tx repositories.Store, plan *cascadePlan) (int64, error) {
	var total int64
	for entity, ids := range plan.byType {
		rule, _ := s.graph.Rule(entity)
		if !rule.DeactivatesUsers || len(ids) == 0 {
			continue
		}
		var n int64
		var err error
		switch entity {
		case models.EntityCluster:
			n, err = tx.Users().DeactivateByClusters(ctx, ids)
		case models.EntityPlant:
			n, err = tx.Users().DeactivateByPlants(ctx, ids)
		default:
			// users themselves are deactivated by their own soft delete
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// replayActive rebuilds the pairs whose plant and item are both active
func (s *recoveryService) replayActive(ctx context.Context, tx repositories.Store, pairs []models.StockPair) error {
	for _, pair := range sortPairs(pairs) {
		active, err := tx.Stock().PairActive(ctx, pair)
		if err != nil {
			return err
		}
		if !active {
			continue
		}
		if _, err := replayPair(ctx, tx, pair); err != nil {
			return err
		}
	}
	return nil
}

func (s *recoveryService) authorize(actor models.Actor, entity models.EntityType) error {
	if actor.Role != models.RoleSuperAdmin {
		return ledger.Violation(ledger.ErrForbidden, "only a super admin may delete or restore records")
	}
	if !s.graph.Supports(entity) {
		return ledger.Violation(ledger.ErrValidation, "unsupported entity type %q", entity)
	}
	return nil
}

func activeChildren(ctx context.Context, tx repositories.Store, parent models.EntityType, id uuid.UUID) ([]uuid.UUID, error) {
	switch parent {
	case models.EntityCluster:
		return tx.Plants().ActiveIDsByCluster(ctx, id)
	case models.EntityItemGroup:
		return tx.Items().ActiveIDsByGroup(ctx, id)
	}
	return nil, nil
}

func loadNode(ctx context.Context, tx repositories.Store, entity models.EntityType, id uuid.UUID) (*node, error) {
	n := &node{entity: entity, id: id, refs: map[models.EntityType]*uuid.UUID{}}
	switch entity {
	case models.EntityCluster:
		c, err := tx.Clusters().GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		n.label, n.deleted = c.Name, c.IsDeleted
	case models.EntityPlant:
		p, err := tx.Plants().GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		n.label, n.deleted = p.Name, p.IsDeleted
		n.refs[models.EntityCluster] = &p.ClusterID
	case models.EntityItemGroup:
		g, err := tx.ItemGroups().GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		n.label, n.deleted = g.Name, g.IsDeleted
	case models.EntityItem:
		it, err := tx.Items().GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		n.label, n.deleted = it.Code, it.IsDeleted
		n.refs[models.EntityItemGroup] = &it.ItemGroupID
	case models.EntityUser:
		u, err := tx.Users().GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		n.label, n.deleted, n.refs = u.Email, u.IsDeleted, userRefs(u)
	default:
		return nil, ledger.Violation(ledger.ErrValidation, "unsupported entity type %q", entity)
	}
	return n, nil
}

func userRefs(u *models.User) map[models.EntityType]*uuid.UUID {
	return map[models.EntityType]*uuid.UUID{
		models.EntityPlant:   u.PlantID,
		models.EntityCluster: u.ClusterID,
	}
}

func setNodeDeleted(ctx context.Context, tx repositories.Store, entity models.EntityType, id uuid.UUID, deleted bool, by uuid.UUID) error {
	switch entity {
	case models.EntityCluster:
		return tx.Clusters().SetDeleted(ctx, id, deleted, by)
	case models.EntityPlant:
		return tx.Plants().SetDeleted(ctx, id, deleted, by)
	case models.EntityItemGroup:
		return tx.ItemGroups().SetDeleted(ctx, id, deleted, by)
	case models.EntityItem:
		return tx.Items().SetDeleted(ctx, id, deleted, by)
	case models.EntityUser:
		status := models.UserStatusActive
		if deleted {
			status = models.UserStatusInactive
		}
		return tx.Users().SetDeleted(ctx, id, deleted, status)
	}
	return ledger.Violation(ledger.ErrValidation, "unsupported entity type %q", entity)
}

func labelOf(entity models.EntityType) string {
	switch entity {
	case models.EntityCluster:
		return "cluster"
	case models.EntityPlant:
		return "plant"
	case models.EntityItemGroup:
		return "item group"
	case models.EntityItem:
		return "item"
	case models.EntityUser:
		return "user"
	}
	return string(entity)
}
