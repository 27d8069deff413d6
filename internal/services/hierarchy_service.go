package services

import (
	"context"
	"errors"
	"strings"

	"stockledger/internal/caching"
	"stockledger/internal/ledger"
	"stockledger/internal/models"
	"stockledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ClusterInput struct {
	Name string `json:"name" validate:"required,max=255"`
}

type PlantInput struct {
	Name      string    `json:"name" validate:"required,max=255"`
	ClusterID uuid.UUID `json:"cluster_id" validate:"required"`
}

type ItemGroupInput struct {
	Name string `json:"name" validate:"required,max=255"`
}

type ItemInput struct {
	Code        string    `json:"code" validate:"required,max=100"`
	Description string    `json:"description" validate:"max=500"`
	Unit        string    `json:"unit" validate:"max=50"`
	ItemGroupID uuid.UUID `json:"item_group_id" validate:"required"`
}

// HierarchyService maintains clusters, plants, item groups and items.
// Deletes and restores go through RecoveryService.
type HierarchyService interface {
	CreateCluster(ctx context.Context, actor models.Actor, in ClusterInput) (*models.Cluster, error)
	UpdateCluster(ctx context.Context, actor models.Actor, id uuid.UUID, in ClusterInput) (*models.Cluster, error)
	GetCluster(ctx context.Context, id uuid.UUID) (*models.Cluster, error)
	ListClusters(ctx context.Context) ([]*models.Cluster, error)
	ResolveDefaultCluster(ctx context.Context) (*models.Cluster, error)

	CreatePlant(ctx context.Context, actor models.Actor, in PlantInput) (*models.Plant, error)
	UpdatePlant(ctx context.Context, actor models.Actor, id uuid.UUID, in PlantInput) (*models.Plant, error)
	GetPlant(ctx context.Context, id uuid.UUID) (*models.Plant, error)
	ListPlants(ctx context.Context, clusterID *uuid.UUID) ([]*models.Plant, error)

	CreateItemGroup(ctx context.Context, actor models.Actor, in ItemGroupInput) (*models.ItemGroup, error)
	UpdateItemGroup(ctx context.Context, actor models.Actor, id uuid.UUID, in ItemGroupInput) (*models.ItemGroup, error)
	GetItemGroup(ctx context.Context, id uuid.UUID) (*models.ItemGroup, error)
	ListItemGroups(ctx context.Context) ([]*models.ItemGroup, error)

	CreateItem(ctx context.Context, actor models.Actor, in ItemInput) (*models.Item, error)
	UpdateItem(ctx context.Context, actor models.Actor, id uuid.UUID, in ItemInput) (*models.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ListItems(ctx context.Context, groupID *uuid.UUID, limit, offset int) ([]*models.Item, error)
}

type hierarchyService struct {
	store  repositories.Store
	fx     *sideEffects
	logger *logrus.Logger
}

func NewHierarchyService(store repositories.Store, audit AuditLogsService, notifier NotificationService, cache caching.StockCache, logger *logrus.Logger) HierarchyService {
	return &hierarchyService{
		store:  store,
		fx:     newSideEffects(store, audit, notifier, cache, logger),
		logger: logger,
	}
}

// mutate runs fn in a transaction and flushes its audit entries after commit
func (s *hierarchyService) mutate(ctx context.Context, actor models.Actor, fn func(tx repositories.Store, fx *effects) error) error {
	if err := ledger.CanMutate(actor); err != nil {
		return err
	}
	fx := &effects{}
	if err := s.store.WithinTx(ctx, func(tx repositories.Store) error { return fn(tx, fx) }); err != nil {
		return err
	}
	s.fx.flush(actor.UserID, fx)
	return nil
}

func (s *hierarchyService) CreateCluster(ctx context.Context, actor models.Actor, in ClusterInput) (*models.Cluster, error) {
	var cluster *models.Cluster
	err := s.mutate(ctx, actor, func(tx repositories.Store, fx *effects) error {
		var err error
		cluster, err = createCluster(ctx, tx, in.Name, actor.UserID, fx)
		return err
	})
	return cluster, err
}

func (s *hierarchyService) UpdateCluster(ctx context.Context, actor models.Actor, id uuid.UUID, in ClusterInput) (*models.Cluster, error) {
	name, err := requireName("cluster name", in.Name)
	if err != nil {
		return nil, err
	}

	var cluster *models.Cluster
	err = s.mutate(ctx, actor, func(tx repositories.Store, fx *effects) error {
		existing, err := tx.Clusters().GetByName(ctx, name)
		if found, err := lookup(err); err != nil {
			return err
		} else if found && existing.ID != id {
			return duplicate("cluster", name)
		}
		cluster = &models.Cluster{ID: id, Name: name, UpdatedBy: &actor.UserID}
		if err := tx.Clusters().Update(ctx, cluster); err != nil {
			return err
		}
		fx.audit(models.HierarchyAction(models.EntityCluster, "UPDATE"), models.EntityCluster, id, models.JSONB{"name": name})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.Clusters().GetByID(ctx, id)
}

func (s *hierarchyService) GetCluster(ctx context.Context, id uuid.UUID) (*models.Cluster, error) {
	return s.store.Clusters().GetByID(ctx, id)
}

func (s *hierarchyService) ListClusters(ctx context.Context) ([]*models.Cluster, error) {
	return s.store.Clusters().List(ctx)
}

// ResolveDefaultCluster returns the cluster named "north cluster", or the oldest active cluster
func (s *hierarchyService) ResolveDefaultCluster(ctx context.Context) (*models.Cluster, error) {
	return s.store.Clusters().Default(ctx)
}

func (s *hierarchyService) CreatePlant(ctx context.Context, actor models.Actor, in PlantInput) (*models.Plant, error) {
	var plant *models.Plant
	err := s.mutate(ctx, actor, func(tx repositories.Store, fx *effects) error {
		var err error
		plant, err = createPlant(ctx, tx, in.Name, in.ClusterID, actor.UserID, fx)
		return err
	})
	return plant, err
}

func (s *hierarchyService) UpdatePlant(ctx context.Context, actor models.Actor, id uuid.UUID, in PlantInput) (*models.Plant, error) {
	name, err := requireName("plant name", in.Name)
	if err != nil {
		return nil, err
	}

	err = s.mutate(ctx, actor, func(tx repositories.Store, fx *effects) error {
		if err := activeCluster(ctx, tx, in.ClusterID); err != nil {
			return err
		}
		existing, err := tx.Plants().GetByName(ctx, name)
		if found, err := lookup(err); err != nil {
			return err
		} else if found && existing.ID != id {
			return duplicate("plant", name)
		}
		plant := &models.Plant{ID: id, Name: name, ClusterID: in.ClusterID, UpdatedBy: &actor.UserID}
		if err := tx.Plants().Update(ctx, plant); err != nil {
			return err
		}
		fx.audit(models.HierarchyAction(models.EntityPlant, "UPDATE"), models.EntityPlant, id, models.JSONB{
			"name": name, "cluster_id": in.ClusterID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.Plants().GetByID(ctx, id)
}

func (s *hierarchyService) GetPlant(ctx context.Context, id uuid.UUID) (*models.Plant, error) {
	return s.store.Plants().GetByID(ctx, id)
}

func (s *hierarchyService) ListPlants(ctx context.Context, clusterID *uuid.UUID) ([]*models.Plant, error) {
	return s.store.Plants().List(ctx, clusterID)
}

func (s *hierarchyService) CreateItemGroup(ctx context.Context, actor models.Actor, in ItemGroupInput) (*models.ItemGroup, error) {
	var group *models.ItemGroup
	err := s.mutate(ctx, actor, func(tx repositories.Store, fx *effects) error {
		var err error
		group, err = createItemGroup(ctx, tx, in.Name, actor.UserID, fx)
		return err
	})
	return group, err
}

func (s *hierarchyService) UpdateItemGroup(ctx context.Context, actor models.Actor, id uuid.UUID, in ItemGroupInput) (*models.ItemGroup, error) {
	name, err := requireName("item group name", in.Name)
	if err != nil {
		return nil, err
	}

	err = s.mutate(ctx, actor, func(tx repositories.Store, fx *effects) error {
		existing, err := tx.ItemGroups().GetByName(ctx, name)
		if found, err := lookup(err); err != nil {
			return err
		} else if found && existing.ID != id {
			return duplicate("item group", name)
		}
		group := &models.ItemGroup{ID: id, Name: name, UpdatedBy: &actor.UserID}
		if err := tx.ItemGroups().Update(ctx, group); err != nil {
			return err
		}
		fx.audit(models.HierarchyAction(models.EntityItemGroup, "UPDATE"), models.EntityItemGroup, id, models.JSONB{"name": name})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.ItemGroups().GetByID(ctx, id)
}

func (s *hierarchyService) GetItemGroup(ctx context.Context, id uuid.UUID) (*models.ItemGroup, error) {
	return s.store.ItemGroups().GetByID(ctx, id)
}

func (s *hierarchyService) ListItemGroups(ctx context.Context) ([]*models.ItemGroup, error) {
	return s.store.ItemGroups().List(ctx)
}

func (s *hierarchyService) CreateItem(ctx context.Context, actor models.Actor, in ItemInput) (*models.Item, error) {
	var item *models.Item
	err := s.mutate(ctx, actor, func(tx repositories.Store, fx *effects) error {
		var err error
		item, err = createItem(ctx, tx, in, actor.UserID, fx)
		return err
	})
	return item, err
}

func (s *hierarchyService) UpdateItem(ctx context.Context, actor models.Actor, id uuid.UUID, in ItemInput) (*models.Item, error) {
	code, err := requireName("item code", in.Code)
	if err != nil {
		return nil, err
	}

	err = s.mutate(ctx, actor, func(tx repositories.Store, fx *effects) error {
		if err := activeItemGroup(ctx, tx, in.ItemGroupID); err != nil {
			return err
		}
		existing, err := tx.Items().GetByCode(ctx, code)
		if found, err := lookup(err); err != nil {
			return err
		} else if found && existing.ID != id {
			return duplicate("item", code)
		}
		item := &models.Item{
			ID:          id,
			Code:        code,
			Description: strings.TrimSpace(in.Description),
			Unit:        strings.TrimSpace(in.Unit),
			ItemGroupID: in.ItemGroupID,
			UpdatedBy:   &actor.UserID,
		}
		if err := tx.Items().Update(ctx, item); err != nil {
			return err
		}
		fx.audit(models.HierarchyAction(models.EntityItem, "UPDATE"), models.EntityItem, id, models.JSONB{
			"code": code, "item_group_id": in.ItemGroupID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.Items().GetByID(ctx, id)
}

func (s *hierarchyService) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	return s.store.Items().GetByID(ctx, id)
}

func (s *hierarchyService) ListItems(ctx context.Context, groupID *uuid.UUID, limit, offset int) ([]*models.Item, error) {
	return s.store.Items().List(ctx, groupID, limit, offset)
}

// The create helpers run inside a caller's transaction; bulk import uses
// them to auto-create missing masters.

func createCluster(ctx context.Context, tx repositories.Store, rawName string, by uuid.UUID, fx *effects) (*models.Cluster, error) {
	name, err := requireName("cluster name", rawName)
	if err != nil {
		return nil, err
	}
	_, err = tx.Clusters().GetByName(ctx, name)
	if found, err := lookup(err); err != nil {
		return nil, err
	} else if found {
		return nil, duplicate("cluster", name)
	}
	cluster := &models.Cluster{Name: name, UpdatedBy: &by}
	if err := tx.Clusters().Create(ctx, cluster); err != nil {
		return nil, err
	}
	fx.audit(models.HierarchyAction(models.EntityCluster, "CREATE"), models.EntityCluster, cluster.ID, models.JSONB{"name": name})
	return cluster, nil
}

func createPlant(ctx context.Context, tx repositories.Store, rawName string, clusterID uuid.UUID, by uuid.UUID, fx *effects) (*models.Plant, error) {
	name, err := requireName("plant name", rawName)
	if err != nil {
		return nil, err
	}
	if err := activeCluster(ctx, tx, clusterID); err != nil {
		return nil, err
	}
	_, err = tx.Plants().GetByName(ctx, name)
	if found, err := lookup(err); err != nil {
		return nil, err
	} else if found {
		return nil, duplicate("plant", name)
	}
	plant := &models.Plant{Name: name, ClusterID: clusterID, UpdatedBy: &by}
	if err := tx.Plants().Create(ctx, plant); err != nil {
		return nil, err
	}
	fx.audit(models.HierarchyAction(models.EntityPlant, "CREATE"), models.EntityPlant, plant.ID, models.JSONB{
		"name": name, "cluster_id": clusterID,
	})
	return plant, nil
}

func createItemGroup(ctx context.Context, tx repositories.Store, rawName string, by uuid.UUID, fx *effects) (*models.ItemGroup, error) {
	name, err := requireName("item group name", rawName)
	if err != nil {
		return nil, err
	}
	_, err = tx.ItemGroups().GetByName(ctx, name)
	if found, err := lookup(err); err != nil {
		return nil, err
	} else if found {
		return nil, duplicate("item group", name)
	}
	group := &models.ItemGroup{Name: name, UpdatedBy: &by}
	if err := tx.ItemGroups().Create(ctx, group); err != nil {
		return nil, err
	}
	fx.audit(models.HierarchyAction(models.EntityItemGroup, "CREATE"), models.EntityItemGroup, group.ID, models.JSONB{"name": name})
	return group, nil
}

func createItem(ctx context.Context, tx repositories.Store, in ItemInput, by uuid.UUID, fx *effects) (*models.Item, error) {
	code, err := requireName("item code", in.Code)
	if err != nil {
		return nil, err
	}
	if err := activeItemGroup(ctx, tx, in.ItemGroupID); err != nil {
		return nil, err
	}
	_, err = tx.Items().GetByCode(ctx, code)
	if found, err := lookup(err); err != nil {
		return nil, err
	} else if found {
		return nil, duplicate("item", code)
	}
	item := &models.Item{
		Code:        code,
		Description: strings.TrimSpace(in.Description),
		Unit:        strings.TrimSpace(in.Unit),
		ItemGroupID: in.ItemGroupID,
		UpdatedBy:   &by,
	}
	if err := tx.Items().Create(ctx, item); err != nil {
		return nil, err
	}
	fx.audit(models.HierarchyAction(models.EntityItem, "CREATE"), models.EntityItem, item.ID, models.JSONB{
		"code": code, "item_group_id": in.ItemGroupID,
	})
	return item, nil
}

func requireName(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ledger.Violation(ledger.ErrValidation, "%s is required", field)
	}
	return value, nil
}

// lookup interprets a by-name lookup among active rows
func lookup(err error) (found bool, _ error) {
	if errors.Is(err, ledger.ErrEntityNotFound) {
		return false, nil
	}
	return err == nil, err
}

func duplicate(entity, name string) error {
	return ledger.Violation(ledger.ErrValidation, "%s %q already exists", entity, name)
}

func activeCluster(ctx context.Context, tx repositories.Store, id uuid.UUID) error {
	c, err := tx.Clusters().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.IsDeleted {
		return ledger.Violation(ledger.ErrEntityNotFound, "cluster %s not found", id)
	}
	return nil
}

func activeItemGroup(ctx context.Context, tx repositories.Store, id uuid.UUID) error {
	g, err := tx.ItemGroups().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if g.IsDeleted {
		return ledger.Violation(ledger.ErrEntityNotFound, "item group %s not found", id)
	}
	return nil
}
