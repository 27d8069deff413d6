package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"stockledger/internal/ledger"
	"stockledger/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

// stockSuite wires every ledger service over one in-memory store
type stockSuite struct {
	suite.Suite

	ctx     context.Context
	store   *memStore
	cache   *memCache
	locker  *inlineLocker
	objects *memObjects
	logger  *logrus.Logger

	audit     AuditLogsService
	notifier  NotificationService
	ledger    LedgerService
	approvals ApprovalService
	recovery  RecoveryService
	hierarchy HierarchyService

	north   *models.Cluster
	south   *models.Cluster
	plant   *models.Plant
	group   *models.ItemGroup
	item    *models.Item
	scrap   *models.Item
	admin   models.Actor
	manager models.Actor
	user    models.Actor
	viewer  models.Actor
}

func (suite *stockSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = newMemStore()
	suite.cache = &memCache{}
	suite.locker = &inlineLocker{}
	suite.objects = &memObjects{}
	suite.logger = logrus.New()
	suite.logger.SetOutput(io.Discard)

	refs, err := NewRefGenerator(1)
	suite.Require().NoError(err)

	suite.audit = NewAuditLogsService(suite.store.Outbox(), suite.store.AuditLogs(), suite.store.Users())
	suite.notifier = NewNotificationService(suite.store.Outbox(), SMTPSettings{}, nil, suite.logger)
	suite.ledger = NewLedgerService(suite.store, refs, suite.cache, suite.audit, suite.notifier, suite.logger)
	suite.approvals = NewApprovalService(suite.store, refs, suite.audit, suite.notifier, suite.cache, suite.logger)
	suite.recovery = NewRecoveryService(suite.store, suite.locker, suite.audit, suite.notifier, suite.cache, suite.logger)
	suite.hierarchy = NewHierarchyService(suite.store, suite.audit, suite.notifier, suite.cache, suite.logger)

	suite.north = suite.seedCluster("North Cluster")
	suite.south = suite.seedCluster("South Cluster")
	suite.plant = suite.seedPlant("Plant A", suite.north.ID)
	suite.group = suite.seedGroup("Cables")
	suite.item = suite.seedItem("CBL-001", suite.group.ID)
	suite.scrap = suite.seedItem("CBL-OLD", suite.group.ID)

	suite.admin = suite.seedUser("admin@example.com", models.RoleSuperAdmin, nil, nil)
	suite.manager = suite.seedUser("north.manager@example.com", models.RoleClusterManager, nil, &suite.north.ID)
	suite.user = suite.seedUser("operator@example.com", models.RoleUser, &suite.plant.ID, nil)
	suite.viewer = suite.seedUser("viewer@example.com", models.RoleViewer, &suite.plant.ID, nil)
}

func (suite *stockSuite) seedCluster(name string) *models.Cluster {
	c := &models.Cluster{Name: name}
	suite.Require().NoError(suite.store.Clusters().Create(suite.ctx, c))
	return c
}

func (suite *stockSuite) seedPlant(name string, clusterID uuid.UUID) *models.Plant {
	p := &models.Plant{Name: name, ClusterID: clusterID}
	suite.Require().NoError(suite.store.Plants().Create(suite.ctx, p))
	return p
}

func (suite *stockSuite) seedGroup(name string) *models.ItemGroup {
	g := &models.ItemGroup{Name: name}
	suite.Require().NoError(suite.store.ItemGroups().Create(suite.ctx, g))
	return g
}

func (suite *stockSuite) seedItem(code string, groupID uuid.UUID) *models.Item {
	it := &models.Item{Code: code, Description: code + " description", Unit: "NOS", ItemGroupID: groupID}
	suite.Require().NoError(suite.store.Items().Create(suite.ctx, it))
	return it
}

func (suite *stockSuite) seedUser(email string, role models.Role, plantID, clusterID *uuid.UUID) models.Actor {
	u := &models.User{Email: email, Name: email, Role: role, Status: models.UserStatusActive, PlantID: plantID, ClusterID: clusterID}
	memUsers{suite.store.db}.put(u)

	var plantCluster *uuid.UUID
	if plantID != nil {
		p, err := suite.store.Plants().GetByID(suite.ctx, *plantID)
		suite.Require().NoError(err)
		plantCluster = &p.ClusterID
	}
	return models.ActorFromUser(u, plantCluster)
}

func (suite *stockSuite) receive(plantID, itemID uuid.UUID, newQty, oldUsed int64) *models.Inventory {
	res, err := suite.ledger.RecordInventoryReceipt(suite.ctx, suite.admin, ReceiptInput{
		PlantID: plantID, ItemID: itemID, NewQty: newQty, OldUsedQty: oldUsed,
	})
	suite.Require().NoError(err)
	return res.Inventory
}

func (suite *stockSuite) balance(plantID, itemID uuid.UUID) ledger.Balance {
	cs, err := suite.store.Stock().Get(suite.ctx, plantID, itemID)
	if errors.Is(err, ledger.ErrEntityNotFound) {
		return ledger.Balance{}
	}
	suite.Require().NoError(err)
	return ledger.FromStock(cs)
}

func (suite *stockSuite) hasStockRow(plantID, itemID uuid.UUID) bool {
	_, err := suite.store.Stock().Get(suite.ctx, plantID, itemID)
	return err == nil
}

// requireConsistent checks that every active CurrentStock row equals the
// replay of its surviving ledger rows and that no bucket is negative
func (suite *stockSuite) requireConsistent() {
	pairs, err := suite.store.Stock().ActivePairs(suite.ctx)
	suite.Require().NoError(err)
	for _, pair := range pairs {
		entries, err := suite.store.Stock().ReplayEntries(suite.ctx, pair.PlantID, pair.ItemID)
		suite.Require().NoError(err)
		want := ledger.Reduce(entries)
		got := suite.balance(pair.PlantID, pair.ItemID)
		suite.Require().Equal(want, got, "stock of %s drifted from its ledger", pair)
		suite.Require().NoError(got.Validate())
	}
}

func (suite *stockSuite) inventoryRow(id uuid.UUID) *models.Inventory {
	inv, err := suite.store.Inventory().GetByID(suite.ctx, id)
	suite.Require().NoError(err)
	return inv
}

func (suite *stockSuite) auditActions() []string {
	var actions []string
	for _, m := range suite.store.Outbox().(memOutbox).messages(models.OutboxKindAudit) {
		var a models.AuditLog
		suite.Require().NoError(json.Unmarshal(m.Payload, &a))
		actions = append(actions, a.Action)
	}
	return actions
}

func (suite *stockSuite) notifications() []models.Notification {
	var out []models.Notification
	for _, m := range suite.store.Outbox().(memOutbox).messages(models.OutboxKindNotification) {
		var n models.Notification
		suite.Require().NoError(json.Unmarshal(m.Payload, &n))
		out = append(out, n)
	}
	return out
}
