package handlers

import (
	"context"
	"io"

	"stockledger/internal/ledger"
	"stockledger/internal/models"
	"stockledger/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockLedgerService struct{ mock.Mock }

func (m *MockLedgerService) RecordInventoryReceipt(ctx context.Context, actor models.Actor, in services.ReceiptInput) (*services.ReceiptResult, error) {
	args := m.Called(ctx, actor, in)
	res, _ := args.Get(0).(*services.ReceiptResult)
	return res, args.Error(1)
}

func (m *MockLedgerService) RecordConsumption(ctx context.Context, actor models.Actor, in services.ConsumptionInput) (*services.ConsumptionResult, error) {
	args := m.Called(ctx, actor, in)
	res, _ := args.Get(0).(*services.ConsumptionResult)
	return res, args.Error(1)
}

func (m *MockLedgerService) EditInventoryRecord(ctx context.Context, actor models.Actor, id uuid.UUID, in services.EditInput) (*services.EditResult, error) {
	args := m.Called(ctx, actor, id, in)
	res, _ := args.Get(0).(*services.EditResult)
	return res, args.Error(1)
}

func (m *MockLedgerService) DeleteInventoryRecord(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *MockLedgerService) EditConsumption(ctx context.Context, actor models.Actor, id uuid.UUID, in services.ConsumptionEditInput) (*models.Consumption, error) {
	args := m.Called(ctx, actor, id, in)
	res, _ := args.Get(0).(*models.Consumption)
	return res, args.Error(1)
}

func (m *MockLedgerService) DeleteConsumption(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *MockLedgerService) GetCurrentStock(ctx context.Context, actor models.Actor, plantID, itemID uuid.UUID) (*models.CurrentStock, error) {
	args := m.Called(ctx, actor, plantID, itemID)
	res, _ := args.Get(0).(*models.CurrentStock)
	return res, args.Error(1)
}

func (m *MockLedgerService) ListCurrentStock(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) ([]*models.StockView, error) {
	args := m.Called(ctx, actor, filter)
	res, _ := args.Get(0).([]*models.StockView)
	return res, args.Error(1)
}

func (m *MockLedgerService) ListInventory(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) ([]*models.Inventory, error) {
	args := m.Called(ctx, actor, filter)
	res, _ := args.Get(0).([]*models.Inventory)
	return res, args.Error(1)
}

func (m *MockLedgerService) ListConsumption(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) ([]*models.Consumption, error) {
	args := m.Called(ctx, actor, filter)
	res, _ := args.Get(0).([]*models.Consumption)
	return res, args.Error(1)
}

func (m *MockLedgerService) SummaryByItemGroup(ctx context.Context, actor models.Actor, filter *models.SummaryFilter) (*models.DashboardSummary, error) {
	args := m.Called(ctx, actor, filter)
	res, _ := args.Get(0).(*models.DashboardSummary)
	return res, args.Error(1)
}

type MockImportService struct{ mock.Mock }

func (m *MockImportService) ImportInventory(ctx context.Context, actor models.Actor, filename string, file io.Reader) (*models.BulkOperationResult, error) {
	args := m.Called(ctx, actor, filename, file)
	res, _ := args.Get(0).(*models.BulkOperationResult)
	return res, args.Error(1)
}

type MockExportService struct{ mock.Mock }

func (m *MockExportService) ExportCurrentStock(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) (string, error) {
	args := m.Called(ctx, actor, filter)
	return args.String(0), args.Error(1)
}

func (m *MockExportService) ExportInventory(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) (string, error) {
	args := m.Called(ctx, actor, filter)
	return args.String(0), args.Error(1)
}

func (m *MockExportService) ExportConsumption(ctx context.Context, actor models.Actor, filter *models.LedgerFilter) (string, error) {
	args := m.Called(ctx, actor, filter)
	return args.String(0), args.Error(1)
}

type MockHierarchyService struct{ mock.Mock }

func (m *MockHierarchyService) CreateCluster(ctx context.Context, actor models.Actor, in services.ClusterInput) (*models.Cluster, error) {
	args := m.Called(ctx, actor, in)
	res, _ := args.Get(0).(*models.Cluster)
	return res, args.Error(1)
}

func (m *MockHierarchyService) UpdateCluster(ctx context.Context, actor models.Actor, id uuid.UUID, in services.ClusterInput) (*models.Cluster, error) {
	args := m.Called(ctx, actor, id, in)
	res, _ := args.Get(0).(*models.Cluster)
	return res, args.Error(1)
}

func (m *MockHierarchyService) GetCluster(ctx context.Context, id uuid.UUID) (*models.Cluster, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*models.Cluster)
	return res, args.Error(1)
}

func (m *MockHierarchyService) ListClusters(ctx context.Context) ([]*models.Cluster, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]*models.Cluster)
	return res, args.Error(1)
}

func (m *MockHierarchyService) ResolveDefaultCluster(ctx context.Context) (*models.Cluster, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*models.Cluster)
	return res, args.Error(1)
}

func (m *MockHierarchyService) CreatePlant(ctx context.Context, actor models.Actor, in services.PlantInput) (*models.Plant, error) {
	args := m.Called(ctx, actor, in)
	res, _ := args.Get(0).(*models.Plant)
	return res, args.Error(1)
}

func (m *MockHierarchyService) UpdatePlant(ctx context.Context, actor models.Actor, id uuid.UUID, in services.PlantInput) (*models.Plant, error) {
	args := m.Called(ctx, actor, id, in)
	res, _ := args.Get(0).(*models.Plant)
	return res, args.Error(1)
}

func (m *MockHierarchyService) GetPlant(ctx context.Context, id uuid.UUID) (*models.Plant, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*models.Plant)
	return res, args.Error(1)
}

func (m *MockHierarchyService) ListPlants(ctx context.Context, clusterID *uuid.UUID) ([]*models.Plant, error) {
	args := m.Called(ctx, clusterID)
	res, _ := args.Get(0).([]*models.Plant)
	return res, args.Error(1)
}

func (m *MockHierarchyService) CreateItemGroup(ctx context.Context, actor models.Actor, in services.ItemGroupInput) (*models.ItemGroup, error) {
	args := m.Called(ctx, actor, in)
	res, _ := args.Get(0).(*models.ItemGroup)
	return res, args.Error(1)
}

func (m *MockHierarchyService) UpdateItemGroup(ctx context.Context, actor models.Actor, id uuid.UUID, in services.ItemGroupInput) (*models.ItemGroup, error) {
	args := m.Called(ctx, actor, id, in)
	res, _ := args.Get(0).(*models.ItemGroup)
	return res, args.Error(1)
}

func (m *MockHierarchyService) GetItemGroup(ctx context.Context, id uuid.UUID) (*models.ItemGroup, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*models.ItemGroup)
	return res, args.Error(1)
}

func (m *MockHierarchyService) ListItemGroups(ctx context.Context) ([]*models.ItemGroup, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]*models.ItemGroup)
	return res, args.Error(1)
}

func (m *MockHierarchyService) CreateItem(ctx context.Context, actor models.Actor, in services.ItemInput) (*models.Item, error) {
	args := m.Called(ctx, actor, in)
	res, _ := args.Get(0).(*models.Item)
	return res, args.Error(1)
}

func (m *MockHierarchyService) UpdateItem(ctx context.Context, actor models.Actor, id uuid.UUID, in services.ItemInput) (*models.Item, error) {
	args := m.Called(ctx, actor, id, in)
	res, _ := args.Get(0).(*models.Item)
	return res, args.Error(1)
}

func (m *MockHierarchyService) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*models.Item)
	return res, args.Error(1)
}

func (m *MockHierarchyService) ListItems(ctx context.Context, groupID *uuid.UUID, limit, offset int) ([]*models.Item, error) {
	args := m.Called(ctx, groupID, limit, offset)
	res, _ := args.Get(0).([]*models.Item)
	return res, args.Error(1)
}

type MockApprovalService struct{ mock.Mock }

func (m *MockApprovalService) Resolve(ctx context.Context, approver models.Actor, kind models.ApprovalKind, approvalID uuid.UUID, action models.ApprovalAction) (*models.Resolution, error) {
	args := m.Called(ctx, approver, kind, approvalID, action)
	res, _ := args.Get(0).(*models.Resolution)
	return res, args.Error(1)
}

func (m *MockApprovalService) ListPending(ctx context.Context, actor models.Actor) ([]*models.PendingApproval, error) {
	args := m.Called(ctx, actor)
	res, _ := args.Get(0).([]*models.PendingApproval)
	return res, args.Error(1)
}

func (m *MockApprovalService) ResolveUser(ctx context.Context, approver models.Actor, userID uuid.UUID, action models.ApprovalAction) (*models.User, error) {
	args := m.Called(ctx, approver, userID, action)
	res, _ := args.Get(0).(*models.User)
	return res, args.Error(1)
}

func (m *MockApprovalService) ListPendingUsers(ctx context.Context, actor models.Actor) ([]*models.User, error) {
	args := m.Called(ctx, actor)
	res, _ := args.Get(0).([]*models.User)
	return res, args.Error(1)
}

type MockRecoveryService struct{ mock.Mock }

func (m *MockRecoveryService) SoftDelete(ctx context.Context, actor models.Actor, entity models.EntityType, id uuid.UUID) error {
	return m.Called(ctx, actor, entity, id).Error(0)
}

func (m *MockRecoveryService) Restore(ctx context.Context, actor models.Actor, entity models.EntityType, id uuid.UUID) error {
	return m.Called(ctx, actor, entity, id).Error(0)
}

func (m *MockRecoveryService) ListDeleted(ctx context.Context, actor models.Actor, entity models.EntityType) ([]*models.DeletedRecord, error) {
	args := m.Called(ctx, actor, entity)
	res, _ := args.Get(0).([]*models.DeletedRecord)
	return res, args.Error(1)
}

func (m *MockRecoveryService) Rebuild(ctx context.Context, pair models.StockPair) (ledger.Balance, error) {
	args := m.Called(ctx, pair)
	return args.Get(0).(ledger.Balance), args.Error(1)
}

func (m *MockRecoveryService) Reconcile(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockAuditLogsService struct{ mock.Mock }

func (m *MockAuditLogsService) Record(ctx context.Context, actorID *uuid.UUID, action, entityType, entityID string, details models.JSONB) error {
	return m.Called(ctx, actorID, action, entityType, entityID, details).Error(0)
}

func (m *MockAuditLogsService) Persist(ctx context.Context, payload []byte) error {
	return m.Called(ctx, payload).Error(0)
}

func (m *MockAuditLogsService) GetAuditLog(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*models.AuditLog)
	return res, args.Error(1)
}

func (m *MockAuditLogsService) ListAuditLogs(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	args := m.Called(ctx, filters)
	res, _ := args.Get(0).([]*models.AuditLog)
	return res, args.Error(1)
}

func (m *MockAuditLogsService) ValidateAuditFilters(filters *models.AuditLogFilters) error {
	return m.Called(filters).Error(0)
}
