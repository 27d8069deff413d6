package handlers

import (
	"stockledger/internal/models"
	"stockledger/internal/services"

	"github.com/labstack/echo/v4"
)

// Handlers bundles every HTTP handler group mounted under /v1
type Handlers struct {
	Health    *HealthHandlers
	Hierarchy *HierarchyHandlers
	Inventory *InventoryHandlers
	Approvals *ApprovalHandlers
	Recovery  *RecoveryHandlers
	AuditLogs *AuditLogsHandlers
}

// PermissionGate returns middleware that admits actors holding a permission
type PermissionGate func(permission string) echo.MiddlewareFunc

// RegisterRoutes mounts the health probes on e and the API on v1. v1 must
// already authenticate the actor.
func RegisterRoutes(e *echo.Echo, v1 *echo.Group, h Handlers, require PermissionGate) {
	e.GET("/health", h.Health.HealthCheck)
	e.GET("/health/ready", h.Health.ReadinessCheck)

	hierRead := require(services.PermHierarchyRead)
	hierWrite := require(services.PermHierarchyWrite)
	ledgerRead := require(services.PermLedgerRead)
	ledgerWrite := require(services.PermLedgerWrite)
	recovery := require(services.PermRecoveryManage)

	v1.GET("/clusters", h.Hierarchy.ListClusters, hierRead)
	v1.GET("/clusters/:id", h.Hierarchy.GetCluster, hierRead)
	v1.POST("/clusters", h.Hierarchy.CreateCluster, hierWrite)
	v1.PUT("/clusters/:id", h.Hierarchy.UpdateCluster, hierWrite)
	v1.DELETE("/clusters/:id", h.Recovery.SoftDelete(models.EntityCluster), recovery)

	v1.GET("/plants", h.Hierarchy.ListPlants, hierRead)
	v1.GET("/plants/:id", h.Hierarchy.GetPlant, hierRead)
	v1.POST("/plants", h.Hierarchy.CreatePlant, hierWrite)
	v1.PUT("/plants/:id", h.Hierarchy.UpdatePlant, hierWrite)
	v1.DELETE("/plants/:id", h.Recovery.SoftDelete(models.EntityPlant), recovery)

	v1.GET("/item-groups", h.Hierarchy.ListItemGroups, hierRead)
	v1.GET("/item-groups/:id", h.Hierarchy.GetItemGroup, hierRead)
	v1.POST("/item-groups", h.Hierarchy.CreateItemGroup, hierWrite)
	v1.PUT("/item-groups/:id", h.Hierarchy.UpdateItemGroup, hierWrite)
	v1.DELETE("/item-groups/:id", h.Recovery.SoftDelete(models.EntityItemGroup), recovery)

	v1.GET("/items", h.Hierarchy.ListItems, hierRead)
	v1.GET("/items/:id", h.Hierarchy.GetItem, hierRead)
	v1.POST("/items", h.Hierarchy.CreateItem, hierWrite)
	v1.PUT("/items/:id", h.Hierarchy.UpdateItem, hierWrite)
	v1.DELETE("/items/:id", h.Recovery.SoftDelete(models.EntityItem), recovery)

	v1.DELETE("/users/:id", h.Recovery.SoftDelete(models.EntityUser), recovery)

	// Ledger
	v1.GET("/dashboard", h.Inventory.Dashboard, ledgerRead)

	v1.GET("/inventory", h.Inventory.ListInventory, ledgerRead)
	v1.GET("/inventory/export", h.Inventory.ExportInventory, ledgerRead)
	v1.POST("/inventory", h.Inventory.CreateInventory, ledgerWrite)
	v1.POST("/inventory/import", h.Inventory.ImportInventory, require(services.PermLedgerImport))
	v1.PUT("/inventory/:id", h.Inventory.UpdateInventory, ledgerWrite)
	v1.DELETE("/inventory/:id", h.Inventory.DeleteInventory, ledgerWrite)

	v1.GET("/consumption", h.Inventory.ListConsumption, ledgerRead)
	v1.GET("/consumption/export", h.Inventory.ExportConsumption, ledgerRead)
	v1.POST("/consumption", h.Inventory.CreateConsumption, ledgerWrite)
	v1.PUT("/consumption/:id", h.Inventory.UpdateConsumption, ledgerWrite)
	v1.DELETE("/consumption/:id", h.Inventory.DeleteConsumption, ledgerWrite)

	v1.GET("/stock", h.Inventory.ListStock, ledgerRead)
	v1.GET("/stock/export", h.Inventory.ExportStock, ledgerRead)
	v1.GET("/stock/:plantId/:itemId", h.Inventory.GetStock, ledgerRead)

	// Approvals
	approvals := v1.Group("/approvals", require(services.PermApprovalResolve))
	approvals.GET("/scrap", h.Approvals.ListPendingScrap)
	approvals.POST("/scrap/:kind/:id/:action", h.Approvals.ResolveScrap)
	approvals.GET("/users", h.Approvals.ListPendingUsers)
	approvals.POST("/users/:id/:action", h.Approvals.ResolveUser)

	// Recovery
	v1.GET("/recovery/:entity", h.Recovery.ListDeleted, recovery)
	v1.POST("/recovery/:entity/:id/restore", h.Recovery.Restore, recovery)

	auditRead := require(services.PermAuditRead)
	v1.GET("/audit-logs", h.AuditLogs.ListAuditLogs, auditRead)
	v1.GET("/audit-logs/:id", h.AuditLogs.GetAuditLog, auditRead)
}
