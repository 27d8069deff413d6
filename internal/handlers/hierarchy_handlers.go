package handlers

import (
	"net/http"

	"stockledger/internal/common"
	"stockledger/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// HierarchyHandlers serves clusters, plants, item groups and items
type HierarchyHandlers struct {
	hierarchy services.HierarchyService
	logger    *logrus.Logger
}

func NewHierarchyHandlers(hierarchy services.HierarchyService, logger *logrus.Logger) *HierarchyHandlers {
	return &HierarchyHandlers{hierarchy: hierarchy, logger: logger}
}

// ---- clusters

func (h *HierarchyHandlers) ListClusters(c echo.Context) error {
	clusters, err := h.hierarchy.ListClusters(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, "list clusters", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"clusters": clusters})
}

func (h *HierarchyHandlers) GetCluster(c echo.Context) error {
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "get cluster", err)
	}
	cluster, err := h.hierarchy.GetCluster(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, "get cluster", err)
	}
	return c.JSON(http.StatusOK, cluster)
}

func (h *HierarchyHandlers) CreateCluster(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req services.ClusterInput
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, "create cluster", err)
	}
	cluster, err := h.hierarchy.CreateCluster(c.Request().Context(), actor, req)
	if err != nil {
		return respondError(c, h.logger, "create cluster", err)
	}
	return c.JSON(http.StatusCreated, cluster)
}

func (h *HierarchyHandlers) UpdateCluster(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "update cluster", err)
	}
	var req services.ClusterInput
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, "update cluster", err)
	}
	cluster, err := h.hierarchy.UpdateCluster(c.Request().Context(), actor, id, req)
	if err != nil {
		return respondError(c, h.logger, "update cluster", err)
	}
	return c.JSON(http.StatusOK, cluster)
}

// ---- plants

func (h *HierarchyHandlers) ListPlants(c echo.Context) error {
	clusterID, err := common.QueryUUID(c, "cluster_id")
	if err != nil {
		return respondError(c, h.logger, "list plants", err)
	}
	plants, err := h.hierarchy.ListPlants(c.Request().Context(), clusterID)
	if err != nil {
		return respondError(c, h.logger, "list plants", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"plants": plants})
}

func (h *HierarchyHandlers) GetPlant(c echo.Context) error {
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "get plant", err)
	}
	plant, err := h.hierarchy.GetPlant(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, "get plant", err)
	}
	return c.JSON(http.StatusOK, plant)
}

func (h *HierarchyHandlers) CreatePlant(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req services.PlantInput
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, "create plant", err)
	}
	plant, err := h.hierarchy.CreatePlant(c.Request().Context(), actor, req)
	if err != nil {
		return respondError(c, h.logger, "create plant", err)
	}
	return c.JSON(http.StatusCreated, plant)
}

func (h *HierarchyHandlers) UpdatePlant(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "update plant", err)
	}
	var req services.PlantInput
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, "update plant", err)
	}
	plant, err := h.hierarchy.UpdatePlant(c.Request().Context(), actor, id, req)
	if err != nil {
		return respondError(c, h.logger, "update plant", err)
	}
	return c.JSON(http.StatusOK, plant)
}

// ---- item groups

func (h *HierarchyHandlers) ListItemGroups(c echo.Context) error {
	groups, err := h.hierarchy.ListItemGroups(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, "list item groups", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"item_groups": groups})
}

func (h *HierarchyHandlers) GetItemGroup(c echo.Context) error {
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "get item group", err)
	}
	group, err := h.hierarchy.GetItemGroup(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, "get item group", err)
	}
	return c.JSON(http.StatusOK, group)
}

func (h *HierarchyHandlers) CreateItemGroup(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req services.ItemGroupInput
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, "create item group", err)
	}
	group, err := h.hierarchy.CreateItemGroup(c.Request().Context(), actor, req)
	if err != nil {
		return respondError(c, h.logger, "create item group", err)
	}
	return c.JSON(http.StatusCreated, group)
}

func (h *HierarchyHandlers) UpdateItemGroup(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "update item group", err)
	}
	var req services.ItemGroupInput
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, "update item group", err)
	}
	group, err := h.hierarchy.UpdateItemGroup(c.Request().Context(), actor, id, req)
	if err != nil {
		return respondError(c, h.logger, "update item group", err)
	}
	return c.JSON(http.StatusOK, group)
}

// ---- items

func (h *HierarchyHandlers) ListItems(c echo.Context) error {
	groupID, err := common.QueryUUID(c, "item_group_id")
	if err != nil {
		return respondError(c, h.logger, "list items", err)
	}
	limit, offset, err := common.Pagination(c)
	if err != nil {
		return respondError(c, h.logger, "list items", err)
	}
	items, err := h.hierarchy.ListItems(c.Request().Context(), groupID, limit, offset)
	if err != nil {
		return respondError(c, h.logger, "list items", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *HierarchyHandlers) GetItem(c echo.Context) error {
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "get item", err)
	}
	item, err := h.hierarchy.GetItem(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, "get item", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *HierarchyHandlers) CreateItem(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req services.ItemInput
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, "create item", err)
	}
	item, err := h.hierarchy.CreateItem(c.Request().Context(), actor, req)
	if err != nil {
		return respondError(c, h.logger, "create item", err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *HierarchyHandlers) UpdateItem(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := common.ParamUUID(c, "id")
	if err != nil {
		return respondError(c, h.logger, "update item", err)
	}
	var req services.ItemInput
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, "update item", err)
	}
	item, err := h.hierarchy.UpdateItem(c.Request().Context(), actor, id, req)
	if err != nil {
		return respondError(c, h.logger, "update item", err)
	}
	return c.JSON(http.StatusOK, item)
}
