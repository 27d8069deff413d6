package ledger

import (
	"github.com/google/uuid"

	"stockledger/internal/models"
)

// Outcome is the result of routing a gated mutation through the approval capability
type Outcome string

const (
	Applied         Outcome = "APPLIED"
	PendingApproval Outcome = "PENDING_APPROVAL"
)

// CanBypassApproval reports whether the actor may apply a gated mutation on a
// plant of clusterID directly: SUPER_ADMIN, or the CLUSTER_MANAGER of that cluster.
func CanBypassApproval(actor models.Actor, clusterID uuid.UUID) bool {
	switch actor.Role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleClusterManager:
		return actor.InCluster(clusterID)
	}
	return false
}

// CanResolve reports whether the actor may resolve approvals raised on clusterID
func CanResolve(actor models.Actor, clusterID uuid.UUID) bool {
	return CanBypassApproval(actor, clusterID)
}

// Dispatch decides how a scrap-increasing request is handled. A request that
// does not increase scrap is always applied.
func Dispatch(actor models.Actor, clusterID uuid.UUID, scrapIncrease int64) Outcome {
	if scrapIncrease <= 0 || CanBypassApproval(actor, clusterID) {
		return Applied
	}
	return PendingApproval
}

// CanMutate rejects actors that may only read
func CanMutate(actor models.Actor) error {
	switch actor.Role {
	case models.RoleSuperAdmin, models.RoleClusterManager, models.RoleUser:
		return nil
	}
	return Violation(ErrForbidden, "role %q may not modify stock", actor.Role)
}

// CanAccessPlant checks the actor's affiliation against a plant. SUPER_ADMIN
// reaches every plant, a CLUSTER_MANAGER the plants of their cluster, and
// USER and VIEWER only their own plant.
func CanAccessPlant(actor models.Actor, plant *models.Plant) error {
	switch actor.Role {
	case models.RoleSuperAdmin:
		return nil
	case models.RoleClusterManager:
		if actor.InCluster(plant.ClusterID) {
			return nil
		}
	case models.RoleUser, models.RoleViewer:
		if actor.PlantID != nil && *actor.PlantID == plant.ID {
			return nil
		}
	}
	return Violation(ErrForbidden, "plant %q is outside your assignment", plant.Name)
}

// ScopeFilter returns a copy of filter narrowed to the actor's affiliation.
// Asking for another cluster or plant is forbidden rather than silently
// widened or emptied.
func ScopeFilter(actor models.Actor, filter *models.LedgerFilter) (*models.LedgerFilter, error) {
	scoped := models.LedgerFilter{}
	if filter != nil {
		scoped = *filter
	}

	switch actor.Role {
	case models.RoleSuperAdmin:
		return &scoped, nil
	case models.RoleClusterManager:
		if actor.ClusterID == nil {
			return nil, Violation(ErrForbidden, "no cluster is assigned to your account")
		}
		if scoped.ClusterID != nil && *scoped.ClusterID != *actor.ClusterID {
			return nil, Violation(ErrForbidden, "cluster is outside your assignment")
		}
		scoped.ClusterID = actor.ClusterID
		return &scoped, nil
	case models.RoleUser, models.RoleViewer:
		if actor.PlantID == nil {
			return nil, Violation(ErrForbidden, "no plant is assigned to your account")
		}
		if scoped.PlantID != nil && *scoped.PlantID != *actor.PlantID {
			return nil, Violation(ErrForbidden, "plant is outside your assignment")
		}
		scoped.PlantID = actor.PlantID
		return &scoped, nil
	}
	return nil, Violation(ErrForbidden, "role %q may not read stock", actor.Role)
}
