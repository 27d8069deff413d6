package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSuperAdmin     Role = "SUPER_ADMIN"
	RoleClusterManager Role = "CLUSTER_MANAGER"
	RoleUser           Role = "USER"
	RoleViewer         Role = "VIEWER"
)

const (
	UserStatusPending  = "PENDING"
	UserStatusActive   = "ACTIVE"
	UserStatusInactive = "INACTIVE"
)

type User struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Email     string     `json:"email" db:"email"`
	Name      string     `json:"name" db:"name"`
	Role      Role       `json:"role" db:"role"`
	Status    string     `json:"status" db:"status"`
	PlantID   *uuid.UUID `json:"plant_id,omitempty" db:"plant_id"`
	ClusterID *uuid.UUID `json:"cluster_id,omitempty" db:"cluster_id"`
	IsDeleted bool       `json:"is_deleted" db:"is_deleted"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// Actor is the authenticated caller of a ledger operation.
// ClusterID is the cluster the actor manages or belongs to; for plant users
// it is derived from their plant.
type Actor struct {
	UserID    uuid.UUID  `json:"user_id"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	PlantID   *uuid.UUID `json:"plant_id,omitempty"`
	ClusterID *uuid.UUID `json:"cluster_id,omitempty"`
}

// InCluster reports whether the actor is affiliated with the given cluster
func (a Actor) InCluster(clusterID uuid.UUID) bool {
	return a.ClusterID != nil && *a.ClusterID == clusterID
}

// ActorFromUser builds the actor view of a user row. plantClusterID is the
// cluster of the user's plant, if any.
func ActorFromUser(u *User, plantClusterID *uuid.UUID) Actor {
	actor := Actor{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		PlantID:   u.PlantID,
		ClusterID: u.ClusterID,
	}
	if actor.ClusterID == nil {
		actor.ClusterID = plantClusterID
	}
	return actor
}
