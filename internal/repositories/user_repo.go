package repositories

import (
	"context"
	"fmt"

	"stockledger/internal/models"

	"github.com/google/uuid"
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// GetWithPlantCluster also returns the cluster of the user's plant, if any
	GetWithPlantCluster(ctx context.Context, id uuid.UUID) (*models.User, *uuid.UUID, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// ClusterManager returns the active manager of a cluster
	ClusterManager(ctx context.Context, clusterID uuid.UUID) (*models.User, error)
	ListPending(ctx context.Context, clusterID *uuid.UUID) ([]*models.User, error)
	ListDeleted(ctx context.Context) ([]*models.User, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, status string) error
	DeactivateByPlants(ctx context.Context, plantIDs []uuid.UUID) (int64, error)
	// DeactivateByClusters deactivates users attached directly to the clusters
	DeactivateByClusters(ctx context.Context, clusterIDs []uuid.UUID) (int64, error)
}

type userRepo struct {
	db Database
}

func NewUserRepo(db Database) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `u.id, u.email, u.name, u.role, u.status, u.plant_id, u.cluster_id, u.is_deleted, u.created_at, u.updated_at`

func scanUser(row interface{ Scan(dest ...interface{}) error }, extra ...interface{}) (*models.User, error) {
	u := &models.User{}
	dest := []interface{}{&u.ID, &u.Email, &u.Name, &u.Role, &u.Status, &u.PlantID, &u.ClusterID, &u.IsDeleted, &u.CreatedAt, &u.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	return u, err
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

func (r *userRepo) GetWithPlantCluster(ctx context.Context, id uuid.UUID) (*models.User, *uuid.UUID, error) {
	query := `
		SELECT ` + userColumns + `, p.cluster_id
		FROM users u
		LEFT JOIN plants p ON p.id = u.plant_id
		WHERE u.id = $1
	`
	var plantCluster *uuid.UUID
	u, err := scanUser(r.db.QueryRow(ctx, query, id), &plantCluster)
	if err != nil {
		return nil, nil, notFound(err, "user")
	}
	return u, plantCluster, nil
}

func (r *userRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}

func (r *userRepo) ClusterManager(ctx context.Context, clusterID uuid.UUID) (*models.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users u
		WHERE u.cluster_id = $1 AND u.role = $2 AND u.status = $3 AND u.is_deleted = false
		ORDER BY u.created_at ASC
		LIMIT 1
	`
	u, err := scanUser(r.db.QueryRow(ctx, query, clusterID, models.RoleClusterManager, models.UserStatusActive))
	if err != nil {
		return nil, notFound(err, "cluster manager")
	}
	return u, nil
}

func (r *userRepo) ListPending(ctx context.Context, clusterID *uuid.UUID) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		LEFT JOIN plants p ON p.id = u.plant_id
		WHERE u.status = $1 AND u.is_deleted = false
		  AND ($2::uuid IS NULL OR u.cluster_id = $2 OR p.cluster_id = $2)
		ORDER BY u.created_at ASC
	`
	return r.query(ctx, query, models.UserStatusPending, clusterID)
}

func (r *userRepo) ListDeleted(ctx context.Context) ([]*models.User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users u WHERE u.is_deleted = true ORDER BY u.updated_at DESC`)
}

func (r *userRepo) query(ctx context.Context, query string, args ...interface{}) ([]*models.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepo) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, "user")
	}
	return nil
}

func (r *userRepo) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, status string) error {
	query := `
		UPDATE users SET is_deleted = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND is_deleted = $4
	`
	tag, err := r.db.Exec(ctx, query, deleted, status, id, !deleted)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, "user")
	}
	return nil
}

func (r *userRepo) DeactivateByPlants(ctx context.Context, plantIDs []uuid.UUID) (int64, error) {
	if len(plantIDs) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `UPDATE users SET status = $1, updated_at = NOW() WHERE plant_id = ANY($2)`, models.UserStatusInactive, plantIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate plant users: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *userRepo) DeactivateByClusters(ctx context.Context, clusterIDs []uuid.UUID) (int64, error) {
	if len(clusterIDs) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `UPDATE users SET status = $1, updated_at = NOW() WHERE cluster_id = ANY($2)`, models.UserStatusInactive, clusterIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate cluster users: %w", err)
	}
	return tag.RowsAffected(), nil
}
