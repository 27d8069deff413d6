package testhelpers

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"stockledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool *pgxpool.Pool
}

// Hierarchy is the minimal master data seeded for ledger tests
type Hierarchy struct {
	ClusterID uuid.UUID
	PlantID   uuid.UUID
	GroupID   uuid.UUID
	ItemID    uuid.UUID
	ScrapID   uuid.UUID
	AdminID   uuid.UUID
}

var tables = []string{
	"audit_logs", "outbox_messages",
	"consumption_scrap_approvals", "scrap_approvals",
	"current_stock", "consumption", "inventory",
	"users", "items", "item_groups", "plants", "clusters",
}

// SetupTestDB connects to TEST_DATABASE_URL, applies the schema and empties
// every table. The test is skipped when the variable is unset.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile(schemaPath())
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	for _, table := range tables {
		if _, err := pool.Exec(ctx, "TRUNCATE "+table+" CASCADE"); err != nil {
			t.Fatalf("Failed to truncate %s: %v", table, err)
		}
	}

	return &TestDB{Pool: pool}
}

func schemaPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "migrations", "001_init.sql")
}

// SeedHierarchy inserts one cluster, plant, item group, two items and an
// active super admin
func SeedHierarchy(t *testing.T, db *TestDB) Hierarchy {
	t.Helper()

	h := Hierarchy{
		ClusterID: uuid.New(),
		PlantID:   uuid.New(),
		GroupID:   uuid.New(),
		ItemID:    uuid.New(),
		ScrapID:   uuid.New(),
		AdminID:   uuid.New(),
	}
	now := time.Now()
	ctx := context.Background()

	statements := []struct {
		sql  string
		args []interface{}
	}{
		{`INSERT INTO clusters (id, name, created_at, updated_at) VALUES ($1, 'Default', $2, $2)`,
			[]interface{}{h.ClusterID, now}},
		{`INSERT INTO plants (id, name, cluster_id, created_at, updated_at) VALUES ($1, 'Plant A', $2, $3, $3)`,
			[]interface{}{h.PlantID, h.ClusterID, now}},
		{`INSERT INTO item_groups (id, name, created_at, updated_at) VALUES ($1, 'Cables', $2, $2)`,
			[]interface{}{h.GroupID, now}},
		{`INSERT INTO items (id, code, description, unit, item_group_id, created_at, updated_at) VALUES ($1, 'CBL-001', 'Copper cable', 'NOS', $2, $3, $3)`,
			[]interface{}{h.ItemID, h.GroupID, now}},
		{`INSERT INTO items (id, code, description, unit, item_group_id, created_at, updated_at) VALUES ($1, 'CBL-OLD', 'Returned cable', 'NOS', $2, $3, $3)`,
			[]interface{}{h.ScrapID, h.GroupID, now}},
		{`INSERT INTO users (id, email, name, role, status, created_at, updated_at) VALUES ($1, 'admin@example.com', 'Admin', $2, $3, $4, $4)`,
			[]interface{}{h.AdminID, models.RoleSuperAdmin, models.UserStatusActive, now}},
	}
	for _, st := range statements {
		if _, err := db.Pool.Exec(ctx, st.sql, st.args...); err != nil {
			t.Fatalf("Failed to seed hierarchy: %v", err)
		}
	}
	return h
}

// Admin returns the actor of the seeded super admin
func (h Hierarchy) Admin() models.Actor {
	return models.Actor{
		UserID: h.AdminID,
		Email:  "admin@example.com",
		Role:   models.RoleSuperAdmin,
	}
}
