package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Database is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
// Calling Begin on a pgx.Tx opens a savepoint.
type Database interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Store groups the repositories bound to one connection or transaction
type Store interface {
	Clusters() ClusterRepository
	Plants() PlantRepository
	ItemGroups() ItemGroupRepository
	Items() ItemRepository
	Users() UserRepository
	Inventory() InventoryRepository
	Consumption() ConsumptionRepository
	Stock() CurrentStockRepository
	Approvals() ApprovalRepository
	Outbox() OutboxRepository
	AuditLogs() AuditLogsRepository

	// WithinTx runs fn in a transaction; on a Store that is already
	// transactional it runs fn in a savepoint. Any error rolls back.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type store struct {
	db Database
}

func NewStore(db Database) Store {
	return &store{db: db}
}

func (s *store) Clusters() ClusterRepository       { return NewClusterRepo(s.db) }
func (s *store) Plants() PlantRepository           { return NewPlantRepo(s.db) }
func (s *store) ItemGroups() ItemGroupRepository   { return NewItemGroupRepo(s.db) }
func (s *store) Items() ItemRepository             { return NewItemRepo(s.db) }
func (s *store) Users() UserRepository             { return NewUserRepo(s.db) }
func (s *store) Inventory() InventoryRepository     { return NewInventoryRepo(s.db) }
func (s *store) Consumption() ConsumptionRepository { return NewConsumptionRepo(s.db) }
func (s *store) Stock() CurrentStockRepository      { return NewCurrentStockRepo(s.db) }
func (s *store) Approvals() ApprovalRepository     { return NewApprovalRepo(s.db) }
func (s *store) Outbox() OutboxRepository           { return NewOutboxRepo(s.db) }
func (s *store) AuditLogs() AuditLogsRepository     { return NewAuditLogsRepo(s.db) }

func (s *store) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&store{db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
