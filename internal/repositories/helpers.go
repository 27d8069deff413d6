package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"stockledger/internal/ledger"
	"stockledger/internal/models"
)

// notFound maps pgx.ErrNoRows to the ledger's not-found error
func notFound(err error, entity string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.NotFound(entity)
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}

// scanPairs collects (plant_id, item_id) rows
func scanPairs(rows pgx.Rows) ([]models.StockPair, error) {
	defer rows.Close()

	var pairs []models.StockPair
	for rows.Next() {
		var p models.StockPair
		if err := rows.Scan(&p.PlantID, &p.ItemID); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// scanIDs collects single-column uuid rows
func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

var errNoRows = pgx.ErrNoRows

// setDeleted flips the soft-delete flag of a hierarchy row. The row must
// currently be in the opposite state.
func setDeleted(ctx context.Context, db Database, table, entity string, id uuid.UUID, deleted bool, by uuid.UUID) error {
	query := fmt.Sprintf(`
		UPDATE %s SET is_deleted = $1, updated_at = NOW(), updated_by = $2
		WHERE id = $3 AND is_deleted = $4
	`, table)
	tag, err := db.Exec(ctx, query, deleted, by, id, !deleted)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", entity, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, entity)
	}
	return nil
}
