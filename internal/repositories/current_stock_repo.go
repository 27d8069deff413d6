package repositories

import (
	"context"
	"fmt"

	"stockledger/internal/ledger"
	"stockledger/internal/models"

	"github.com/google/uuid"
)

type CurrentStockRepository interface {
	// Lock creates the (plant, item) row if it is missing and locks it FOR UPDATE
	Lock(ctx context.Context, plantID, itemID uuid.UUID) (*models.CurrentStock, error)
	// Save writes the balance of a row previously returned by Lock
	Save(ctx context.Context, stock *models.CurrentStock) error
	Get(ctx context.Context, plantID, itemID uuid.UUID) (*models.CurrentStock, error)
	List(ctx context.Context, filter *models.LedgerFilter) ([]*models.StockView, error)

	// DeleteFor hard-deletes the rows of the given plants or items
	DeleteFor(ctx context.Context, plantIDs, itemIDs []uuid.UUID) (int64, error)

	// ReplayEntries returns the contributions of every surviving ledger row of a pair
	ReplayEntries(ctx context.Context, plantID, itemID uuid.UUID) ([]ledger.Entry, error)
	// LedgerPairs returns the pairs touched by surviving ledger rows or stock rows
	// of the given plants or items, including returned-item credits
	LedgerPairs(ctx context.Context, plantIDs, itemIDs []uuid.UUID) ([]models.StockPair, error)
	// ActivePairs returns every pair whose plant and item are active and that has ledger rows or a stock row
	ActivePairs(ctx context.Context) ([]models.StockPair, error)
	PairActive(ctx context.Context, pair models.StockPair) (bool, error)

	// SummaryByItemGroup totals measure per active item group, over active
	// plants and items, optionally limited to one plant or one cluster
	SummaryByItemGroup(ctx context.Context, measure models.SummaryMeasure, plantID, clusterID *uuid.UUID) ([]*models.GroupSummary, error)
}

type currentStockRepo struct {
	db Database
}

func NewCurrentStockRepo(db Database) CurrentStockRepository {
	return &currentStockRepo{db: db}
}

func (r *currentStockRepo) Lock(ctx context.Context, plantID, itemID uuid.UUID) (*models.CurrentStock, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO current_stock (plant_id, item_id, new_qty, old_used_qty, updated_at)
		VALUES ($1, $2, 0, 0, NOW())
		ON CONFLICT (plant_id, item_id) DO NOTHING
	`, plantID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise current stock: %w", err)
	}

	cs := &models.CurrentStock{}
	err = r.db.QueryRow(ctx, `
		SELECT plant_id, item_id, new_qty, old_used_qty, updated_at
		FROM current_stock
		WHERE plant_id = $1 AND item_id = $2
		FOR UPDATE
	`, plantID, itemID).Scan(&cs.PlantID, &cs.ItemID, &cs.NewQty, &cs.OldUsedQty, &cs.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to lock current stock: %w", err)
	}
	return cs, nil
}

func (r *currentStockRepo) Save(ctx context.Context, stock *models.CurrentStock) error {
	if err := ledger.FromStock(stock).Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		UPDATE current_stock SET new_qty = $1, old_used_qty = $2, updated_at = NOW()
		WHERE plant_id = $3 AND item_id = $4
	`, stock.NewQty, stock.OldUsedQty, stock.PlantID, stock.ItemID)
	if err != nil {
		return fmt.Errorf("failed to save current stock: %w", err)
	}
	return nil
}

func (r *currentStockRepo) Get(ctx context.Context, plantID, itemID uuid.UUID) (*models.CurrentStock, error) {
	cs := &models.CurrentStock{}
	err := r.db.QueryRow(ctx, `
		SELECT plant_id, item_id, new_qty, old_used_qty, updated_at
		FROM current_stock WHERE plant_id = $1 AND item_id = $2
	`, plantID, itemID).Scan(&cs.PlantID, &cs.ItemID, &cs.NewQty, &cs.OldUsedQty, &cs.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "current stock")
	}
	return cs, nil
}

func (r *currentStockRepo) List(ctx context.Context, filter *models.LedgerFilter) ([]*models.StockView, error) {
	if filter == nil {
		filter = &models.LedgerFilter{}
	}
	query := `
		SELECT cs.plant_id, cs.item_id, cs.new_qty, cs.old_used_qty, cs.updated_at,
		       p.name, it.code, it.description, it.unit
		FROM current_stock cs
		JOIN plants p ON p.id = cs.plant_id
		JOIN items it ON it.id = cs.item_id
		WHERE ($1::uuid IS NULL OR cs.plant_id = $1)
		  AND ($2::uuid IS NULL OR cs.item_id = $2)
		  AND ($3::uuid IS NULL OR p.cluster_id = $3)
		ORDER BY p.name ASC, it.code ASC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.db.Query(ctx, query, filter.PlantID, filter.ItemID, filter.ClusterID, pageLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list current stock: %w", err)
	}
	defer rows.Close()

	var views []*models.StockView
	for rows.Next() {
		v := &models.StockView{}
		if err := rows.Scan(&v.PlantID, &v.ItemID, &v.NewQty, &v.OldUsedQty, &v.UpdatedAt,
			&v.PlantName, &v.ItemCode, &v.ItemDescription, &v.Unit); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (r *currentStockRepo) DeleteFor(ctx context.Context, plantIDs, itemIDs []uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM current_stock WHERE plant_id = ANY($1) OR item_id = ANY($2)`, plantIDs, itemIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete current stock: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *currentStockRepo) ReplayEntries(ctx context.Context, plantID, itemID uuid.UUID) ([]ledger.Entry, error) {
	query := `
		SELECT new_qty, old_used_qty FROM inventory
		WHERE plant_id = $1 AND item_id = $2 AND is_deleted = false
		UNION ALL
		SELECT CASE WHEN source_category = 'NEW' THEN -quantity ELSE 0 END,
		       CASE WHEN source_category = 'OLD_USED' THEN -quantity ELSE 0 END
		FROM consumption
		WHERE plant_id = $1 AND item_id = $2 AND is_deleted = false
		UNION ALL
		SELECT 0, quantity FROM consumption
		WHERE plant_id = $1 AND returned_item_id = $2 AND return_credited = true AND is_deleted = false
	`
	rows, err := r.db.Query(ctx, query, plantID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.New, &e.OldUsed); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *currentStockRepo) LedgerPairs(ctx context.Context, plantIDs, itemIDs []uuid.UUID) ([]models.StockPair, error) {
	query := `
		SELECT plant_id, item_id FROM inventory
		WHERE is_deleted = false AND (plant_id = ANY($1) OR item_id = ANY($2))
		UNION
		SELECT plant_id, item_id FROM consumption
		WHERE is_deleted = false AND (plant_id = ANY($1) OR item_id = ANY($2))
		UNION
		SELECT plant_id, returned_item_id FROM consumption
		WHERE is_deleted = false AND return_credited = true
		  AND (plant_id = ANY($1) OR item_id = ANY($2) OR returned_item_id = ANY($2))
		UNION
		SELECT plant_id, item_id FROM current_stock
		WHERE plant_id = ANY($1) OR item_id = ANY($2)
	`
	rows, err := r.db.Query(ctx, query, plantIDs, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger pairs: %w", err)
	}
	return scanPairs(rows)
}

func (r *currentStockRepo) ActivePairs(ctx context.Context) ([]models.StockPair, error) {
	query := `
		SELECT pairs.plant_id, pairs.item_id FROM (
			SELECT plant_id, item_id FROM inventory WHERE is_deleted = false
			UNION
			SELECT plant_id, item_id FROM consumption WHERE is_deleted = false
			UNION
			SELECT plant_id, returned_item_id FROM consumption WHERE is_deleted = false AND return_credited = true
			UNION
			SELECT plant_id, item_id FROM current_stock
		) pairs
		JOIN plants p ON p.id = pairs.plant_id AND p.is_deleted = false
		JOIN items it ON it.id = pairs.item_id AND it.is_deleted = false
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load active pairs: %w", err)
	}
	return scanPairs(rows)
}

func (r *currentStockRepo) PairActive(ctx context.Context, pair models.StockPair) (bool, error) {
	var active bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM plants p, items it
			WHERE p.id = $1 AND it.id = $2 AND p.is_deleted = false AND it.is_deleted = false
		)
	`, pair.PlantID, pair.ItemID).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("failed to check pair: %w", err)
	}
	return active, nil
}

// summarySources holds the per-measure source rows of the dashboard aggregate.
// Each yields (item_id, plant_id, qty).
var summarySources = map[models.SummaryMeasure]string{
	models.MeasureAvailable:        `SELECT item_id, plant_id, new_qty + old_used_qty AS qty FROM current_stock`,
	models.MeasureAvailableNew:     `SELECT item_id, plant_id, new_qty AS qty FROM current_stock`,
	models.MeasureAvailableOldUsed: `SELECT item_id, plant_id, old_used_qty AS qty FROM current_stock`,
	models.MeasureScrapped:         `SELECT item_id, plant_id, scrapped_qty AS qty FROM inventory WHERE is_deleted = false`,
	models.MeasureConsumed:         `SELECT item_id, plant_id, quantity AS qty FROM consumption WHERE is_deleted = false`,
}

func (r *currentStockRepo) SummaryByItemGroup(ctx context.Context, measure models.SummaryMeasure, plantID, clusterID *uuid.UUID) ([]*models.GroupSummary, error) {
	source, ok := summarySources[measure]
	if !ok {
		return nil, ledger.Violation(ledger.ErrValidation, "unknown summary measure %q", measure)
	}

	query := fmt.Sprintf(`
		SELECT g.id, g.name, COALESCE(SUM(m.qty), 0)::bigint
		FROM item_groups g
		LEFT JOIN (
			SELECT it.item_group_id, src.qty
			FROM (%s) src
			JOIN items it ON it.id = src.item_id AND it.is_deleted = false
			JOIN plants p ON p.id = src.plant_id AND p.is_deleted = false
			WHERE ($1::uuid IS NULL OR src.plant_id = $1)
			  AND ($2::uuid IS NULL OR p.cluster_id = $2)
		) m ON m.item_group_id = g.id
		WHERE g.is_deleted = false
		GROUP BY g.id, g.name
		ORDER BY g.name ASC
	`, source)

	rows, err := r.db.Query(ctx, query, plantID, clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize stock: %w", err)
	}
	defer rows.Close()

	var groups []*models.GroupSummary
	for rows.Next() {
		g := &models.GroupSummary{}
		if err := rows.Scan(&g.ItemGroupID, &g.Name, &g.Value); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
