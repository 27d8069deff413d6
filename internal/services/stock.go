package services

import (
	"bytes"
	"context"
	"sort"

	"stockledger/internal/ledger"
	"stockledger/internal/models"
	"stockledger/internal/repositories"
)

// stockDeltas accumulates the balance change of every pair touched by one mutation
type stockDeltas map[models.StockPair]ledger.Balance

func (d stockDeltas) add(pair models.StockPair, entries ...ledger.Entry) {
	d[pair] = d[pair].Add(ledger.Reduce(entries))
}

func (d stockDeltas) pairs() []models.StockPair {
	pairs := make([]models.StockPair, 0, len(d))
	for p := range d {
		pairs = append(pairs, p)
	}
	return sortPairs(pairs)
}

// sortPairs orders pairs by item id, then plant id. Every transaction locks
// CurrentStock rows in this order.
func sortPairs(pairs []models.StockPair) []models.StockPair {
	sort.Slice(pairs, func(i, j int) bool {
		if c := bytes.Compare(pairs[i].ItemID[:], pairs[j].ItemID[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(pairs[i].PlantID[:], pairs[j].PlantID[:]) < 0
	})
	return pairs
}

func lockStock(ctx context.Context, tx repositories.Store, pairs []models.StockPair) (map[models.StockPair]*models.CurrentStock, error) {
	locked := make(map[models.StockPair]*models.CurrentStock, len(pairs))
	for _, p := range sortPairs(pairs) {
		if _, ok := locked[p]; ok {
			continue
		}
		cs, err := tx.Stock().Lock(ctx, p.PlantID, p.ItemID)
		if err != nil {
			return nil, err
		}
		locked[p] = cs
	}
	return locked, nil
}

// saveDeltas applies every delta to its locked row. A bucket that would go
// below zero fails the whole mutation with ErrInsufficientStock.
func saveDeltas(ctx context.Context, tx repositories.Store, locked map[models.StockPair]*models.CurrentStock, deltas stockDeltas) error {
	for _, p := range deltas.pairs() {
		cs := locked[p]
		next, err := ledger.Apply(ledger.FromStock(cs), deltas[p])
		if err != nil {
			return err
		}
		cs.NewQty, cs.OldUsedQty = next.New, next.OldUsed
		if err := tx.Stock().Save(ctx, cs); err != nil {
			return err
		}
	}
	return nil
}

func applyDeltas(ctx context.Context, tx repositories.Store, deltas stockDeltas) error {
	locked, err := lockStock(ctx, tx, deltas.pairs())
	if err != nil {
		return err
	}
	return saveDeltas(ctx, tx, locked, deltas)
}

// requireAvailable checks the source bucket before any netting with credits
// to the same pair
func requireAvailable(cs *models.CurrentStock, source models.StockCategory, qty int64) error {
	available := ledger.FromStock(cs).Available(source)
	if available < qty {
		return ledger.Violation(ledger.ErrInsufficientStock, "insufficient %s stock: available %d, required %d", source, available, qty)
	}
	return nil
}

// replayPair rebuilds a CurrentStock row from the surviving ledger rows
func replayPair(ctx context.Context, tx repositories.Store, pair models.StockPair) (ledger.Balance, error) {
	entries, err := tx.Stock().ReplayEntries(ctx, pair.PlantID, pair.ItemID)
	if err != nil {
		return ledger.Balance{}, err
	}
	balance := ledger.Reduce(entries)
	if err := balance.Validate(); err != nil {
		return balance, err
	}

	cs, err := tx.Stock().Lock(ctx, pair.PlantID, pair.ItemID)
	if err != nil {
		return balance, err
	}
	cs.NewQty, cs.OldUsedQty = balance.New, balance.OldUsed
	return balance, tx.Stock().Save(ctx, cs)
}
