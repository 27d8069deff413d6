package ledger

import (
	"stockledger/internal/models"
)

// Balance is the consumable stock of a (plant, item) pair. Scrap is never part of it.
type Balance struct {
	New     int64 `json:"new_qty"`
	OldUsed int64 `json:"old_used_qty"`
}

// Entry is one signed contribution of a ledger row to a balance
type Entry struct {
	New     int64
	OldUsed int64
}

// ReceiptEntry is the contribution of an inventory receipt
func ReceiptEntry(newQty, oldUsedQty int64) Entry {
	return Entry{New: newQty, OldUsed: oldUsedQty}
}

// ConsumptionEntry draws qty from the source bucket
func ConsumptionEntry(qty int64, source models.StockCategory) Entry {
	if source == models.CategoryOldUsed {
		return Entry{OldUsed: -qty}
	}
	return Entry{New: -qty}
}

// ReturnEntry credits an item handed back as old & used
func ReturnEntry(qty int64) Entry {
	return Entry{OldUsed: qty}
}

func (e Entry) Negate() Entry {
	return Entry{New: -e.New, OldUsed: -e.OldUsed}
}

func (e Entry) IsZero() bool {
	return e.New == 0 && e.OldUsed == 0
}

// Reduce folds ledger entries into a balance. It is used both for full
// replays from surviving rows and for summing the deltas of one operation.
func Reduce(entries []Entry) Balance {
	var b Balance
	for _, e := range entries {
		b.New += e.New
		b.OldUsed += e.OldUsed
	}
	return b
}

// Add applies a delta
func (b Balance) Add(delta Balance) Balance {
	return Balance{New: b.New + delta.New, OldUsed: b.OldUsed + delta.OldUsed}
}

// Validate rejects negative buckets
func (b Balance) Validate() error {
	if b.New < 0 || b.OldUsed < 0 {
		return Violation(ErrNegativeResultRejected, "stock balance would become negative (new=%d, old_used=%d)", b.New, b.OldUsed)
	}
	return nil
}

// Available returns the quantity held in a bucket
func (b Balance) Available(category models.StockCategory) int64 {
	if category == models.CategoryOldUsed {
		return b.OldUsed
	}
	return b.New
}

// Apply adds delta to the current balance and fails with ErrInsufficientStock
// when a decreased bucket would drop below zero.
func Apply(current Balance, delta Balance) (Balance, error) {
	next := current.Add(delta)
	if next.New < 0 {
		return current, Violation(ErrInsufficientStock, "insufficient NEW stock: available %d, required %d", current.New, -delta.New)
	}
	if next.OldUsed < 0 {
		return current, Violation(ErrInsufficientStock, "insufficient OLD_USED stock: available %d, required %d", current.OldUsed, -delta.OldUsed)
	}
	return next, nil
}

// FromStock reads the balance of a CurrentStock row
func FromStock(cs *models.CurrentStock) Balance {
	if cs == nil {
		return Balance{}
	}
	return Balance{New: cs.NewQty, OldUsed: cs.OldUsedQty}
}
