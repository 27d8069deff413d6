package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"stockledger/internal/caching"
	"stockledger/internal/ledger"
	"stockledger/internal/models"
	"stockledger/internal/repositories"

	"github.com/google/uuid"
)

// memStore is an in-memory repositories.Store with the same row semantics as
// the PostgreSQL repositories. Top-level transactions are serialized, which
// stands in for the row locks taken by the real Lock/GetForUpdate calls.
type memStore struct {
	db   *memDB
	inTx bool
}

type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data *memData

	// outbox and audit rows live outside the transactional snapshot
	outbox []*models.OutboxMessage
	audits []models.AuditLog
}

type memInventory struct {
	row     models.Inventory
	cascade bool
}

type memConsumption struct {
	row     models.Consumption
	cascade bool
}

type memData struct {
	clusters      map[uuid.UUID]models.Cluster
	plants        map[uuid.UUID]models.Plant
	groups        map[uuid.UUID]models.ItemGroup
	items         map[uuid.UUID]models.Item
	users         map[uuid.UUID]models.User
	inventory     map[uuid.UUID]memInventory
	consumption   map[uuid.UUID]memConsumption
	stock         map[models.StockPair]models.CurrentStock
	invApprovals  map[uuid.UUID]models.ScrapApproval
	consApprovals map[uuid.UUID]models.ConsumptionScrapApproval
}

func newMemStore() *memStore {
	return &memStore{db: &memDB{data: &memData{
		clusters:      map[uuid.UUID]models.Cluster{},
		plants:        map[uuid.UUID]models.Plant{},
		groups:        map[uuid.UUID]models.ItemGroup{},
		items:         map[uuid.UUID]models.Item{},
		users:         map[uuid.UUID]models.User{},
		inventory:     map[uuid.UUID]memInventory{},
		consumption:   map[uuid.UUID]memConsumption{},
		stock:         map[models.StockPair]models.CurrentStock{},
		invApprovals:  map[uuid.UUID]models.ScrapApproval{},
		consApprovals: map[uuid.UUID]models.ConsumptionScrapApproval{},
	}}}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *memData) clone() *memData {
	return &memData{
		clusters:      cloneMap(d.clusters),
		plants:        cloneMap(d.plants),
		groups:        cloneMap(d.groups),
		items:         cloneMap(d.items),
		users:         cloneMap(d.users),
		inventory:     cloneMap(d.inventory),
		consumption:   cloneMap(d.consumption),
		stock:         cloneMap(d.stock),
		invApprovals:  cloneMap(d.invApprovals),
		consApprovals: cloneMap(d.consApprovals),
	}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx repositories.Store) error) error {
	if !s.inTx {
		s.db.txMu.Lock()
		defer s.db.txMu.Unlock()
	}

	s.db.mu.Lock()
	snapshot := s.db.data.clone()
	s.db.mu.Unlock()

	if err := fn(&memStore{db: s.db, inTx: true}); err != nil {
		s.db.mu.Lock()
		s.db.data = snapshot
		s.db.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) Clusters() repositories.ClusterRepository { return memClusters{s.db} }
func (s *memStore) Plants() repositories.PlantRepository { return memPlants{s.db} }
func (s *memStore) ItemGroups() repositories.ItemGroupRepository { return memGroups{s.db} }
func (s *memStore) Items() repositories.ItemRepository { return memItems{s.db} }
func (s *memStore) Users() repositories.UserRepository { return memUsers{s.db} }
func (s *memStore) Inventory() repositories.InventoryRepository { return memInventoryRepo{s.db} }
func (s *memStore) Consumption() repositories.ConsumptionRepository { return memConsumptionRepo{s.db} }
func (s *memStore) Stock() repositories.CurrentStockRepository { return memStock{s.db} }
func (s *memStore) Approvals() repositories.ApprovalRepository { return memApprovals{s.db} }
func (s *memStore) Outbox() repositories.OutboxRepository { return memOutbox{s.db} }
func (s *memStore) AuditLogs() repositories.AuditLogsRepository { return memAuditLogs{s.db} }

func (db *memDB) lock() *memData {
	db.mu.Lock()
	return db.data
}

func (db *memDB) unlock() {
	db.mu.Unlock()
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (d *memData) plantActive(id uuid.UUID) bool {
	p, ok := d.plants[id]
	return ok && !p.IsDeleted
}

func (d *memData) itemActive(id uuid.UUID) bool {
	i, ok := d.items[id]
	return ok && !i.IsDeleted
}

// ---- clusters

type memClusters struct{ db *memDB }

func (r memClusters) Create(ctx context.Context, c *models.Cluster) error {
	d := r.db.lock()
	defer r.db.unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	d.clusters[c.ID] = *c
	return nil
}

func (r memClusters) Update(ctx context.Context, c *models.Cluster) error {
	d := r.db.lock()
	defer r.db.unlock()
	row, ok := d.clusters[c.ID]
	if !ok || row.IsDeleted {
		return ledger.NotFound("cluster")
	}
	row.Name, row.UpdatedBy, row.UpdatedAt = c.Name, c.UpdatedBy, time.Now()
	d.clusters[c.ID] = row
	return nil
}

func (r memClusters) GetByID(ctx context.Context, id uuid.UUID) (*models.Cluster, error) {
	d := r.db.lock()
	defer r.db.unlock()
	row, ok := d.clusters[id]
	if !ok {
		return nil, ledger.NotFound("cluster")
	}
	return &row, nil
}

func (r memClusters) GetByName(ctx context.Context, name string) (*models.Cluster, error) {
	d := r.db.lock()
	defer r.db.unlock()
	for _, row := range d.clusters {
		if !row.IsDeleted && strings.EqualFold(row.Name, strings.TrimSpace(name)) {
			return &row, nil
		}
	}
	return nil, ledger.NotFound("cluster")
}

func (r memClusters) list(deleted bool) []*models.Cluster {
	d := r.db.lock()
	defer r.db.unlock()
	var out []*models.Cluster
	for _, row := range d.clusters {
		if row.IsDeleted == deleted {
			row := row
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r memClusters) List(ctx context.Context) ([]*models.Cluster, error) { return r.list(false), nil }

func (r memClusters) ListDeleted(ctx context.Context) ([]*models.Cluster, error) {
	return r.list(true), nil
}

func (r memClusters) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error {
	d := r.db.lock()
	defer r.db.unlock()
	row, ok := d.clusters[id]
	if !ok || row.IsDeleted == deleted {
		return ledger.NotFound("cluster")
	}
	row.IsDeleted, row.UpdatedBy, row.UpdatedAt = deleted, &by, time.Now()
	d.clusters[id] = row
	return nil
}

func (r memClusters) Default(ctx context.Context) (*models.Cluster, error) {
	var best *models.Cluster
	for _, c := range r.list(false) {
		switch {
		case strings.EqualFold(c.Name, "north cluster"):
			return c, nil
		case best == nil || c.CreatedAt.Before(best.CreatedAt):
			best = c
		}
	}
	if best == nil {
		return nil, ledger.NotFound("default cluster")
	}
	return best, nil
}

// ---- plants

type memPlants struct{ db *memDB }

func (r memPlants) Create(ctx context.Context, p *models.Plant) error {
	d := r.db.lock()
	defer r.db.unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	d.plants[p.ID] = *p
	return nil
}

func (r memPlants) Update(ctx context.Context, p *models.Plant) error {
	d := r.db.lock()
	defer r.db.unlock()
	row, ok := d.plants[p.ID]
	if !ok || row.IsDeleted {
		return ledger.NotFound("plant")
	}
	row.Name, row.ClusterID, row.UpdatedBy, row.UpdatedAt = p.Name, p.ClusterID, p.UpdatedBy, time.Now()
	d.plants[p.ID] = row
	return nil
}

func (r memPlants) GetByID(ctx context.Context, id uuid.UUID) (*models.Plant, error) {
	d := r.db.lock()
	defer r.db.unlock()
	row, ok := d.plants[id]
	if !ok {
		return nil, ledger.NotFound("plant")
	}
	return &row, nil
}

func (r memPlants) GetByName(ctx context.Context, name string) (*models.Plant, error) {
	d := r.db.lock()
	defer r.db.unlock()
	for _, row := range d.plants {
		if !row.IsDeleted && strings.EqualFold(row.Name, strings.TrimSpace(name)) {
			return &row, nil
		}
	}
	return nil, ledger.NotFound("plant")
}

func (r memPlants) list(deleted bool, clusterID *uuid.UUID) []*models.Plant {
	d := r.db.lock()
	defer r.db.unlock()
	var out []*models.Plant
	for _, row := range d.plants {
		if row.IsDeleted != deleted || (clusterID != nil && row.ClusterID != *clusterID) {
			continue
		}
		row := row
		out = append(out, &row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r memPlants) List(ctx context.Context, clusterID *uuid.UUID) ([]*models.Plant, error) {
	return r.list(false, clusterID), nil
}

func (r memPlants) ListDeleted(ctx context.Context) ([]*models.Plant, error) {
	return r.list(true, nil), nil
}

func (r memPlants) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error {
	d := r.db.lock()
	defer r.db.unlock()
	row, ok := d.plants[id]
	if !ok || row.IsDeleted == deleted {
		return ledger.NotFound("plant")
	}
	row.IsDeleted, row.UpdatedBy, row.UpdatedAt = deleted, &by, time.Now()
	d.plants[id] = row
	return nil
}

func (r memPlants) ActiveIDsByCluster(ctx context.Context, clusterID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, p := range r.list(false, &clusterID) {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// ---- item groups

type memGroups struct{ db *memDB }

func (r memGroups) Create(ctx context.Context, g *models.ItemGroup) error {
	d := r.db.lock()
	defer r.db.unlock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.CreatedAt, g.UpdatedAt = time.Now(), time.Now()
	d.groups[g.ID] = *g
	return nil
}

func (r memGroups) Update(ctx context.Context, g *models.ItemGroup) error {
	d := r.db.lock()
	defer r.db.unlock()
	row, ok := d.groups[g.ID]
	if !ok || row.IsDeleted {
		return ledger.NotFound("item group")
	}
	row.Name, row.UpdatedBy, row.UpdatedAt = g.Name, g.UpdatedBy, time.Now()
	d.groups[g.ID] = row
	return nil
}

func (r memGroups) GetByID(ctx context.Context, id uuid.UUID) (*models.ItemGroup, error) {
	d := r.db.lock()
	defer r.db.unlock()
	row, ok := d.groups[id]
	if !ok {
		return nil, ledger.NotFound("item group")
	}
	return &row, nil
}

func (r memGroups) GetByName(ctx context.Context, name string) (*models.ItemGroup, error) {
	d := r.db.lock()
	defer r.db.unlock()
	for _, row := range d.groups {
		if !row.IsDeleted && strings.EqualFold(row.Name, strings.TrimSpace(name)) {
			return &row, nil
		}
	}
	return nil, ledger.NotFound("item group")
}

func (r memGroups) list(deleted bool) []*models.ItemGroup {
	d := r.db.lock()
	defer r.db.unlock()
	var out []*models.ItemGroup
	for _, row := range d.groups {
		if row.IsDeleted == deleted {
			row := row
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r memGroups) List(ctx context.Context) ([]*models.ItemGroup, error) { return r.list(false), nil }

func (r memGroups) ListDeleted(ctx context.Context) ([]*models.ItemGroup, error) {
	return r.list(true), nil
}

func (r memGroups) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error {
	d := r.db.lock()
	defer r.db.unlock()
	row, ok := d.groups[id]
	if !ok || row.IsDeleted == deleted {
		return ledger.NotFound("item group")
	}
	row.IsDeleted, row.UpdatedBy, row.UpdatedAt = deleted, &by, time.Now()
	d.groups[id] = row
	return nil
}

// ---- items

type memItems struct{ db *memDB }

func (r memItems) Create(ctx context.Context, it *models.Item) error {
	d := r.db.lock()
	defer r.db.unlock()
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	it.CreatedAt, it.UpdatedAt = time.Now(), time.Now()
	d.items[it.ID] = *it
	return nil
}

func (r memItems) Update(ctx context.Context, it *models.Item) error {
	d := r.db.lock()
	defer r.db.unlock()
	row, ok := d.items[it.ID]
	if !ok || row.IsDeleted {
		return ledger.NotFound("item")
	}
	row.Code, row.Description, row.Unit, row.ItemGroupID = it.Code, it.Description, it.Unit, it.ItemGroupID
	row.UpdatedBy, row.UpdatedAt = it.UpdatedBy, time.Now()
	d.items[it.ID] = row
	return nil
}

func (r memItems) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	d := r.db.lock()
	defer r.db.unlock()
	row, ok := d.items[id]
	if !ok {
		return nil, ledger.NotFound("item")
	}
	return &row, nil
}

func (r memItems) GetByCode(ctx context.Context, code string) (*models.Item, error) {
	d := r.db.lock()
	defer r.db.unlock()
	for _, row := range d.items {
		if !row.IsDeleted && strings.EqualFold(row.Code, strings.TrimSpace(code)) {
			return &row, nil
		}
	}
	return nil, ledger.NotFound("item")
}

func (r memItems) list(deleted bool, groupID *uuid.UUID) []*models.Item {
	d := r.db.lock()
	defer r.db.unlock()
	var out []*models.Item
	for _, row := range d.items {
		if row.IsDeleted != deleted || (groupID != nil && row.ItemGroupID != *groupID) {
			continue
		}
		row := row
		out = append(out, &row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (r memItems) List(ctx context.Context, groupID *uuid.UUID, limit, offset int) ([]*models.Item, error) {
	out := r.list(false, groupID)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r memItems) ListDeleted(ctx context.Context) ([]*models.Item, error) {
	return r.list(true, nil), nil
}

func (r memItems) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error {
	d := r.db.lock()
	defer r.db.unlock()
	row, ok := d.items[id]
	if !ok || row.IsDeleted == deleted {
		return ledger.NotFound("item")
	}
	row.IsDeleted, row.UpdatedBy, row.UpdatedAt = deleted, &by, time.Now()
	d.items[id] = row
	return nil
}

func (r memItems) ActiveIDsByGroup(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, it := range r.list(false, &groupID) {
		ids = append(ids, it.ID)
	}
	return ids, nil
}

// ---- users

type memUsers struct{ db *memDB }

func (r memUsers) put(u *models.User) {
	d := r.db.lock()
	defer r.db.unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	d.users[u.ID] = *u
}

func (r memUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	d := r.db.lock()
	defer r.db.unlock()
	row, ok := d.users[id]
	if !ok {
		return nil, ledger.NotFound("user")
	}
	return &row, nil
}

func (r memUsers) GetWithPlantCluster(ctx context.Context, id uuid.UUID) (*models.User, *uuid.UUID, error) {
	d := r.db.lock()
	defer r.db.unlock()
	row, ok := d.users[id]
	if !ok {
		return nil, nil, ledger.NotFound("user")
	}
	var plantCluster *uuid.UUID
	if row.PlantID != nil {
		if p, ok := d.plants[*row.PlantID]; ok {
			c := p.ClusterID
			plantCluster = &c
		}
	}
	return &row, plantCluster, nil
}

func (r memUsers) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	d := r.db.lock()
	defer r.db.unlock()
	_, ok := d.users[id]
	return ok, nil
}

func (r memUsers) ClusterManager(ctx context.Context, clusterID uuid.UUID) (*models.User, error) {
	d := r.db.lock()
	defer r.db.unlock()
	var best *models.User
	for _, u := range d.users {
		if u.ClusterID == nil || *u.ClusterID != clusterID || u.Role != models.RoleClusterManager ||
			u.Status != models.UserStatusActive || u.IsDeleted {
			continue
		}
		if best == nil || u.CreatedAt.Before(best.CreatedAt) {
			u := u
			best = &u
		}
	}
	if best == nil {
		return nil, ledger.NotFound("cluster manager")
	}
	return best, nil
}

func (r memUsers) ListPending(ctx context.Context, clusterID *uuid.UUID) ([]*models.User, error) {
	d := r.db.lock()
	defer r.db.unlock()
	var out []*models.User
	for _, u := range d.users {
		if u.Status != models.UserStatusPending || u.IsDeleted {
			continue
		}
		if clusterID != nil {
			inCluster := u.ClusterID != nil && *u.ClusterID == *clusterID
			if u.PlantID != nil {
				if p, ok := d.plants[*u.PlantID]; ok && p.ClusterID == *clusterID {
					inCluster = true
				}
			}
			if !inCluster {
				continue
			}
		}
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memUsers) ListDeleted(ctx context.Context) ([]*models.User, error) {
	d := r.db.lock()
	defer r.db.unlock()
	var out []*models.User
	for _, u := range d.users {
		if u.IsDeleted {
			u := u
			out = append(out, &u)
		}
	}
	return out, nil
}

func (r memUsers) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	d := r.db.lock()
	defer r.db.unlock()
	u, ok := d.users[id]
	if !ok {
		return ledger.NotFound("user")
	}
	u.Status, u.UpdatedAt = status, time.Now()
	d.users[id] = u
	return nil
}

func (r memUsers) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, status string) error {
	d := r.db.lock()
	defer r.db.unlock()
	u, ok := d.users[id]
	if !ok || u.IsDeleted == deleted {
		return ledger.NotFound("user")
	}
	u.IsDeleted, u.Status, u.UpdatedAt = deleted, status, time.Now()
	d.users[id] = u
	return nil
}

func (r memUsers) deactivate(match func(u models.User) bool) int64 {
	d := r.db.lock()
	defer r.db.unlock()
	var n int64
	for id, u := range d.users {
		if match(u) {
			u.Status, u.UpdatedAt = models.UserStatusInactive, time.Now()
			d.users[id] = u
			n++
		}
	}
	return n
}

func (r memUsers) DeactivateByPlants(ctx context.Context, plantIDs []uuid.UUID) (int64, error) {
	return r.deactivate(func(u models.User) bool { return u.PlantID != nil && containsID(plantIDs, *u.PlantID) }), nil
}

func (r memUsers) DeactivateByClusters(ctx context.Context, clusterIDs []uuid.UUID) (int64, error) {
	return r.deactivate(func(u models.User) bool { return u.ClusterID != nil && containsID(clusterIDs, *u.ClusterID) }), nil
}

// ---- ledger filter

func (d *memData) matches(plantID uuid.UUID, itemID uuid.UUID, date time.Time, f *models.LedgerFilter) bool {
	if f == nil {
		return true
	}
	if f.PlantID != nil && *f.PlantID != plantID {
		return false
	}
	if f.ItemID != nil && *f.ItemID != itemID {
		return false
	}
	if f.ClusterID != nil && d.plants[plantID].ClusterID != *f.ClusterID {
		return false
	}
	if f.From != nil && date.Before(*f.From) {
		return false
	}
	if f.To != nil && date.After(*f.To) {
		return false
	}
	return true
}

// ---- inventory

type memInventoryRepo struct{ db *memDB }

func (r memInventoryRepo) Create(ctx context.Context, inv *models.Inventory) error {
	d := r.db.lock()
	defer r.db.unlock()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	now := time.Now()
	inv.CreatedAt, inv.UpdatedAt = now, now
	if inv.Date.IsZero() {
		inv.Date = now
	}
	inv.RecomputeTotal()
	d.inventory[inv.ID] = memInventory{row: *inv}
	return nil
}

func (r memInventoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Inventory, error) {
	d := r.db.lock()
	defer r.db.unlock()
	rec, ok := d.inventory[id]
	if !ok {
		return nil, ledger.NotFound("inventory record")
	}
	return &rec.row, nil
}

func (r memInventoryRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Inventory, error) {
	d := r.db.lock()
	defer r.db.unlock()
	rec, ok := d.inventory[id]
	if !ok || rec.row.IsDeleted {
		return nil, ledger.NotFound("inventory record")
	}
	return &rec.row, nil
}

func (r memInventoryRepo) Update(ctx context.Context, inv *models.Inventory) error {
	d := r.db.lock()
	defer r.db.unlock()
	rec, ok := d.inventory[inv.ID]
	if !ok || rec.row.IsDeleted {
		return ledger.NotFound("inventory record")
	}
	inv.RecomputeTotal()
	rec.row.NewQty, rec.row.OldUsedQty, rec.row.ScrappedQty, rec.row.Total = inv.NewQty, inv.OldUsedQty, inv.ScrappedQty, inv.Total
	rec.row.Remarks, rec.row.UpdatedBy, rec.row.UpdatedAt = inv.Remarks, inv.UpdatedBy, time.Now()
	d.inventory[inv.ID] = rec
	return nil
}

func (r memInventoryRepo) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error {
	d := r.db.lock()
	defer r.db.unlock()
	rec, ok := d.inventory[id]
	if !ok || rec.row.IsDeleted == deleted {
		return ledger.NotFound("inventory record")
	}
	rec.row.IsDeleted, rec.row.UpdatedBy, rec.cascade = deleted, &by, false
	d.inventory[id] = rec
	return nil
}

func (r memInventoryRepo) List(ctx context.Context, filter *models.LedgerFilter) ([]*models.Inventory, error) {
	d := r.db.lock()
	defer r.db.unlock()
	var out []*models.Inventory
	for _, rec := range d.inventory {
		if rec.row.IsDeleted || !d.matches(rec.row.PlantID, rec.row.ItemID, rec.row.Date, filter) {
			continue
		}
		row := rec.row
		out = append(out, &row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memInventoryRepo) CascadeDelete(ctx context.Context, plantIDs, itemIDs []uuid.UUID, by uuid.UUID) (int64, error) {
	d := r.db.lock()
	defer r.db.unlock()
	var n int64
	for id, rec := range d.inventory {
		if rec.row.IsDeleted || !(containsID(plantIDs, rec.row.PlantID) || containsID(itemIDs, rec.row.ItemID)) {
			continue
		}
		rec.row.IsDeleted, rec.row.UpdatedBy, rec.cascade = true, &by, true
		d.inventory[id] = rec
		n++
	}
	return n, nil
}

func (r memInventoryRepo) CascadeRestore(ctx context.Context, plantID, itemID *uuid.UUID, by uuid.UUID) (int64, error) {
	d := r.db.lock()
	defer r.db.unlock()
	var n int64
	for id, rec := range d.inventory {
		if !rec.cascade || !rec.row.IsDeleted {
			continue
		}
		if (plantID != nil && rec.row.PlantID != *plantID) || (itemID != nil && rec.row.ItemID != *itemID) {
			continue
		}
		if !d.plantActive(rec.row.PlantID) || !d.itemActive(rec.row.ItemID) {
			continue
		}
		rec.row.IsDeleted, rec.row.UpdatedBy, rec.cascade = false, &by, false
		d.inventory[id] = rec
		n++
	}
	return n, nil
}

// ---- consumption

type memConsumptionRepo struct{ db *memDB }

func (r memConsumptionRepo) Create(ctx context.Context, c *models.Consumption) error {
	d := r.db.lock()
	defer r.db.unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Date.IsZero() {
		c.Date = now
	}
	d.consumption[c.ID] = memConsumption{row: *c}
	return nil
}

func (r memConsumptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Consumption, error) {
	d := r.db.lock()
	defer r.db.unlock()
	rec, ok := d.consumption[id]
	if !ok {
		return nil, ledger.NotFound("consumption record")
	}
	return &rec.row, nil
}

func (r memConsumptionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Consumption, error) {
	d := r.db.lock()
	defer r.db.unlock()
	rec, ok := d.consumption[id]
	if !ok || rec.row.IsDeleted {
		return nil, ledger.NotFound("consumption record")
	}
	return &rec.row, nil
}

func (r memConsumptionRepo) Update(ctx context.Context, c *models.Consumption) error {
	d := r.db.lock()
	defer r.db.unlock()
	rec, ok := d.consumption[c.ID]
	if !ok || rec.row.IsDeleted {
		return ledger.NotFound("consumption record")
	}
	rec.row.Quantity, rec.row.Remarks, rec.row.UpdatedBy, rec.row.UpdatedAt = c.Quantity, c.Remarks, c.UpdatedBy, time.Now()
	d.consumption[c.ID] = rec
	return nil
}

func (r memConsumptionRepo) SetReturnCredited(ctx context.Context, id uuid.UUID, credited bool) error {
	d := r.db.lock()
	defer r.db.unlock()
	rec, ok := d.consumption[id]
	if !ok {
		return ledger.NotFound("consumption record")
	}
	rec.row.ReturnCredited = credited
	d.consumption[id] = rec
	return nil
}

func (r memConsumptionRepo) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error {
	d := r.db.lock()
	defer r.db.unlock()
	rec, ok := d.consumption[id]
	if !ok || rec.row.IsDeleted == deleted {
		return ledger.NotFound("consumption record")
	}
	rec.row.IsDeleted, rec.row.UpdatedBy, rec.cascade = deleted, &by, false
	d.consumption[id] = rec
	return nil
}

func (r memConsumptionRepo) List(ctx context.Context, filter *models.LedgerFilter) ([]*models.Consumption, error) {
	d := r.db.lock()
	defer r.db.unlock()
	var out []*models.Consumption
	for _, rec := range d.consumption {
		if rec.row.IsDeleted || !d.matches(rec.row.PlantID, rec.row.ItemID, rec.row.Date, filter) {
			continue
		}
		row := rec.row
		out = append(out, &row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memConsumptionRepo) CascadeDelete(ctx context.Context, plantIDs, itemIDs []uuid.UUID, by uuid.UUID) (int64, error) {
	d := r.db.lock()
	defer r.db.unlock()
	var n int64
	for id, rec := range d.consumption {
		if rec.row.IsDeleted || !(containsID(plantIDs, rec.row.PlantID) || containsID(itemIDs, rec.row.ItemID)) {
			continue
		}
		rec.row.IsDeleted, rec.row.UpdatedBy, rec.cascade = true, &by, true
		d.consumption[id] = rec
		n++
	}
	return n, nil
}

func (r memConsumptionRepo) CascadeRestore(ctx context.Context, plantID, itemID *uuid.UUID, by uuid.UUID) (int64, error) {
	d := r.db.lock()
	defer r.db.unlock()
	var n int64
	for id, rec := range d.consumption {
		if !rec.cascade || !rec.row.IsDeleted {
			continue
		}
		if (plantID != nil && rec.row.PlantID != *plantID) || (itemID != nil && rec.row.ItemID != *itemID) {
			continue
		}
		if !d.plantActive(rec.row.PlantID) || !d.itemActive(rec.row.ItemID) {
			continue
		}
		rec.row.IsDeleted, rec.row.UpdatedBy, rec.cascade = false, &by, false
		d.consumption[id] = rec
		n++
	}
	return n, nil
}

// ---- current stock

type memStock struct{ db *memDB }

func (r memStock) Lock(ctx context.Context, plantID, itemID uuid.UUID) (*models.CurrentStock, error) {
	d := r.db.lock()
	defer r.db.unlock()
	pair := models.StockPair{PlantID: plantID, ItemID: itemID}
	cs, ok := d.stock[pair]
	if !ok {
		cs = models.CurrentStock{PlantID: plantID, ItemID: itemID, UpdatedAt: time.Now()}
		d.stock[pair] = cs
	}
	return &cs, nil
}

func (r memStock) Save(ctx context.Context, cs *models.CurrentStock) error {
	if err := ledger.FromStock(cs).Validate(); err != nil {
		return err
	}
	d := r.db.lock()
	defer r.db.unlock()
	cs.UpdatedAt = time.Now()
	d.stock[models.StockPair{PlantID: cs.PlantID, ItemID: cs.ItemID}] = *cs
	return nil
}

func (r memStock) Get(ctx context.Context, plantID, itemID uuid.UUID) (*models.CurrentStock, error) {
	d := r.db.lock()
	defer r.db.unlock()
	cs, ok := d.stock[models.StockPair{PlantID: plantID, ItemID: itemID}]
	if !ok {
		return nil, ledger.NotFound("current stock")
	}
	return &cs, nil
}

func (r memStock) List(ctx context.Context, filter *models.LedgerFilter) ([]*models.StockView, error) {
	d := r.db.lock()
	defer r.db.unlock()
	scope := &models.LedgerFilter{}
	if filter != nil {
		scope = &models.LedgerFilter{PlantID: filter.PlantID, ItemID: filter.ItemID, ClusterID: filter.ClusterID}
	}
	var out []*models.StockView
	for pair, cs := range d.stock {
		if !d.plantActive(pair.PlantID) || !d.itemActive(pair.ItemID) || !d.matches(pair.PlantID, pair.ItemID, time.Time{}, scope) {
			continue
		}
		item := d.items[pair.ItemID]
		out = append(out, &models.StockView{
			CurrentStock:    cs,
			PlantName:       d.plants[pair.PlantID].Name,
			ItemCode:        item.Code,
			ItemDescription: item.Description,
			Unit:            item.Unit,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlantName != out[j].PlantName {
			return out[i].PlantName < out[j].PlantName
		}
		return out[i].ItemCode < out[j].ItemCode
	})
	return out, nil
}

func (r memStock) DeleteFor(ctx context.Context, plantIDs, itemIDs []uuid.UUID) (int64, error) {
	d := r.db.lock()
	defer r.db.unlock()
	var n int64
	for pair := range d.stock {
		if containsID(plantIDs, pair.PlantID) || containsID(itemIDs, pair.ItemID) {
			delete(d.stock, pair)
			n++
		}
	}
	return n, nil
}

func (r memStock) ReplayEntries(ctx context.Context, plantID, itemID uuid.UUID) ([]ledger.Entry, error) {
	d := r.db.lock()
	defer r.db.unlock()
	var entries []ledger.Entry
	for _, rec := range d.inventory {
		if !rec.row.IsDeleted && rec.row.PlantID == plantID && rec.row.ItemID == itemID {
			entries = append(entries, ledger.ReceiptEntry(rec.row.NewQty, rec.row.OldUsedQty))
		}
	}
	for _, rec := range d.consumption {
		c := rec.row
		if c.IsDeleted || c.PlantID != plantID {
			continue
		}
		if c.ItemID == itemID {
			entries = append(entries, ledger.ConsumptionEntry(c.Quantity, c.SourceCategory))
		}
		if c.ReturnCredited && c.ReturnedItemID != nil && *c.ReturnedItemID == itemID {
			entries = append(entries, ledger.ReturnEntry(c.Quantity))
		}
	}
	return entries, nil
}

func (d *memData) ledgerPairs(match func(p models.StockPair) bool) []models.StockPair {
	seen := map[models.StockPair]bool{}
	add := func(p models.StockPair) {
		if match(p) {
			seen[p] = true
		}
	}
	for _, rec := range d.inventory {
		if !rec.row.IsDeleted {
			add(models.StockPair{PlantID: rec.row.PlantID, ItemID: rec.row.ItemID})
		}
	}
	for _, rec := range d.consumption {
		c := rec.row
		if c.IsDeleted {
			continue
		}
		add(models.StockPair{PlantID: c.PlantID, ItemID: c.ItemID})
		if c.ReturnCredited && c.ReturnedItemID != nil {
			ret := models.StockPair{PlantID: c.PlantID, ItemID: *c.ReturnedItemID}
			// a credit is reached through the consumed item as well as the returned one
			if match(models.StockPair{PlantID: c.PlantID, ItemID: c.ItemID}) || match(ret) {
				seen[ret] = true
			}
		}
	}
	for pair := range d.stock {
		add(pair)
	}
	pairs := make([]models.StockPair, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	return sortPairs(pairs)
}

func (r memStock) LedgerPairs(ctx context.Context, plantIDs, itemIDs []uuid.UUID) ([]models.StockPair, error) {
	d := r.db.lock()
	defer r.db.unlock()
	return d.ledgerPairs(func(p models.StockPair) bool {
		return containsID(plantIDs, p.PlantID) || containsID(itemIDs, p.ItemID)
	}), nil
}

func (r memStock) ActivePairs(ctx context.Context) ([]models.StockPair, error) {
	d := r.db.lock()
	defer r.db.unlock()
	return d.ledgerPairs(func(p models.StockPair) bool {
		return d.plantActive(p.PlantID) && d.itemActive(p.ItemID)
	}), nil
}

func (r memStock) PairActive(ctx context.Context, pair models.StockPair) (bool, error) {
	d := r.db.lock()
	defer r.db.unlock()
	return d.plantActive(pair.PlantID) && d.itemActive(pair.ItemID), nil
}

func (r memStock) SummaryByItemGroup(ctx context.Context, measure models.SummaryMeasure, plantID, clusterID *uuid.UUID) ([]*models.GroupSummary, error) {
	d := r.db.lock()
	defer r.db.unlock()

	totals := map[uuid.UUID]int64{}
	add := func(p models.StockPair, qty int64) {
		if !d.plantActive(p.PlantID) || !d.itemActive(p.ItemID) {
			return
		}
		if (plantID != nil && p.PlantID != *plantID) || (clusterID != nil && d.plants[p.PlantID].ClusterID != *clusterID) {
			return
		}
		totals[d.items[p.ItemID].ItemGroupID] += qty
	}

	switch measure {
	case models.MeasureAvailable, models.MeasureAvailableNew, models.MeasureAvailableOldUsed:
		for pair, cs := range d.stock {
			switch measure {
			case models.MeasureAvailableNew:
				add(pair, cs.NewQty)
			case models.MeasureAvailableOldUsed:
				add(pair, cs.OldUsedQty)
			default:
				add(pair, cs.NewQty+cs.OldUsedQty)
			}
		}
	case models.MeasureScrapped:
		for _, rec := range d.inventory {
			if !rec.row.IsDeleted {
				add(models.StockPair{PlantID: rec.row.PlantID, ItemID: rec.row.ItemID}, rec.row.ScrappedQty)
			}
		}
	case models.MeasureConsumed:
		for _, rec := range d.consumption {
			if !rec.row.IsDeleted {
				add(models.StockPair{PlantID: rec.row.PlantID, ItemID: rec.row.ItemID}, rec.row.Quantity)
			}
		}
	default:
		return nil, ledger.Violation(ledger.ErrValidation, "unknown summary measure %q", measure)
	}

	var out []*models.GroupSummary
	for id, g := range d.groups {
		if g.IsDeleted {
			continue
		}
		out = append(out, &models.GroupSummary{ItemGroupID: id, Name: g.Name, Value: totals[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// corrupt overwrites a stock row without going through the ledger
func (r memStock) corrupt(pair models.StockPair, b ledger.Balance) {
	d := r.db.lock()
	defer r.db.unlock()
	d.stock[pair] = models.CurrentStock{PlantID: pair.PlantID, ItemID: pair.ItemID, NewQty: b.New, OldUsedQty: b.OldUsed}
}

// ---- approvals

type memApprovals struct{ db *memDB }

func (r memApprovals) CreateInventoryApproval(ctx context.Context, a *models.ScrapApproval) error {
	d := r.db.lock()
	defer r.db.unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status, a.CreatedAt = models.ApprovalPending, time.Now()
	d.invApprovals[a.ID] = *a
	return nil
}

func (r memApprovals) CreateConsumptionApproval(ctx context.Context, a *models.ConsumptionScrapApproval) error {
	d := r.db.lock()
	defer r.db.unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status, a.CreatedAt = models.ApprovalPending, time.Now()
	d.consApprovals[a.ID] = *a
	return nil
}

func (r memApprovals) GetInventoryApprovalForUpdate(ctx context.Context, id uuid.UUID) (*models.ScrapApproval, error) {
	d := r.db.lock()
	defer r.db.unlock()
	a, ok := d.invApprovals[id]
	if !ok {
		return nil, ledger.NotFound("scrap approval")
	}
	return &a, nil
}

func (r memApprovals) GetConsumptionApprovalForUpdate(ctx context.Context, id uuid.UUID) (*models.ConsumptionScrapApproval, error) {
	d := r.db.lock()
	defer r.db.unlock()
	a, ok := d.consApprovals[id]
	if !ok {
		return nil, ledger.NotFound("consumption scrap approval")
	}
	return &a, nil
}

func (r memApprovals) ResolveInventoryApproval(ctx context.Context, id uuid.UUID, status models.ApprovalStatus, approvedBy uuid.UUID, at time.Time) error {
	d := r.db.lock()
	defer r.db.unlock()
	a, ok := d.invApprovals[id]
	if !ok || a.Status != models.ApprovalPending {
		return ledger.Violation(ledger.ErrAlreadyProcessed, "scrap request %s has already been processed", id)
	}
	a.Status, a.ApprovedBy, a.ProcessedAt = status, &approvedBy, &at
	d.invApprovals[id] = a
	return nil
}

func (r memApprovals) ResolveConsumptionApproval(ctx context.Context, id uuid.UUID, status models.ApprovalStatus, approvedBy uuid.UUID, at time.Time) error {
	d := r.db.lock()
	defer r.db.unlock()
	a, ok := d.consApprovals[id]
	if !ok || a.Status != models.ApprovalPending {
		return ledger.Violation(ledger.ErrAlreadyProcessed, "scrap request %s has already been processed", id)
	}
	a.Status, a.ApprovedBy, a.ProcessedAt = status, &approvedBy, &at
	d.consApprovals[id] = a
	return nil
}

func (r memApprovals) ListPending(ctx context.Context, clusterID *uuid.UUID) ([]*models.PendingApproval, error) {
	d := r.db.lock()
	defer r.db.unlock()
	var out []*models.PendingApproval
	add := func(kind models.ApprovalKind, id, source, plantID, itemID uuid.UUID, a models.ApprovalStatus, qty int64, by uuid.UUID, at time.Time) {
		plant := d.plants[plantID]
		if a != models.ApprovalPending || (clusterID != nil && plant.ClusterID != *clusterID) {
			return
		}
		out = append(out, &models.PendingApproval{
			Kind: kind, ID: id, SourceID: source, PlantID: plantID, PlantName: plant.Name,
			ItemID: itemID, ItemCode: d.items[itemID].Code, RequestedQty: qty, RequestedBy: by, CreatedAt: at,
		})
	}
	for _, a := range d.invApprovals {
		inv, ok := d.inventory[a.InventoryID]
		if !ok || inv.row.IsDeleted {
			continue
		}
		add(models.ApprovalKindInventory, a.ID, inv.row.ID, inv.row.PlantID, inv.row.ItemID, a.Status, a.RequestedQty, a.RequestedBy, a.CreatedAt)
	}
	for _, a := range d.consApprovals {
		c, ok := d.consumption[a.ConsumptionID]
		if !ok || c.row.IsDeleted || c.row.ReturnedItemID == nil {
			continue
		}
		add(models.ApprovalKindConsumption, a.ID, c.row.ID, c.row.PlantID, *c.row.ReturnedItemID, a.Status, a.RequestedQty, a.RequestedBy, a.CreatedAt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- outbox

type memOutbox struct{ db *memDB }

func (r memOutbox) Enqueue(ctx context.Context, kind models.OutboxKind, payload []byte) (*models.OutboxMessage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	msg := &models.OutboxMessage{ID: uuid.New(), Kind: kind, Payload: payload, Status: models.OutboxStatusPending, CreatedAt: time.Now()}
	r.db.outbox = append(r.db.outbox, msg)
	return msg, nil
}

func (r memOutbox) Claim(ctx context.Context, dispatcherID string, batchSize, maxAttempts int, now, staleBefore time.Time) ([]*models.OutboxMessage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.OutboxMessage
	for _, m := range r.db.outbox {
		if len(out) == batchSize {
			break
		}
		if m.Status != models.OutboxStatusPending && m.Status != models.OutboxStatusFailed {
			continue
		}
		if m.NextAttemptAt != nil && m.NextAttemptAt.After(now) {
			continue
		}
		if m.Attempts >= maxAttempts {
			m.Status = models.OutboxStatusDead
			continue
		}
		m.Status, m.Attempts, m.LockedAt, m.LockedBy = models.OutboxStatusProcessing, m.Attempts+1, &now, &dispatcherID
		claimed := *m
		out = append(out, &claimed)
	}
	return out, nil
}

func (r memOutbox) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, m := range r.db.outbox {
		if m.ID == id {
			m.Status, m.SentAt = models.OutboxStatusSent, &at
		}
	}
	return nil
}

func (r memOutbox) MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, nextAttempt *time.Time, dead bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, m := range r.db.outbox {
		if m.ID != id {
			continue
		}
		m.Status, m.LastError, m.NextAttemptAt = models.OutboxStatusFailed, &lastErr, nextAttempt
		if dead {
			m.Status = models.OutboxStatusDead
		}
	}
	return nil
}

// messages returns the queued payloads of one kind
func (r memOutbox) messages(kind models.OutboxKind) []*models.OutboxMessage {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.OutboxMessage
	for _, m := range r.db.outbox {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// ---- audit logs

type memAuditLogs struct{ db *memDB }

func (r memAuditLogs) Create(ctx context.Context, a *models.AuditLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.audits {
		if existing.ID == a.ID {
			return nil
		}
	}
	r.db.audits = append(r.db.audits, *a)
	return nil
}

func (r memAuditLogs) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.audits {
		if a.ID == id {
			a := a
			return &a, nil
		}
	}
	return nil, ledger.NotFound("audit log")
}

func (r memAuditLogs) List(ctx context.Context, f *models.AuditLogFilters) ([]*models.AuditLog, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.AuditLog
	for _, a := range r.db.audits {
		if f != nil && f.Action != nil && a.Action != *f.Action {
			continue
		}
		a := a
		out = append(out, &a)
	}
	return out, nil
}

// ---- collaborators

type inlineLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *inlineLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		l.mu.Unlock()
		return caching.ErrLockBusy
	}
	l.held[key] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()
	return fn(ctx)
}

type memCache struct {
	mu          sync.Mutex
	invalidated []models.StockPair
}

func (c *memCache) GetStock(ctx context.Context, plantID, itemID uuid.UUID) (*models.CurrentStock, error) {
	return nil, nil
}

func (c *memCache) SetStock(ctx context.Context, stock *models.CurrentStock, ttl time.Duration) error {
	return nil
}

func (c *memCache) InvalidateStock(ctx context.Context, pairs ...models.StockPair) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pairs...)
	return nil
}

func (c *memCache) Ping(ctx context.Context) error { return nil }

type memObjects struct {
	mu      sync.Mutex
	objects  map[string][]byte
	failPut  bool
	failSign bool
}

func (m *memObjects) Upload(ctx context.Context, bucket, object string, reader io.Reader, size int64, contentType string) error {
	if m.failPut {
		return errors.New("storage unavailable")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[bucket+"/"+object] = buf.Bytes()
	return nil
}

func (m *memObjects) GetPresignedURL(ctx context.Context, bucket, object string, expiry time.Duration) (string, error) {
	if m.failSign {
		return "", errors.New("signing unavailable")
	}
	return "https://objects.test/" + bucket + "/" + object, nil
}

func (m *memObjects) Delete(ctx context.Context, bucket, object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+object)
	return nil
}

func (m *memObjects) EnsureBucketExists(ctx context.Context, bucket string) error { return nil }
