package ledger

import (
	"stockledger/internal/models"

	"github.com/google/uuid"
)

// Rule describes how a soft delete cascades through one hierarchy node
type Rule struct {
	// Children are visited, in order, before the node itself is deleted
	Children []models.EntityType
	// Parent must be active for a restore to proceed
	Parent models.EntityType
	// FallbackParent blocks the restore instead when the row has no Parent
	FallbackParent models.EntityType
	// OwnsLedger marks nodes whose transaction rows are soft-deleted and whose
	// CurrentStock rows are hard-deleted with them
	OwnsLedger bool
	// DeactivatesUsers marks nodes whose users are set INACTIVE on delete
	DeactivatesUsers bool
	// ReplaysOnRestore marks nodes whose CurrentStock is rebuilt on restore
	ReplaysOnRestore bool
}

// Graph is the cascade graph of the hierarchy
type Graph map[models.EntityType]Rule

// Hierarchy is the cluster → plant → ledger and item group → item → ledger graph
var Hierarchy = Graph{
	models.EntityCluster: {
		Children:         []models.EntityType{models.EntityPlant},
		DeactivatesUsers: true,
	},
	models.EntityPlant: {
		Parent:           models.EntityCluster,
		OwnsLedger:       true,
		DeactivatesUsers: true,
		ReplaysOnRestore: true,
	},
	models.EntityItemGroup: {
		Children: []models.EntityType{models.EntityItem},
	},
	models.EntityItem: {
		Parent:           models.EntityItemGroup,
		OwnsLedger:       true,
		ReplaysOnRestore: true,
	},
	// plant users are blocked by their plant, cluster managers by their cluster
	models.EntityUser: {
		Parent:           models.EntityPlant,
		FallbackParent:   models.EntityCluster,
		DeactivatesUsers: true,
	},
}

// Rule returns the rule for an entity type
func (g Graph) Rule(entity models.EntityType) (Rule, bool) {
	r, ok := g[entity]
	return r, ok
}

// Parents returns the entity types that may block restoring entity, in the
// order they are consulted
func (g Graph) Parents(entity models.EntityType) []models.EntityType {
	r := g[entity]
	var parents []models.EntityType
	for _, t := range []models.EntityType{r.Parent, r.FallbackParent} {
		if t != "" {
			parents = append(parents, t)
		}
	}
	return parents
}

// BlockingParent resolves the parent that must be active before entity is
// restored. refs holds the parent references of the row; the first of
// Parents with a reference wins.
func (g Graph) BlockingParent(entity models.EntityType, refs map[models.EntityType]*uuid.UUID) (models.EntityType, uuid.UUID, bool) {
	for _, parent := range g.Parents(entity) {
		if id := refs[parent]; id != nil {
			return parent, *id, true
		}
	}
	return "", uuid.Nil, false
}

// Supports reports whether entity participates in delete/restore
func (g Graph) Supports(entity models.EntityType) bool {
	_, ok := g[entity]
	return ok
}
