package services

import (
	"context"
	"time"

	"stockledger/internal/caching"
	"stockledger/internal/config"
	"stockledger/internal/models"
	"stockledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("stockledger/services")

const effectsTimeout = 5 * time.Second

type auditEntry struct {
	action     string
	entityType string
	entityID   string
	details    models.JSONB
}

// notice is a scrap notification whose recipient is resolved after commit:
// the manager of clusterID, or the user recipientID.
type notice struct {
	kind        models.NotificationKind
	clusterID   *uuid.UUID
	recipientID *uuid.UUID
	payload     models.ScrapNotice
}

// effects collects what a mutation must do once its transaction has committed
type effects struct {
	audits  []auditEntry
	notices []notice
	pairs   []models.StockPair
}

func (e *effects) audit(action string, entityType models.EntityType, entityID uuid.UUID, details models.JSONB) {
	e.audits = append(e.audits, auditEntry{action: action, entityType: string(entityType), entityID: entityID.String(), details: details})
}

func (e *effects) notifyManager(kind models.NotificationKind, clusterID uuid.UUID, payload models.ScrapNotice) {
	e.notices = append(e.notices, notice{kind: kind, clusterID: &clusterID, payload: payload})
}

func (e *effects) notifyUser(kind models.NotificationKind, userID uuid.UUID, payload models.ScrapNotice) {
	e.notices = append(e.notices, notice{kind: kind, recipientID: &userID, payload: payload})
}

func (e *effects) touch(pairs ...models.StockPair) {
	e.pairs = append(e.pairs, pairs...)
}

func (e *effects) merge(other *effects) {
	e.audits = append(e.audits, other.audits...)
	e.notices = append(e.notices, other.notices...)
	e.pairs = append(e.pairs, other.pairs...)
}

// sideEffects runs post-commit work. Failures are logged and never returned:
// the stock mutation has already committed.
type sideEffects struct {
	store    repositories.Store
	audit    AuditLogsService
	notifier NotificationService
	cache    caching.StockCache
	logger   *logrus.Logger
}

func newSideEffects(store repositories.Store, audit AuditLogsService, notifier NotificationService, cache caching.StockCache, logger *logrus.Logger) *sideEffects {
	return &sideEffects{store: store, audit: audit, notifier: notifier, cache: cache, logger: logger}
}

func (s *sideEffects) flush(actorID uuid.UUID, e *effects) {
	ctx, cancel := context.WithTimeout(context.Background(), effectsTimeout)
	defer cancel()

	if s.cache != nil && len(e.pairs) > 0 {
		if err := s.cache.InvalidateStock(ctx, e.pairs...); err != nil {
			config.LogError(s.logger, "services/effects.go", "flush", "invalidate stock cache", e.pairs, err)
		}
	}

	for _, n := range e.notices {
		recipient, err := s.recipient(ctx, n)
		if err != nil {
			config.LogError(s.logger, "services/effects.go", "flush", "resolve notification recipient", n.payload, err)
			continue
		}
		if err := s.notifier.Notify(ctx, recipient, n.kind, n.payload); err != nil {
			config.LogError(s.logger, "services/effects.go", "flush", "enqueue notification", n.payload, err)
		}
	}

	for _, a := range e.audits {
		if err := s.audit.Record(ctx, &actorID, a.action, a.entityType, a.entityID, a.details); err != nil {
			config.LogError(s.logger, "services/effects.go", "flush", "enqueue audit log", a.action, err)
		}
	}
}

func (s *sideEffects) recipient(ctx context.Context, n notice) (string, error) {
	if n.clusterID != nil {
		manager, err := s.store.Users().ClusterManager(ctx, *n.clusterID)
		if err != nil {
			return "", err
		}
		return manager.Email, nil
	}
	user, err := s.store.Users().GetByID(ctx, *n.recipientID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}
