package repositories

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/models"

	"github.com/google/uuid"
)

type OutboxRepository interface {
	Enqueue(ctx context.Context, kind models.OutboxKind, payload []byte) (*models.OutboxMessage, error)
	// Claim locks a batch of deliverable messages with SKIP LOCKED and marks
	// them PROCESSING; messages past maxAttempts are moved to DEAD instead.
	// It must run inside a transaction.
	Claim(ctx context.Context, dispatcherID string, batchSize, maxAttempts int, now, staleBefore time.Time) ([]*models.OutboxMessage, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, nextAttempt *time.Time, dead bool) error
}

type outboxRepo struct {
	db Database
}

func NewOutboxRepo(db Database) OutboxRepository {
	return &outboxRepo{db: db}
}

func (r *outboxRepo) Enqueue(ctx context.Context, kind models.OutboxKind, payload []byte) (*models.OutboxMessage, error) {
	msg := &models.OutboxMessage{
		ID:        uuid.New(),
		Kind:      kind,
		Payload:   payload,
		Status:    models.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
	query := `
		INSERT INTO outbox_messages (id, kind, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)
	`
	if _, err := r.db.Exec(ctx, query, msg.ID, msg.Kind, msg.Payload, msg.Status, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to enqueue outbox message: %w", err)
	}
	return msg, nil
}

func (r *outboxRepo) Claim(ctx context.Context, dispatcherID string, batchSize, maxAttempts int, now, staleBefore time.Time) ([]*models.OutboxMessage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, kind, payload, status, attempts, created_at
		FROM outbox_messages
		WHERE (status IN ($1, $2) AND (next_attempt_at IS NULL OR next_attempt_at <= $3))
		   OR (status = $4 AND locked_at IS NOT NULL AND locked_at <= $5)
		ORDER BY created_at ASC
		LIMIT $6
		FOR UPDATE SKIP LOCKED
	`, models.OutboxStatusPending, models.OutboxStatusFailed, now, models.OutboxStatusProcessing, staleBefore, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox messages: %w", err)
	}

	var candidates []*models.OutboxMessage
	for rows.Next() {
		m := &models.OutboxMessage{}
		if err := rows.Scan(&m.ID, &m.Kind, &m.Payload, &m.Status, &m.Attempts, &m.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var claimed []*models.OutboxMessage
	for _, m := range candidates {
		if maxAttempts > 0 && m.Attempts >= maxAttempts {
			msg := fmt.Sprintf("max delivery attempts exceeded (%d)", maxAttempts)
			if err := r.MarkFailed(ctx, m.ID, msg, nil, true); err != nil {
				return nil, err
			}
			continue
		}

		_, err := r.db.Exec(ctx, `
			UPDATE outbox_messages
			SET status = $1, locked_at = $2, locked_by = $3, attempts = attempts + 1, last_error = NULL, next_attempt_at = NULL
			WHERE id = $4
		`, models.OutboxStatusProcessing, now, dispatcherID, m.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock outbox message: %w", err)
		}
		m.Status = models.OutboxStatusProcessing
		m.Attempts++
		m.LockedAt = &now
		m.LockedBy = &dispatcherID
		claimed = append(claimed, m)
	}
	return claimed, nil
}

func (r *outboxRepo) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_messages
		SET status = $1, sent_at = $2, locked_at = NULL, locked_by = NULL, next_attempt_at = NULL
		WHERE id = $3
	`, models.OutboxStatusSent, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message sent: %w", err)
	}
	return nil
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, nextAttempt *time.Time, dead bool) error {
	status := models.OutboxStatusFailed
	if dead {
		status = models.OutboxStatusDead
		nextAttempt = nil
	}
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_messages
		SET status = $1, last_error = $2, next_attempt_at = $3, locked_at = NULL, locked_by = NULL
		WHERE id = $4
	`, status, lastErr, nextAttempt, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message failed: %w", err)
	}
	return nil
}
