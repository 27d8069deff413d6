package outbox

import (
	"context"
	"fmt"
	"os"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/models"
	"stockledger/internal/repositories"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("stockledger/outbox")

// Handler delivers one message payload. A returned error schedules a retry.
type Handler func(ctx context.Context, payload []byte) error

// Settings tune claiming and retry behaviour
type Settings struct {
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// LockTTL is how long a PROCESSING row may stay claimed before another
	// dispatcher takes it over
	LockTTL time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		BatchSize:   50,
		MaxAttempts: 8,
		BaseBackoff: 30 * time.Second,
		MaxBackoff:  time.Hour,
		LockTTL:     5 * time.Minute,
	}
}

// Dispatcher drains queued side effects after the ledger transaction that
// produced them has committed
type Dispatcher struct {
	store    repositories.Store
	handlers map[models.OutboxKind]Handler
	settings Settings
	workerID string
	logger   *logrus.Logger
	now      func() time.Time
}

func NewDispatcher(store repositories.Store, handlers map[models.OutboxKind]Handler, settings Settings, logger *logrus.Logger) *Dispatcher {
	host, _ := os.Hostname()
	return &Dispatcher{
		store:    store,
		handlers: handlers,
		settings: settings,
		workerID: fmt.Sprintf("%s-%d-%s", host, os.Getpid(), time.Now().UTC().Format("20060102-150405.000")),
		logger:   logger,
		now:      time.Now,
	}
}

// Drain claims and delivers batches until the queue has nothing due.
// It returns the number of messages delivered.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "outbox.Drain")
	defer span.End()

	sent := 0
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		batch, err := d.claim(ctx)
		if err != nil {
			span.RecordError(err)
			return sent, err
		}
		for _, msg := range batch {
			if d.deliver(ctx, msg) {
				sent++
			}
		}
		if len(batch) < d.settings.BatchSize {
			break
		}
	}

	span.SetAttributes(attribute.Int("outbox.sent", sent))
	return sent, nil
}

func (d *Dispatcher) claim(ctx context.Context) ([]*models.OutboxMessage, error) {
	now := d.now().UTC()
	var batch []*models.OutboxMessage
	err := d.store.WithinTx(ctx, func(tx repositories.Store) error {
		var err error
		batch, err = tx.Outbox().Claim(ctx, d.workerID, d.settings.BatchSize, d.settings.MaxAttempts, now, now.Add(-d.settings.LockTTL))
		return err
	})
	return batch, err
}

func (d *Dispatcher) deliver(ctx context.Context, msg *models.OutboxMessage) bool {
	outbox := d.store.Outbox()
	handler, ok := d.handlers[msg.Kind]
	if !ok {
		d.fail(ctx, msg, fmt.Errorf("no handler for outbox kind %s", msg.Kind), true)
		return false
	}

	if err := handler(ctx, msg.Payload); err != nil {
		d.fail(ctx, msg, err, msg.Attempts >= d.settings.MaxAttempts)
		return false
	}

	if err := outbox.MarkSent(ctx, msg.ID, d.now().UTC()); err != nil {
		config.LogError(d.logger, "outbox/dispatcher.go", "deliver", "mark message sent", msg.ID, err)
	}
	return true
}

func (d *Dispatcher) fail(ctx context.Context, msg *models.OutboxMessage, cause error, dead bool) {
	var next *time.Time
	if !dead {
		at := d.now().UTC().Add(d.Backoff(msg.Attempts))
		next = &at
	}

	fields := logrus.Fields{
		"module":    "outbox",
		"record_id": msg.ID,
		"kind":      msg.Kind,
		"attempts":  msg.Attempts,
	}
	if dead {
		d.logger.WithFields(fields).Error("outbox message is dead: " + cause.Error())
	} else {
		d.logger.WithFields(fields).Warn("outbox delivery failed: " + cause.Error())
	}

	if err := d.store.Outbox().MarkFailed(ctx, msg.ID, cause.Error(), next, dead); err != nil {
		config.LogError(d.logger, "outbox/dispatcher.go", "fail", "mark message failed", msg.ID, err)
	}
}

// Backoff doubles from BaseBackoff per attempt, capped at MaxBackoff
func (d *Dispatcher) Backoff(attempts int) time.Duration {
	wait := d.settings.BaseBackoff
	for i := 1; i < attempts; i++ {
		wait *= 2
		if wait >= d.settings.MaxBackoff {
			return d.settings.MaxBackoff
		}
	}
	return wait
}
