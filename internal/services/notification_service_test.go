package services

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	"stockledger/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureMailer struct {
	sent []*gomail.Message
	err  error
}

func (m *captureMailer) DialAndSend(msgs ...*gomail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msgs...)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sampleNotice() models.ScrapNotice {
	return models.ScrapNotice{
		ApprovalID:    uuid.New(),
		Kind:          models.ApprovalKindInventory,
		ItemCode:      "CBL-001",
		ItemName:      "Copper cable",
		PlantName:     "Plant A",
		Quantity:      5,
		RequesterName: "Operator",
		ApproverName:  "North Manager",
	}
}

func TestNotificationRender(t *testing.T) {
	svc := NewNotificationService(newMemStore().Outbox(), SMTPSettings{}, nil, quietLogger())

	tests := []struct {
		kind    models.NotificationKind
		subject string
		body    string
	}{
		{models.NotificationScrapRequest, "New Scrap Request for CBL-001", "Requested by</td><td>Operator"},
		{models.NotificationScrapApproved, "Approved: Your Scrap Request for CBL-001", "was approved by North Manager"},
		{models.NotificationScrapRejected, "Rejected: Your Scrap Request for CBL-001", "was rejected by North Manager"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			subject, body, err := svc.Render(&models.Notification{Kind: tt.kind, Payload: sampleNotice()})
			require.NoError(t, err)
			assert.Equal(t, tt.subject, subject)
			assert.Contains(t, body, tt.body)
		})
	}

	_, _, err := svc.Render(&models.Notification{Kind: "PASSWORD_RESET"})
	assert.Error(t, err)
}

func TestNotify_QueuesOutboxMessage(t *testing.T) {
	store := newMemStore()
	svc := NewNotificationService(store.Outbox(), SMTPSettings{}, nil, quietLogger())

	require.NoError(t, svc.Notify(t.Context(), "north.manager@example.com", models.NotificationScrapRequest, sampleNotice()))

	queued := store.Outbox().(memOutbox).messages(models.OutboxKindNotification)
	require.Len(t, queued, 1)
	var n models.Notification
	require.NoError(t, json.Unmarshal(queued[0].Payload, &n))
	assert.Equal(t, "north.manager@example.com", n.Recipient)
	assert.Equal(t, models.NotificationScrapRequest, n.Kind)
	assert.Equal(t, int64(5), n.Payload.Quantity)
}

func TestNotify_RejectsBadInput(t *testing.T) {
	store := newMemStore()
	svc := NewNotificationService(store.Outbox(), SMTPSettings{}, nil, quietLogger())

	assert.Error(t, svc.Notify(t.Context(), "", models.NotificationScrapRequest, sampleNotice()))
	assert.Error(t, svc.Notify(t.Context(), "a@example.com", "UNKNOWN", sampleNotice()))
	assert.Empty(t, store.Outbox().(memOutbox).messages(models.OutboxKindNotification))
}

func TestDeliver(t *testing.T) {
	payload, err := json.Marshal(&models.Notification{
		Kind:      models.NotificationScrapApproved,
		Recipient: "operator@example.com",
		Payload:   sampleNotice(),
	})
	require.NoError(t, err)

	t.Run("sends through the mailer", func(t *testing.T) {
		mailer := &captureMailer{}
		svc := NewNotificationService(newMemStore().Outbox(), SMTPSettings{From: "stock@example.com"}, mailer, quietLogger())

		require.NoError(t, svc.Deliver(t.Context(), payload))
		require.Len(t, mailer.sent, 1)
		assert.Equal(t, []string{"operator@example.com"}, mailer.sent[0].GetHeader("To"))
		assert.Equal(t, []string{"stock@example.com"}, mailer.sent[0].GetHeader("From"))
		assert.Equal(t, []string{"Approved: Your Scrap Request for CBL-001"}, mailer.sent[0].GetHeader("Subject"))
	})

	t.Run("mailer failure is returned for retry", func(t *testing.T) {
		mailer := &captureMailer{err: errors.New("connection refused")}
		svc := NewNotificationService(newMemStore().Outbox(), SMTPSettings{}, mailer, quietLogger())

		err := svc.Deliver(t.Context(), payload)
		assert.ErrorContains(t, err, "operator@example.com")
	})

	t.Run("dropped without smtp", func(t *testing.T) {
		svc := NewNotificationService(newMemStore().Outbox(), SMTPSettings{}, nil, quietLogger())
		assert.NoError(t, svc.Deliver(t.Context(), payload))
	})

	t.Run("bad payload", func(t *testing.T) {
		svc := NewNotificationService(newMemStore().Outbox(), SMTPSettings{}, nil, quietLogger())
		assert.Error(t, svc.Deliver(t.Context(), []byte("{")))
	})
}
