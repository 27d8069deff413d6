package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"

	"stockledger/internal/models"
	"stockledger/internal/repositories"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// NotificationService sends scrap workflow emails. Notify only queues the
// message; Deliver is run by the outbox dispatcher.
type NotificationService interface {
	Notify(ctx context.Context, recipient string, kind models.NotificationKind, payload models.ScrapNotice) error
	Deliver(ctx context.Context, payload []byte) error
	Render(n *models.Notification) (subject, body string, err error)
}

// SMTPSettings configures outgoing mail. An empty Host disables delivery.
type SMTPSettings struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Mailer is satisfied by *gomail.Dialer
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type notificationService struct {
	outbox    repositories.OutboxRepository
	smtp      SMTPSettings
	mailer    Mailer
	templates map[models.NotificationKind]*template.Template
	logger    *logrus.Logger
}

var notificationSubjects = map[models.NotificationKind]string{
	models.NotificationScrapRequest:  "New Scrap Request for %s",
	models.NotificationScrapApproved: "Approved: Your Scrap Request for %s",
	models.NotificationScrapRejected: "Rejected: Your Scrap Request for %s",
}

var notificationBodies = map[models.NotificationKind]string{
	models.NotificationScrapRequest: `<p>A scrap request needs your approval.</p>
<table>
<tr><td>Item</td><td>{{.ItemCode}} {{.ItemName}}</td></tr>
<tr><td>Plant</td><td>{{.PlantName}}</td></tr>
<tr><td>Quantity</td><td>{{.Quantity}}</td></tr>
<tr><td>Requested by</td><td>{{.RequesterName}}</td></tr>
</table>
<p>Request ID: {{.ApprovalID}}</p>`,
	models.NotificationScrapApproved: `<p>Your scrap request for {{.ItemCode}} at {{.PlantName}} was approved by {{.ApproverName}}.</p>
<p>Quantity: {{.Quantity}}</p>`,
	models.NotificationScrapRejected: `<p>Your scrap request for {{.ItemCode}} at {{.PlantName}} was rejected by {{.ApproverName}}.</p>
<p>Quantity: {{.Quantity}}</p>`,
}

// NewNotificationService creates a new notification service. mailer may be
// nil, in which case a gomail dialer is built from smtp.
func NewNotificationService(outbox repositories.OutboxRepository, smtp SMTPSettings, mailer Mailer, logger *logrus.Logger) NotificationService {
	if mailer == nil && smtp.Host != "" {
		mailer = gomail.NewDialer(smtp.Host, smtp.Port, smtp.User, smtp.Password)
	}

	templates := make(map[models.NotificationKind]*template.Template, len(notificationBodies))
	for kind, body := range notificationBodies {
		templates[kind] = template.Must(template.New(string(kind)).Parse(body))
	}

	return &notificationService{
		outbox:    outbox,
		smtp:      smtp,
		mailer:    mailer,
		templates: templates,
		logger:    logger,
	}
}

func (s *notificationService) Notify(ctx context.Context, recipient string, kind models.NotificationKind, payload models.ScrapNotice) error {
	if recipient == "" {
		return fmt.Errorf("notification %s has no recipient", kind)
	}
	if _, ok := s.templates[kind]; !ok {
		return fmt.Errorf("unsupported notification kind: %s", kind)
	}

	data, err := json.Marshal(&models.Notification{Kind: kind, Recipient: recipient, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	_, err = s.outbox.Enqueue(ctx, models.OutboxKindNotification, data)
	return err
}

// Deliver sends one queued notification. Without SMTP settings the message
// is logged and dropped.
func (s *notificationService) Deliver(ctx context.Context, payload []byte) error {
	var n models.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return fmt.Errorf("failed to decode notification: %w", err)
	}

	subject, body, err := s.Render(&n)
	if err != nil {
		return err
	}

	if s.mailer == nil {
		s.logger.WithFields(logrus.Fields{
			"module":    "notification",
			"recipient": n.Recipient,
			"subject":   subject,
		}).Warn("SMTP is not configured, dropping notification")
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.smtp.From)
	msg.SetHeader("To", n.Recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := s.mailer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", n.Recipient, err)
	}

	s.logger.WithFields(logrus.Fields{
		"module":    "notification",
		"recipient": n.Recipient,
		"kind":      n.Kind,
	}).Info("Notification sent")
	return nil
}

func (s *notificationService) Render(n *models.Notification) (string, string, error) {
	tmpl, ok := s.templates[n.Kind]
	if !ok {
		return "", "", fmt.Errorf("unsupported notification kind: %s", n.Kind)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, n.Payload); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}
	return fmt.Sprintf(notificationSubjects[n.Kind], n.Payload.ItemCode), body.String(), nil
}
