package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/events"
)

// Notification is the delivery-ready form of a ticket event.
type Notification struct {
	EventID    string           `json:"event_id"`
	Type       events.EventType `json:"type"`
	TicketID   string           `json:"ticket_id"`
	JiraID     string           `json:"jira_id"`
	Actor      string           `json:"actor,omitempty"`
	Summary    string           `json:"summary"`
	OccurredAt time.Time        `json:"occurred_at"`
	Payload    any              `json:"payload,omitempty"`
}

// NotificationQueue accepts notifications for asynchronous delivery. Enqueue
// must not block; it reports false when the notification was dropped.
type NotificationQueue interface {
	Enqueue(Notification) bool
}

// NotificationService turns ticket events into notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      NotificationQueue
	logger     *zap.Logger
}

// NewNotificationService wires the service between dispatcher and queue.
func NewNotificationService(dispatcher events.Dispatcher, queue NotificationQueue, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{dispatcher: dispatcher, queue: queue, logger: logger}
}

// RegisterHandlers subscribes to every ticket event and returns a function
// that removes the subscriptions.
func (n *NotificationService) RegisterHandlers() func() {
	if n.dispatcher == nil {
		return func() {}
	}
	unsubs := []func(){
		n.dispatcher.Subscribe(events.EventTicketImported, n.handle),
		n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handle),
		n.dispatcher.Subscribe(events.EventTicketCommentAdded, n.handle),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (n *NotificationService) handle(_ context.Context, event events.Event) error {
	note := Notification{
		EventID:    event.ID,
		Type:       event.Type,
		TicketID:   event.TicketID,
		JiraID:     event.JiraID,
		Actor:      event.Actor.Username,
		Summary:    Summarize(event),
		OccurredAt: event.Timestamp,
		Payload:    event.Payload,
	}
	if n.queue == nil {
		n.logger.Info("ticket event", zap.String("type", string(event.Type)), zap.String("summary", note.Summary))
		return nil
	}
	if !n.queue.Enqueue(note) {
		n.logger.Warn("notification dropped; queue full",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)))
	}
	return nil
}

// Summarize renders a one-line, human-readable description of event.
func Summarize(event events.Event) string {
	key := event.JiraID
	if key == "" {
		key = event.TicketID
	}
	who := event.Actor.Username
	if who == "" {
		who = "someone"
	}
	switch p := event.Payload.(type) {
	case events.TicketImportedPayload:
		if !p.Created {
			return fmt.Sprintf("%s refreshed from Jira: %s", key, p.Title)
		}
		return fmt.Sprintf("%s imported from Jira: %s", key, p.Title)
	case events.TicketStatusChangedPayload:
		return fmt.Sprintf("%s moved from %q to %q by %s", key, p.OldStatus, p.NewStatus, who)
	case events.TicketCommentAddedPayload:
		return fmt.Sprintf("%s commented on %s: %s", who, key, p.BodyPreview)
	default:
		return fmt.Sprintf("%s: %s", key, event.Type)
	}
}
