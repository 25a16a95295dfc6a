package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/service"
)

// Sink delivers one notification.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, note service.Notification) error
}

// NotificationWorker drains a bounded queue of notifications into sinks on a
// fixed pool of goroutines.
type NotificationWorker struct {
	queue   chan service.Notification
	sinks   []Sink
	workers int
	logger  *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

var _ service.NotificationQueue = (*NotificationWorker)(nil)

// NewNotificationWorker builds a worker. Call Start before enqueueing.
func NewNotificationWorker(cfg config.NotificationConfig, logger *zap.Logger, sinks ...Sink) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &NotificationWorker{
		queue:   make(chan service.Notification, size),
		sinks:   sinks,
		workers: workers,
		logger:  logger,
	}
}

// Start launches the delivery goroutines. They exit after Stop drains the
// queue.
func (w *NotificationWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for note := range w.queue {
				w.deliver(ctx, note)
			}
		}()
	}
	w.logger.Info("notification worker started", zap.Int("workers", w.workers), zap.Int("sinks", len(w.sinks)))
}

// Enqueue hands a notification to the pool without blocking.
func (w *NotificationWorker) Enqueue(note service.Notification) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return false
	}
	select {
	case w.queue <- note:
		return true
	default:
		return false
	}
}

// Stop rejects new notifications and waits for queued ones to be delivered.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *NotificationWorker) deliver(ctx context.Context, note service.Notification) {
	for _, sink := range w.sinks {
		if err := sink.Deliver(ctx, note); err != nil {
			w.logger.Warn("notification delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("event_id", note.EventID),
				zap.Error(err))
		}
	}
}

// LogSink writes notifications to the service log.
type LogSink struct {
	Logger *zap.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Deliver(_ context.Context, note service.Notification) error {
	s.Logger.Info("ticket notification",
		zap.String("type", string(note.Type)),
		zap.String("ticket_id", note.TicketID),
		zap.String("jira_id", note.JiraID),
		zap.String("summary", note.Summary))
	return nil
}

// WebhookSink POSTs each notification as JSON to a fixed URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink returns a sink posting to url with the given timeout.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{url: url, client: &http.Client{Timeout: timeout}}
}

func (*WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, note service.Notification) error {
	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Triage-Event", string(note.Type))

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

// SinksFor returns the sinks enabled by cfg. The log sink is always present.
func SinksFor(cfg config.NotificationConfig, logger *zap.Logger) []Sink {
	sinks := []Sink{LogSink{Logger: logger}}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhookSink(cfg.WebhookURL, cfg.WebhookTimeout()))
	}
	return sinks
}
