package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-shop-service/internal/config"
	"github.com/spec-kit/repair-shop-service/internal/events"
)

const (
	auditQueueSize      = 256
	auditWebhookTimeout = 5 * time.Second
)

// AuditService records user lifecycle events. Soft-deleted users keep their
// record, so the audit trail is what explains how an account got disabled.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.AuditConfig
	client     *http.Client
	outbox     chan events.Event
}

// NewAuditService creates the service. Events are forwarded to the webhook
// only when one is configured.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.AuditConfig) *AuditService {
	a := &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
	if strings.TrimSpace(cfg.WebhookURL) != "" {
		a.client = &http.Client{Timeout: auditWebhookTimeout}
		a.outbox = make(chan events.Event, auditQueueSize)
	}
	return a
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil || !a.cfg.Enabled {
		return
	}
	a.dispatcher.Subscribe(events.EventUserCreated, a.handleUserCreated)
	a.dispatcher.Subscribe(events.EventUserUpdated, a.handleUserUpdated)
	a.dispatcher.Subscribe(events.EventUserDisabled, a.handleUserDisabled)
}

func (a *AuditService) handleUserCreated(_ context.Context, event events.Event) error {
	a.logger.Info("UserCreated", a.fields(event)...)
	a.enqueue(event)
	return nil
}

func (a *AuditService) handleUserUpdated(_ context.Context, event events.Event) error {
	a.logger.Info("UserUpdated", a.fields(event)...)
	a.enqueue(event)
	return nil
}

func (a *AuditService) handleUserDisabled(_ context.Context, event events.Event) error {
	a.logger.Warn("UserDisabled", a.fields(event)...)
	a.enqueue(event)
	return nil
}

func (a *AuditService) fields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("user_id", event.UserID),
		zap.String("actor_id", event.Actor.ID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload),
	}
}

// enqueue never blocks the request that produced the event; a full queue
// drops the event and says so.
func (a *AuditService) enqueue(event events.Event) {
	if a.outbox == nil {
		return
	}
	select {
	case a.outbox <- event:
	default:
		a.logger.Warn("audit webhook queue full; event dropped",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
	}
}

// DeliverWebhooks posts queued events to the webhook until ctx is done.
func (a *AuditService) DeliverWebhooks(ctx context.Context) {
	if a.outbox == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-a.outbox:
			if err := a.postEvent(ctx, event); err != nil {
				a.logger.Warn("audit webhook delivery failed",
					zap.String("event_id", event.ID),
					zap.String("event_type", string(event.Type)),
					zap.Error(err))
			}
		}
	}
}

func (a *AuditService) postEvent(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post event: unexpected status %d", resp.StatusCode)
	}
	return nil
}
