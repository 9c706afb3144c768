package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/events"
)

// AuditService writes an audit log line for authentication events.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleLoginSucceeded)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginFailed)
	a.dispatcher.Subscribe(events.EventUserCreated, a.handleUserCreated)
}

func (a *AuditService) handleLoginSucceeded(_ context.Context, event events.Event) error {
	a.logger.Info("LoginSucceeded", eventFields(event)...)
	return nil
}

func (a *AuditService) handleLoginFailed(_ context.Context, event events.Event) error {
	a.logger.Warn("LoginFailed", eventFields(event)...)
	return nil
}

func (a *AuditService) handleUserCreated(_ context.Context, event events.Event) error {
	a.logger.Info("UserCreated", eventFields(event)...)
	return nil
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("subject", event.Subject),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload),
	}
}
