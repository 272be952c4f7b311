package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when
// kafka.enabled is false.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, aggregateID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	p.logger.Info("Stub event published", append([]zap.Field{
		zap.String("event_type", eventType),
		zap.String("aggregate_id", aggregateID),
		zap.Time("timestamp", at.UTC()),
	}, fields...)...)
}

func (p *StubPublisher) PublishRolePermissionsChanged(_ context.Context, event domain.RolePermissionsChangedEvent) error {
	p.logEvent(EventRolePermissionsChanged, event.RoleID, event.ChangedAt,
		zap.String("company_id", event.CompanyID),
		zap.Strings("permission_keys", event.PermissionKeys),
		zap.Strings("added", event.Added),
		zap.Strings("removed", event.Removed),
	)
	return nil
}

func (p *StubPublisher) PublishRoleDeleted(_ context.Context, event domain.RoleDeletedEvent) error {
	p.logEvent(EventRoleDeleted, event.RoleID, event.DeletedAt, zap.String("company_id", event.CompanyID))
	return nil
}

func (p *StubPublisher) PublishMembershipChanged(_ context.Context, event domain.MembershipChangedEvent) error {
	p.logEvent(EventMembershipChanged, event.UserID, event.ChangedAt,
		zap.String("company_id", event.CompanyID),
		zap.String("role_id", event.RoleID),
		zap.Bool("assigned", event.Assigned),
	)
	return nil
}

func (p *StubPublisher) PublishRefreshTokenRotated(_ context.Context, event domain.RefreshTokenRotatedEvent) error {
	p.logEvent(EventRefreshTokenRotated, event.UserID, event.RotatedAt,
		zap.String("old_jti", event.OldJTI),
		zap.String("new_jti", event.NewJTI),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
