package port

import (
	"context"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishRolePermissionsChanged(ctx context.Context, event domain.RolePermissionsChangedEvent) error
	PublishRoleDeleted(ctx context.Context, event domain.RoleDeletedEvent) error
	PublishMembershipChanged(ctx context.Context, event domain.MembershipChangedEvent) error
	PublishRefreshTokenRotated(ctx context.Context, event domain.RefreshTokenRotatedEvent) error
}
