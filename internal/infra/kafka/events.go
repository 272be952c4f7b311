package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Faik442/dotnetblueprints/internal/core/domain"
	"github.com/Faik442/dotnetblueprints/internal/core/port"
	"github.com/Faik442/dotnetblueprints/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types, also used as topic suffixes.
const (
	EventRolePermissionsChanged = "role.permissions.changed"
	EventRoleDeleted            = "role.deleted"
	EventMembershipChanged      = "membership.changed"
	EventRefreshTokenRotated    = "token.refresh.rotated"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID     string           `json:"event_id"`
	EventType   string           `json:"event_type"`
	AggregateID string           `json:"aggregate_id"`
	CompanyID   string           `json:"company_id,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Version     string           `json:"version"`
	Payload     any              `json:"payload"`
	Metadata    envelopeMetadata `json:"metadata,omitempty"`
}

// publish keys each message by aggregate id so changes to one role stay ordered.
func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, aggregateID, companyID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	bytes, err := json.Marshal(eventEnvelope{
		EventID:     eventID,
		EventType:   eventType,
		AggregateID: aggregateID,
		CompanyID:   companyID,
		Timestamp:   ts.UTC(),
		Version:     schemaVersion,
		Payload:     payload,
		Metadata:    metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(aggregateID),
		Value: sarama.ByteEncoder(bytes),
	}

	return p.producer.Send(ctx, message)
}

// PublishRolePermissionsChanged publishes role.permissions.changed events.
func (p *EventPublisher) PublishRolePermissionsChanged(ctx context.Context, event domain.RolePermissionsChangedEvent) error {
	payload := struct {
		RoleID         string    `json:"role_id"`
		PermissionKeys []string  `json:"permission_keys"`
		Added          []string  `json:"added,omitempty"`
		Removed        []string  `json:"removed,omitempty"`
		ChangedBy      string    `json:"changed_by,omitempty"`
		ChangedAt      time.Time `json:"changed_at"`
	}{
		RoleID:         event.RoleID,
		PermissionKeys: nonNil(event.PermissionKeys),
		Added:          event.Added,
		Removed:        event.Removed,
		ChangedBy:      event.ChangedBy,
		ChangedAt:      event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventRolePermissionsChanged, event.RoleID, event.CompanyID, event.ChangedAt, payload)
}

// PublishRoleDeleted publishes role.deleted events.
func (p *EventPublisher) PublishRoleDeleted(ctx context.Context, event domain.RoleDeletedEvent) error {
	payload := struct {
		RoleID    string    `json:"role_id"`
		DeletedBy string    `json:"deleted_by,omitempty"`
		DeletedAt time.Time `json:"deleted_at"`
	}{
		RoleID:    event.RoleID,
		DeletedBy: event.DeletedBy,
		DeletedAt: event.DeletedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventRoleDeleted, event.RoleID, event.CompanyID, event.DeletedAt, payload)
}

// PublishMembershipChanged publishes membership.changed events.
func (p *EventPublisher) PublishMembershipChanged(ctx context.Context, event domain.MembershipChangedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		RoleID    string    `json:"role_id"`
		Assigned  bool      `json:"assigned"`
		ChangedBy string    `json:"changed_by,omitempty"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		UserID:    event.UserID,
		RoleID:    event.RoleID,
		Assigned:  event.Assigned,
		ChangedBy: event.ChangedBy,
		ChangedAt: event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventMembershipChanged, event.UserID, event.CompanyID, event.ChangedAt, payload)
}

// PublishRefreshTokenRotated publishes token.refresh.rotated events.
func (p *EventPublisher) PublishRefreshTokenRotated(ctx context.Context, event domain.RefreshTokenRotatedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		OldJTI    string    `json:"old_jti"`
		NewJTI    string    `json:"new_jti"`
		RotatedAt time.Time `json:"rotated_at"`
	}{
		UserID:    event.UserID,
		OldJTI:    event.OldJTI,
		NewJTI:    event.NewJTI,
		RotatedAt: event.RotatedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventRefreshTokenRotated, event.UserID, "", event.RotatedAt, payload)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var _ port.EventPublisher = (*EventPublisher)(nil)
