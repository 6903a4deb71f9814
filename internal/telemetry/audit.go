package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"messaging-service/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// AuditEmitter republishes activity records on the event bus.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	AccountID     string       `json:"account_id"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	ActivityID  int64  `json:"activity_id"`
	ActionType  string `json:"action_type"`
	Description string `json:"description"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit publishes one activity record. Failures are logged and swallowed.
func (e *AuditEmitter) Emit(ctx context.Context, activity models.Activity) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "activity",
		OccurredAt:    activity.CreatedAt.UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		AccountID:     strconv.Itoa(activity.AccountID),
		Payload: AuditPayload{
			ActivityID:  activity.ID,
			ActionType:  activity.ActionType,
			Description: activity.Description,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope, nil); err != nil {
		log.Warn().Err(err).Int64("activity_id", activity.ID).Msg("audit publish failed")
	}
}
