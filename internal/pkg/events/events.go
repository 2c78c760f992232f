package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Type identifies a logical ledger event. The notification subsystem
// subscribes to these; this package never formats or delivers messages.
type Type string

const (
	TypeCredited            Type = "credited"
	TypeRefundCompleted     Type = "refund_completed"
	TypeRefundFailed        Type = "refund_failed"
	TypeAllocationDuplicate Type = "allocation_duplicate"
	TypePaymentFailed       Type = "payment_failed"
)

// Event is a logical event emitted by the settlement core.
type Event struct {
	Type       Type              `json:"type"`
	UserID     uuid.UUID         `json:"user_id"`
	PaymentID  string            `json:"payment_id,omitempty"`
	Amount     decimal.Decimal   `json:"amount,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Publisher delivers events to whatever is listening. Publish failures
// must never fail the ledger operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// RedisPublisher fans events out over a redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = "ledger.events"
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) {
	if p.client == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("event", string(e.Type)).Msg("Failed to marshal ledger event")
		return
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		log.Error().Err(err).Str("event", string(e.Type)).Msg("Failed to publish ledger event")
	}
}

// LogPublisher writes events to the log only. Used when redis is not
// configured and in tests.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, e Event) {
	log.Info().
		Str("event", string(e.Type)).
		Str("user_id", e.UserID.String()).
		Str("payment_id", e.PaymentID).
		Str("amount", e.Amount.String()).
		Msg("Ledger event")
}
