package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Exchange is the topic exchange carrying ledger events.
const Exchange = "ledger_events"

// BalanceRoutingKey routes balance-changed events to the audit pipeline.
const BalanceRoutingKey = "balance.changed"

// Publisher pushes events onto a durable topic exchange. It backs the
// dispatcher-to-broker bridge; publish failures are logged by callers and
// never affect committed mutations.
type Publisher struct {
	channel *amqp.Channel
}

func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{channel: ch}
}

// DeclareExchange makes sure the topic exchange exists. Idempotent.
func DeclareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	bytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         bytes,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	log.Debug().Str("routing_key", routingKey).Msg("event published")
	return nil
}
