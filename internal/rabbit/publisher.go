package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"agriconecta-api/internal/notify"

	"github.com/rabbitmq/amqp091-go"
)

var ErrNotConfirmed = errors.New("rabbit: message not confirmed by broker")

// Publisher publica notificaciones en el exchange con publisher confirms.
// Un canal AMQP no es seguro para uso concurrente, de ahí el mutex.
type Publisher struct {
	mu       sync.Mutex
	ch       *amqp091.Channel
	exchange string
}

func NewPublisher(ch *amqp091.Channel) (*Publisher, error) {
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("rabbit: enable confirms: %w", err)
	}
	return &Publisher{ch: ch, exchange: NotificationsExchange}, nil
}

func (p *Publisher) Publish(ctx context.Context, n notify.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	p.mu.Lock()
	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, n.Kind.RoutingKey(), false, false, buildMessage(n, body))
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("rabbit: publish: %w", err)
	}

	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}

func buildMessage(n notify.Notification, body []byte) amqp091.Publishing {
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    n.ID,
		Timestamp:    n.CreatedAt,
		Type:         string(n.Kind),
		Body:         body,
	}
}
