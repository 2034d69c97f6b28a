// setup.go
package rabbit

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const (
	NotificationsExchange = "agriconecta.notifications"
	DeadLetterExchange    = "agriconecta.notifications.dlx"
	EmailQueue            = "agriconecta.notifications.email"
	DeadQueue             = "agriconecta.notifications.dead"
)

// DeclareTopology crea exchanges y colas de notificaciones. Es idempotente.
func DeclareTopology(ch *amqp091.Channel) error {
	// 1. Exchange principal (topic: order.created, order.status_changed)
	if err := ch.ExchangeDeclare(NotificationsExchange, amqp091.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", NotificationsExchange, err)
	}

	// 2. Dead-letter exchange (fanout ignora routing key)
	if err := ch.ExchangeDeclare(DeadLetterExchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", DeadLetterExchange, err)
	}

	// 3. Cola de email; los Nack sin requeue van al DLX
	q, err := ch.QueueDeclare(EmailQueue, true, false, false, false, amqp091.Table{
		"x-dead-letter-exchange": DeadLetterExchange,
	})
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", EmailQueue, err)
	}
	if err := ch.QueueBind(q.Name, "order.#", NotificationsExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", EmailQueue, err)
	}

	// 4. Cola de muertos
	dead, err := ch.QueueDeclare(DeadQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", DeadQueue, err)
	}
	if err := ch.QueueBind(dead.Name, "", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", DeadQueue, err)
	}
	return nil
}
