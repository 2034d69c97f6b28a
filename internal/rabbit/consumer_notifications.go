package rabbit

import (
	"context"
	"encoding/json"
	"fmt"

	"agriconecta-api/internal/notify"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Delivery es lo mínimo que el consumer necesita de un mensaje AMQP.
type Delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// NotificationConsumer lee la cola de email y entrega cada notificación al handler.
type NotificationConsumer struct {
	handler notify.Publisher
	retry   notify.RetryPolicy
	logger  *zap.Logger
}

func NewNotificationConsumer(handler notify.Publisher, retry notify.RetryPolicy, logger *zap.Logger) *NotificationConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationConsumer{
		handler: handler,
		retry:   retry,
		logger:  logger.With(zap.String("component", "rabbit.consumer")),
	}
}

// Handle procesa un mensaje. Lo que no se puede entregar se descarta con Nack sin requeue
// y el broker lo enruta al DLX.
func (c *NotificationConsumer) Handle(ctx context.Context, d Delivery, body []byte) error {
	var n notify.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		c.logger.Error("invalid notification payload", zap.Error(err))
		return d.Nack(false, false)
	}

	logger := c.logger.With(zap.String("notification_id", n.ID), zap.String("order_id", n.OrderID))
	attempts, err := c.retry.Do(ctx, func(ctx context.Context) error {
		return c.handler.Publish(ctx, n)
	})
	if err != nil {
		logger.Error("notification failed, sending to dead-letter", zap.Int("attempts", attempts), zap.Error(err))
		return d.Nack(false, false)
	}
	logger.Info("notification sent", zap.Int("attempts", attempts))
	return d.Ack(false)
}

// Consume se suscribe a la cola de email con ack manual hasta que ctx termine.
func (c *NotificationConsumer) Consume(ctx context.Context, ch *amqp091.Channel, prefetch int) error {
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("rabbit: qos: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, EmailQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbit: consume %s: %w", EmailQueue, err)
	}

	go func() {
		for m := range msgs {
			if err := c.Handle(ctx, m, m.Body); err != nil {
				c.logger.Error("ack failed", zap.Error(err))
			}
		}
		c.logger.Info("consumer stopped")
	}()

	c.logger.Info("subscribed", zap.String("queue", EmailQueue))
	return nil
}
