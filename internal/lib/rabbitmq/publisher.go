package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/identity-guard/internal/models"
)

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Notifier публикует биллинговые уведомления в обменник billing.
type Notifier struct {
	ch *amqp.Channel
}

// NewNotifier создает новый экземпляр Notifier.
func NewNotifier(ch *amqp.Channel) *Notifier {
	return &Notifier{ch: ch}
}

// PublishBillingNotice отправляет уведомление в очередь почтового воркера.
func (n *Notifier) PublishBillingNotice(notice models.BillingNotice) error {
	return PublishMessage(n.ch, BillingExchange, BillingNoticesKey, notice)
}
