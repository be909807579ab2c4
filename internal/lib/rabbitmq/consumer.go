package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/identity-guard/internal/lib/sl"
)

// Предел одновременно обрабатываемых сообщений одного потребителя.
const consumerConcurrency = 10

// ConsumeQueue подписывается на очередь и передает тело каждого сообщения
// в handler. Сообщение подтверждается только после успешной обработки,
// при ошибке обработчика возвращается в очередь для повторной доставки.
// Потребитель живет до отмены контекста.
func ConsumeQueue(ctx context.Context, ch *amqp.Channel, queueName string, log *slog.Logger, handler func([]byte) error) error {
	const op = "rabbitmq.ConsumeQueue"
	deliveries, err := ch.Consume(
		queueName,
		"",    // consumer tag, выбирается сервером
		false, // autoAck выключен, подтверждаем вручную
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sem := make(chan struct{}, consumerConcurrency)
	go func() {
		for {
			select {
			case d, ok := <-deliveries:
				if !ok {
					log.Info("delivery channel closed", slog.String("queue", queueName))
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					if err := handler(d.Body); err != nil {
						log.Error("message handling failed, requeueing",
							slog.String("queue", queueName), sl.Err(err))
						if nackErr := d.Nack(false, true); nackErr != nil {
							log.Error("failed to nack message", sl.Err(nackErr))
						}
						return
					}
					if ackErr := d.Ack(false); ackErr != nil {
						log.Error("failed to ack message", sl.Err(ackErr))
					}
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
