package rabbitmq

// BillingExchange — обменник биллинговых уведомлений.
const BillingExchange = "billing"

// Очередь и ключ маршрутизации для почтовых уведомлений.
const (
	BillingNoticesQueue = "billing.notices"
	BillingNoticesKey   = "notices"
)

// QueueConfig описывает очередь и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetBillingQueues возвращает очереди, которые читает воркер отправки писем.
func GetBillingQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: BillingNoticesQueue, RoutingKey: BillingNoticesKey},
	}
}
