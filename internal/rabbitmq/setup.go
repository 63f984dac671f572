package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Exchange — общий direct-обменник задач доставки.
const Exchange = "deliveries"

// Очереди и ключи маршрутизации задач доставки. Задачи раскладываются
// по транспорту, исчерпавшие попытки уходят в мёртвую очередь.
const (
	QueueEmail    = "delivery.email"
	QueueWhatsapp = "delivery.whatsapp"
	QueueDead     = "delivery.dead"

	RoutingKeyEmail    = "email"
	RoutingKeyWhatsapp = "whatsapp"
	RoutingKeyDead     = "dead"
)

// QueueConfig связывает очередь с ключом маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// DeliveryQueues возвращает полный набор очередей доставки.
func DeliveryQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueEmail, RoutingKey: RoutingKeyEmail},
		{QueueName: QueueWhatsapp, RoutingKey: RoutingKeyWhatsapp},
		{QueueName: QueueDead, RoutingKey: RoutingKeyDead},
	}
}

// SetupChannel открывает канал, объявляет обменник и привязывает очереди.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	err = ch.ExchangeDeclare(
		Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}

		err = ch.QueueBind(
			q.QueueName,
			q.RoutingKey,
			Exchange,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
