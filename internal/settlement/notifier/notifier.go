// Пакет notifier публикует события о выплате дохода во внешнюю очередь.
// Потребители (push-уведомления и т.п.) вне рамок сервиса
package notifier

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Event struct {
	Customer  string    `json:"customer"`
	Order     string    `json:"order"`
	Credited  int       `json:"credited"`
	Days      int       `json:"days"`
	SettledAt time.Time `json:"settled_at"`
}

type Publisher interface {
	SettlementPublished(ctx context.Context, event Event) error
	Close() error
}

const exchangeName = "settlement.events"

type amqpPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewAMQPPublisher(uri string) (Publisher, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	err = channel.ExchangeDeclare(exchangeName, "fanout", true, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &amqpPublisher{conn: conn, channel: channel}, nil
}

func (p *amqpPublisher) SettlementPublished(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, exchangeName, "", false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
}

func (p *amqpPublisher) Close() error {
	return p.conn.Close()
}

// NewNopPublisher - заглушка, когда очередь не настроена
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

type nopPublisher struct{}

func (nopPublisher) SettlementPublished(context.Context, Event) error { return nil }
func (nopPublisher) Close() error                                     { return nil }
