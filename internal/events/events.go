// Package events publishes EMI, bill and card lifecycle events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Routing keys
const (
	EMICreated   = "emi.created"
	EMIPaid      = "emi.paid"
	EMICompleted = "emi.completed"
	EMICancelled = "emi.cancelled"
	EMIDefaulted = "emi.defaulted"
	BillPaid     = "bill.paid"
	BillOverdue  = "bill.overdue"
	CardBlocked  = "card.blocked"
)

// EMIEvent is the body of every emi.* message
type EMIEvent struct {
	EMIID      string    `json:"emi_id"`
	UserID     int64     `json:"user_id"`
	CardID     int64     `json:"card_id"`
	Status     string    `json:"status"`
	Amount     float64   `json:"amount,omitempty"`
	Remaining  float64   `json:"remaining_amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BillEvent is the body of every bill.* message
type BillEvent struct {
	BillID     string    `json:"bill_id"`
	UserID     int64     `json:"user_id"`
	CardID     int64     `json:"card_id"`
	Status     string    `json:"status"`
	Amount     float64   `json:"amount,omitempty"`
	Remaining  float64   `json:"remaining_amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CardEvent is the body of card.* messages
type CardEvent struct {
	CardID     string    `json:"card_id"`
	UserID     int64     `json:"user_id"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher sends JSON events to a topic exchange
type Publisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	log      *logrus.Logger
}

// NewPublisher connects to url and declares a durable topic exchange
func NewPublisher(url, exchange string, log *logrus.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: channel, exchange: exchange, log: log}, nil
}

// Publish marshals payload and sends it under routingKey
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	p.log.WithFields(logrus.Fields{
		"exchange":    p.exchange,
		"routing_key": routingKey,
	}).Debug("Published event")
	return nil
}

// Close releases the channel and connection
func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Nop discards events; used when AMQP_URL is unset
type Nop struct{}

// Publish does nothing
func (Nop) Publish(context.Context, string, any) error { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	Events []Recorded
}

// Recorded is one event captured by a Recorder
type Recorded struct {
	RoutingKey string
	Payload    any
}

// Publish appends the event
func (r *Recorder) Publish(_ context.Context, routingKey string, payload any) error {
	r.Events = append(r.Events, Recorded{RoutingKey: routingKey, Payload: payload})
	return nil
}

// Keys lists the routing keys recorded so far
func (r *Recorder) Keys() []string {
	keys := make([]string, len(r.Events))
	for i, e := range r.Events {
		keys[i] = e.RoutingKey
	}
	return keys
}
