// Package events publishes order lifecycle events to RabbitMQ for
// downstream consumers (admin dashboards, analytics). Publishing happens
// inline with request handling and is strictly best-effort: no consumer
// runs in this process and a broker outage never fails an order.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

type OrderEventType string

const (
	OrderCreated         OrderEventType = "order.created"
	OrderConfirmed       OrderEventType = "order.confirmed"
	OrderShipped         OrderEventType = "order.shipped"
	OrderCancelled       OrderEventType = "order.cancelled"
	OrderTrackingUpdated OrderEventType = "order.tracking.updated"
)

type OrderEvent struct {
	ID        uuid.UUID      `json:"id"`
	OrderID   uuid.UUID      `json:"order_id"`
	EventType OrderEventType `json:"event_type"`
	Payload   interface{}    `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publisher emits order events. A nil *Publisher is valid and drops
// events, so the orchestrator can be wired without a broker.
type Publisher struct {
	client *RabbitMQClient
}

func NewPublisher(client *RabbitMQClient) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) PublishOrderEvent(eventType OrderEventType, orderID uuid.UUID, payload interface{}) error {
	if p == nil || p.client == nil {
		return nil
	}
	if !p.client.IsConnected() {
		return fmt.Errorf("no connection to RabbitMQ")
	}

	event := OrderEvent{
		ID:        uuid.New(),
		OrderID:   orderID,
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("event serialization error: %v", err)
	}

	err = p.client.Channel().Publish(
		p.client.config.Exchange,
		string(eventType),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID.String(),
			Timestamp:    event.Timestamp,
			Headers: amqp.Table{
				"order_id":   orderID.String(),
				"event_type": string(eventType),
			},
		},
	)
	if err != nil {
		return fmt.Errorf("event publish error: %v", err)
	}

	log.Printf("Event published: %s for order %s", eventType, orderID)
	return nil
}
