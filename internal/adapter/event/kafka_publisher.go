package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ptnguyen/checkout/internal/core/domain"
)

const (
	TypeOrderCreated   = "order.created"
	TypeOrderCancelled = "order.cancelled"
)

// OrderEvent is the wire shape published for order lifecycle changes.
type OrderEvent struct {
	Type        string           `json:"type"`
	OrderID     string           `json:"order_id"`
	UserID      string           `json:"user_id"`
	TotalAmount string           `json:"total_amount"`
	Status      string           `json:"status"`
	Items       []OrderEventItem `json:"items"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

type OrderEventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// KafkaPublisher writes order events to a single topic, keyed by order ID.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokersCSV, topic string) *KafkaPublisher {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) OrderCreated(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, TypeOrderCreated, order)
}

func (p *KafkaPublisher) OrderCancelled(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, TypeOrderCancelled, order)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType string, order *domain.Order) error {
	ev := OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount.String(),
		Status:      string(order.Status),
		OccurredAt:  time.Now().UTC(),
	}
	for _, item := range order.Items {
		ev.Items = append(ev.Items, OrderEventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
		})
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.ID),
		Value: data,
		Time:  ev.OccurredAt,
	})
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) OrderCreated(context.Context, *domain.Order) error   { return nil }
func (NoopPublisher) OrderCancelled(context.Context, *domain.Order) error { return nil }
