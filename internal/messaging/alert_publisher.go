package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockledger/internal/domain/model"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AlertPublisher は commit 済みのアラートを stock.alerts に流す。
// key は商品ID（同じ商品のアラートは同じパーティションに並ぶ）。
type AlertPublisher struct {
	writer messageWriter
}

func NewAlertPublisher(brokers []string, topic string) *AlertPublisher {
	return newAlertPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	})
}

func newAlertPublisher(w messageWriter) *AlertPublisher {
	return &AlertPublisher{writer: w}
}

func (p *AlertPublisher) PublishAlerts(ctx context.Context, alerts []model.StockAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(alerts))
	for _, a := range alerts {
		value, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode alert %s: %w", a.ID, err)
		}
		msg := kafka.Message{Key: []byte(a.ProductID), Value: value}
		otel.GetTextMapPropagator().Inject(ctx, headerCarrier{headers: &msg.Headers})
		msgs = append(msgs, msg)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d alerts: %w", len(msgs), err)
	}
	return nil
}

func (p *AlertPublisher) Close() error {
	return p.writer.Close()
}
