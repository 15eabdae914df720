package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stockledger/internal/metrics"
	"stockledger/internal/usecase"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// 注文ワークフローから届くイベント種別
type OrderEventType string

const (
	EventPaymentSucceeded OrderEventType = "payment_succeeded"
	EventPaymentFailed    OrderEventType = "payment_failed"
	EventOrderCanceled    OrderEventType = "order_canceled"
)

var ErrMalformedEvent = errors.New("malformed order event")

// orders.lifecycle のメッセージ本文
type OrderEvent struct {
	Type    OrderEventType      `json:"type"`
	OrderID string              `json:"order_id"`
	Items   []usecase.StockItem `json:"items"`
}

// イベントから呼ぶ在庫操作（*usecase.InventoryUsecase が満たす）
type ReservationService interface {
	Release(ctx context.Context, items []usecase.StockItem, orderID string) error
	Confirm(ctx context.Context, orderID string) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// 一時的な失敗（競合・DB障害）のやり直し設定
type EventRetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultEventRetryPolicy() EventRetryPolicy {
	return EventRetryPolicy{
		MaxTries:        8,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// OrderConsumer は決済結果・キャンセルを受けて Release / Confirm を呼ぶ。
// ReadMessage は読んだ時点で offset を進めるため、一時的な失敗はここでやり直す。
// Release/Confirm の1回の失敗は何も commit しないので、やり直しても二重にはならない。
type OrderConsumer struct {
	reader     messageReader
	svc        ReservationService
	retry      EventRetryPolicy
	retryDelay time.Duration
}

func NewOrderConsumer(brokers []string, groupID, topic string, svc ReservationService) *OrderConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newOrderConsumer(reader, svc)
}

func newOrderConsumer(r messageReader, svc ReservationService) *OrderConsumer {
	return &OrderConsumer{reader: r, svc: svc, retry: DefaultEventRetryPolicy(), retryDelay: time.Second}
}

// Run は ctx が終わるまで読み続ける。
func (c *OrderConsumer) Run(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().Msg("order event consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("order event consumer stopped")
				return nil
			}
			logger.Error().Err(err).Msg("read order event")
			//失敗が続いても空回りしない
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		msgCtx := otel.GetTextMapPropagator().Extract(ctx, headerCarrier{headers: &msg.Headers})
		c.process(msgCtx, msg)
	}
}

// process は一時的な失敗をバックオフ付きでやり直し、諦めたら metric とログに残す。
func (c *OrderConsumer) process(ctx context.Context, msg kafka.Message) {
	logger := zerolog.Ctx(ctx).With().
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Str("key", string(msg.Key)).
		Logger()

	ev, err := decodeOrderEvent(msg.Value)
	if err != nil {
		metrics.OrderEventsFailed.WithLabelValues("malformed").Inc()
		logger.Error().Err(err).Str("payload", string(msg.Value)).Msg("order event dropped")
		return
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialInterval
	b.MaxInterval = c.retry.MaxInterval

	attempts := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := c.dispatch(ctx, ev)
		if err == nil {
			return struct{}{}, nil
		}
		if !usecase.IsTemporary(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		logger.Warn().Err(err).Int("attempt", attempts).Str("order_id", ev.OrderID).Msg("order event failed, retrying")
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.retry.MaxTries),
	)
	if err == nil {
		return
	}

	metrics.OrderEventsFailed.WithLabelValues(string(ev.Type)).Inc()
	logger.Error().Err(err).
		Int("attempts", attempts).
		Str("event", string(ev.Type)).
		Str("order_id", ev.OrderID).
		Str("payload", string(msg.Value)).
		Msg("order event dropped")
}

// Handle は1メッセージ分の処理（やり直しなし）。知らない type は無視する。
func (c *OrderConsumer) Handle(ctx context.Context, payload []byte) error {
	ev, err := decodeOrderEvent(payload)
	if err != nil {
		return err
	}
	return c.dispatch(ctx, ev)
}

func decodeOrderEvent(payload []byte) (OrderEvent, error) {
	var ev OrderEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return OrderEvent{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return ev, nil
}

func (c *OrderConsumer) dispatch(ctx context.Context, ev OrderEvent) error {
	logger := zerolog.Ctx(ctx).With().Str("event", string(ev.Type)).Str("order_id", ev.OrderID).Logger()
	ctx = logger.WithContext(ctx)

	switch ev.Type {
	case EventPaymentFailed, EventOrderCanceled:
		return c.svc.Release(ctx, ev.Items, ev.OrderID)
	case EventPaymentSucceeded:
		return c.svc.Confirm(ctx, ev.OrderID)
	default:
		logger.Debug().Msg("ignored order event")
		return nil
	}
}

func (c *OrderConsumer) Close() error {
	return c.reader.Close()
}
