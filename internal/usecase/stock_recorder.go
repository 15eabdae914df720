package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/domain/model"
	"stockledger/internal/metrics"
	repo "stockledger/internal/repository"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("stockledger/usecase")

// 在庫1件分の変更
type stockChange struct {
	product  model.Product
	name     string
	txType   model.StockTransactionType
	newStock int64
	orderID  string
	reason   string
	// 減算・セットのときだけアラート判定する
	evaluate bool
}

// stockRecorder は在庫の書き込み・台帳・アラートを必ず同じTxで残す。
// stock を書くのはここだけ。
type stockRecorder struct {
	idGen IDGenerator
	clock Clock
}

func (s stockRecorder) apply(ctx context.Context, r repo.TxRepos, c stockChange, at time.Time) (*model.StockAlert, error) {
	if c.newStock < 0 {
		return nil, ErrInvalidQuantity
	}
	//reservationは必ず減らし、release・restockは必ず増やす
	switch c.txType {
	case model.StockTxReservation:
		if c.newStock >= c.product.Stock {
			return nil, fmt.Errorf("%w: reservation must decrease stock of %s", ErrInvalidQuantity, c.product.ID)
		}
	case model.StockTxRelease, model.StockTxRestock:
		if c.newStock <= c.product.Stock {
			return nil, fmt.Errorf("%w: %s must increase stock of %s", ErrInvalidQuantity, c.txType, c.product.ID)
		}
	}

	//読んだ値のままなら書く（違えばErrConflictでTxごとやり直し）
	if err := r.Products().CompareAndSetStock(ctx, c.product.ID, c.product.Stock, c.newStock); err != nil {
		return nil, err
	}

	entry := model.StockTransaction{
		ID:            s.idGen.NewID(),
		ProductID:     c.product.ID,
		ProductName:   c.name,
		Type:          c.txType,
		Quantity:      c.newStock - c.product.Stock,
		PreviousStock: c.product.Stock,
		NewStock:      c.newStock,
		Reason:        c.reason,
		CreatedAt:     at,
	}
	if c.orderID != "" {
		orderID := c.orderID
		entry.OrderID = &orderID
	}
	if err := r.StockTransactions().Create(ctx, entry); err != nil {
		return nil, err
	}

	if !c.evaluate {
		return nil, nil
	}
	severity, raised := model.EvaluateAlert(c.newStock, c.product.MinStock)
	if !raised {
		return nil, nil
	}

	alert := model.StockAlert{
		ID:           s.idGen.NewID(),
		ProductID:    c.product.ID,
		ProductName:  c.name,
		CurrentStock: c.newStock,
		MinStock:     c.product.MinStock,
		Severity:     severity,
		CreatedAt:    at,
	}
	if err := r.StockAlerts().Create(ctx, alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

// 台帳に残す商品名（呼び出し側の指定 > catalogの名前 > ID）
func snapshotName(given string, p model.Product) string {
	if n := strings.TrimSpace(given); n != "" {
		return n
	}
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

func publishAlerts(ctx context.Context, pub AlertPublisher, alerts []model.StockAlert) {
	for _, a := range alerts {
		metrics.AlertsRaised.WithLabelValues(string(a.Severity)).Inc()
	}
	if pub == nil || len(alerts) == 0 {
		return
	}
	//commit後なので失敗しても操作自体は成功扱い
	if err := pub.PublishAlerts(ctx, alerts); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("alerts", len(alerts)).Msg("failed to publish stock alerts")
	}
}

func finish(span trace.Span, op string, err error) {
	metrics.StockOperations.WithLabelValues(op, outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
