package repository

import (
	"context"
	"time"

	"stockledger/internal/domain/model"
)

// アラートの絞り込み条件
type StockAlertFilter struct {
	ProductID *string
	OnlyOpen  bool
	Limit     int
}

type StockAlertRepository interface {
	Create(ctx context.Context, alert model.StockAlert) error

	// acknowledged=true にする。対象がなければ ErrNotFound
	Acknowledge(ctx context.Context, alertID string, at time.Time) error

	// 新しい順
	List(ctx context.Context, filter StockAlertFilter) ([]model.StockAlert, error)
}
