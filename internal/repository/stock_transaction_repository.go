package repository

import (
	"context"

	"stockledger/internal/domain/model"
)

// 履歴取得の上限
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// 在庫台帳の約束
type StockTransactionRepository interface {
	Create(ctx context.Context, tx model.StockTransaction) error

	// 商品の台帳を新しい順に返す
	ListByProduct(ctx context.Context, productID string, limit int) ([]model.StockTransaction, error)

	// 注文の reservation を sale に書き換え、書き換えた件数を返す
	MarkOrderSold(ctx context.Context, orderID string) (int64, error)
}

// 0以下は既定値、上限超えは丸める
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
