package repository

import (
	"context"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"

	"gorm.io/gorm"
)

type StockTransactionGormRepository struct {
	db *gorm.DB
}

func NewStockTransactionGormRepository(db *gorm.DB) *StockTransactionGormRepository {
	return &StockTransactionGormRepository{db: db}
}

// 台帳を1件追加
func (r *StockTransactionGormRepository) Create(ctx context.Context, tx model.StockTransaction) error {
	if err := r.db.WithContext(ctx).Create(&tx).Error; err != nil {
		return err
	}
	return nil
}

// 新しい順（書き込まれた順の逆）
func (r *StockTransactionGormRepository) ListByProduct(ctx context.Context, productID string, limit int) ([]model.StockTransaction, error) {
	var txs []model.StockTransaction
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("seq DESC").
		Limit(repo.NormalizeLimit(limit)).
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// reservation だけを sale にする。済んでいる行には触らないので何度呼んでもよい
func (r *StockTransactionGormRepository) MarkOrderSold(ctx context.Context, orderID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.StockTransaction{}).
		Where("order_id = ? AND type = ?", orderID, model.StockTxReservation).
		Update("type", model.StockTxSale)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
