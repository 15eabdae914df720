package repository

import (
	"context"
	"time"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"

	"gorm.io/gorm"
)

type stockAlertGormRepository struct {
	db *gorm.DB
}

func NewStockAlertGormRepository(db *gorm.DB) repo.StockAlertRepository {
	return &stockAlertGormRepository{db: db}
}

func (r *stockAlertGormRepository) Create(ctx context.Context, alert model.StockAlert) error {
	if err := r.db.WithContext(ctx).Create(&alert).Error; err != nil {
		return err
	}
	return nil
}

func (r *stockAlertGormRepository) Acknowledge(ctx context.Context, alertID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.StockAlert{}).
		Where("id = ? AND acknowledged = ?", alertID, false).
		Updates(map[string]interface{}{
			"acknowledged":    true,
			"acknowledged_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	//確認済みか、そもそも存在しないか
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.StockAlert{}).Where("id = ?", alertID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *stockAlertGormRepository) List(ctx context.Context, filter repo.StockAlertFilter) ([]model.StockAlert, error) {
	q := r.db.WithContext(ctx).Model(&model.StockAlert{})

	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.OnlyOpen {
		q = q.Where("acknowledged = ?", false)
	}

	//新しい順
	q = q.Order("created_at DESC").Limit(repo.NormalizeLimit(filter.Limit))

	var alerts []model.StockAlert
	if err := q.Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}
