package usecase

import (
	"context"
	"time"

	"stockledger/internal/domain/model"
)

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// commit済みのアラートを外へ流す。nilなら何もしない
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, alerts []model.StockAlert) error
}
