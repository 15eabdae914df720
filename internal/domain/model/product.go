package model

import "time"

// min_stock 未設定時の発注点
const DefaultMinStock int64 = 5

// 商品（productsはcatalogと共有）。
// 在庫エンジンが書き換えるのは stock だけ。
type Product struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Stock     int64     `gorm:"not null;default:0" json:"stock"`
	MinStock  int64     `gorm:"not null;default:5" json:"min_stock"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
