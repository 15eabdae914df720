package model

import "time"

type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityCritical AlertSeverity = "critical"
	AlertSeverityOut      AlertSeverity = "out"
)

// 在庫アラート（stock_alerts）。
// 変更されるのは acknowledged だけ。
type StockAlert struct {
	ID             string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProductID      string        `gorm:"type:varchar(64);not null;index" json:"product_id"`
	ProductName    string        `gorm:"type:varchar(255);not null" json:"product_name"`
	CurrentStock   int64         `gorm:"not null" json:"current_stock"`
	MinStock       int64         `gorm:"not null" json:"min_stock"`
	Severity       AlertSeverity `gorm:"type:varchar(20);not null" json:"severity"`
	Acknowledged   bool          `gorm:"not null;default:false;index" json:"acknowledged"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;index" json:"created_at"`
}

// EvaluateAlert は減算・セット後の在庫からアラートの要否と重要度を決める。
// minStock/2 は整数除算。
func EvaluateAlert(newStock, minStock int64) (AlertSeverity, bool) {
	switch {
	case newStock <= 0:
		return AlertSeverityOut, true
	case newStock <= minStock/2:
		return AlertSeverityCritical, true
	case newStock <= minStock:
		return AlertSeverityLow, true
	default:
		return "", false
	}
}
