package model

import "time"

type StockTransactionType string

const (
	//注文の仮押さえ（quantityは負）
	StockTxReservation StockTransactionType = "reservation"
	//仮押さえの戻し（quantityは正）
	StockTxRelease StockTransactionType = "release"
	//決済済み。reservationから書き換わる
	StockTxSale StockTransactionType = "sale"
	//入荷
	StockTxRestock StockTransactionType = "restock"
	//管理者による棚卸し補正（絶対値セット）
	StockTxAdjustment StockTransactionType = "adjustment"
)

// 在庫台帳（stock_transactions）。
// 在庫の書き換えと同じTxで1件だけ作られ、以後は変更しない。
// 例外は reservation -> sale の書き換えのみ。
// 並び順は Seq（DBが振る連番）で決める。CreatedAt は同時刻や前後入れ替わりがありうる。
type StockTransaction struct {
	ID            string               `gorm:"type:varchar(36);primaryKey" json:"id"`
	Seq           int64                `gorm:"type:bigserial;<-:false;not null;index:idx_stock_tx_product_seq,priority:2" json:"seq"`
	ProductID     string               `gorm:"type:varchar(64);not null;index:idx_stock_tx_product_seq,priority:1" json:"product_id"`
	ProductName   string               `gorm:"type:varchar(255);not null" json:"product_name"`
	Type          StockTransactionType `gorm:"type:varchar(20);not null;index" json:"type"`
	Quantity      int64                `gorm:"not null" json:"quantity"`
	PreviousStock int64                `gorm:"not null" json:"previous_stock"`
	NewStock      int64                `gorm:"not null" json:"new_stock"`
	OrderID       *string              `gorm:"type:varchar(64);index" json:"order_id,omitempty"`
	Reason        string               `gorm:"type:varchar(255)" json:"reason,omitempty"`
	CreatedAt     time.Time            `gorm:"not null" json:"created_at"`
}

// new_stock == previous_stock + quantity
func (t StockTransaction) Balanced() bool {
	return t.NewStock == t.PreviousStock+t.Quantity
}
