package repository

import (
	"context"
	"errors"

	"stockledger/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 同時更新の衝突。Txごとやり直せば解消しうる
var ErrConflict = errors.New("conflict")

// 在庫エンジンから見た products の約束。
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (model.Product, error)

	// まとめて読む。存在しないIDは結果に含まれない
	FindByIDs(ctx context.Context, ids []string) (map[string]model.Product, error)

	// 読んだ値(expected)のままなら newStock に書き換える。
	// 途中で誰かが書き換えていたら ErrConflict。
	CompareAndSetStock(ctx context.Context, id string, expected int64, newStock int64) error
}
