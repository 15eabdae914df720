package repository

import (
	"context"
	"errors"
	"fmt"

	repo "stockledger/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// 直列化失敗・デッドロックはやり直せば通る
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type txReposGorm struct {
	products          repo.ProductRepository
	stockTransactions repo.StockTransactionRepository
	stockAlerts       repo.StockAlertRepository
}

func (r *txReposGorm) Products() repo.ProductRepository                   { return r.products }
func (r *txReposGorm) StockTransactions() repo.StockTransactionRepository { return r.stockTransactions }
func (r *txReposGorm) StockAlerts() repo.StockAlertRepository             { return r.stockAlerts }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	err := tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			products:          NewProductGormRepository(tx),
			stockTransactions: NewStockTransactionGormRepository(tx),
			stockAlerts:       NewStockAlertGormRepository(tx),
		}
		return fn(r)
	})
	return translateTxError(err)
}

// PostgreSQLの競合系エラーを ErrConflict に寄せる
func translateTxError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", repo.ErrConflict, pgErr.Message)
		}
	}
	return err
}
