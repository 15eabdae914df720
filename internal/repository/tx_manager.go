package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Products() ProductRepository
	StockTransactions() StockTransactionRepository
	StockAlerts() StockAlertRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// fnがerrorを返したら何も残らない。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
