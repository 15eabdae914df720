package usecase

import (
	"errors"
	"fmt"

	repo "stockledger/internal/repository"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrAlertNotFound   = errors.New("alert not found")

	// 同時更新が続き、やり直しの上限に達した
	ErrTransactionConflict = errors.New("transaction conflict")

	// 入力が不正
	ErrReasonRequired   = errors.New("reason required")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidOrderID   = errors.New("invalid order_id")
	ErrInvalidProductID = errors.New("invalid product_id")
	ErrNoItems          = errors.New("items required")
)

// 在庫不足。バッチ全体が中止される
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.ProductName, e.Available, e.Requested)
}

func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ie *InsufficientStockError
	ok := errors.As(err, &ie)
	return ie, ok
}

// storeの ErrConflict を呼び出し側向けに言い換える
func storeError(err error) error {
	if errors.Is(err, repo.ErrConflict) {
		return fmt.Errorf("%w: %w", ErrTransactionConflict, err)
	}
	return err
}

// metricsのラベル
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if _, ok := AsInsufficientStock(err); ok {
		return "insufficient_stock"
	}
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrAlertNotFound):
		return "not_found"
	case errors.Is(err, ErrTransactionConflict):
		return "conflict"
	case errors.Is(err, ErrReasonRequired),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidOrderID),
		errors.Is(err, ErrInvalidProductID),
		errors.Is(err, ErrNoItems):
		return "invalid"
	default:
		return "error"
	}
}

// IsTemporary はやり直せば通りうるエラーか（競合・DB障害など）。
// 入力や在庫の問題は何度やっても同じなので false。
func IsTemporary(err error) bool {
	switch outcome(err) {
	case "conflict", "error":
		return true
	default:
		return false
	}
}
