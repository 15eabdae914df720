package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// 入荷時の既定の理由
const DefaultRestockReason = "inventory replenishment"

// 管理画面からの在庫補正・入荷・アラート確認・履歴参照。
type AdminInventoryUsecase struct {
	tx        repo.TransactionManager
	ledger    repo.StockTransactionRepository
	alerts    repo.StockAlertRepository
	publisher AlertPublisher
	recorder  stockRecorder
}

// DI
func NewAdminInventoryUsecase(
	tx repo.TransactionManager,
	ledger repo.StockTransactionRepository,
	alerts repo.StockAlertRepository,
	publisher AlertPublisher,
	idGen IDGenerator,
	clock Clock,
) *AdminInventoryUsecase {
	return &AdminInventoryUsecase{
		tx:        tx,
		ledger:    ledger,
		alerts:    alerts,
		publisher: publisher,
		recorder:  stockRecorder{idGen: idGen, clock: clock},
	}
}

// AdjustStock は在庫を newStock（差分ではなく現在値）にする。理由は必須。
func (u *AdminInventoryUsecase) AdjustStock(ctx context.Context, productID, productName string, newStock int64, reason string) (err error) {
	ctx, span := tracer.Start(ctx, "inventory.AdjustStock")
	defer func() { finish(span, "adjust", err) }()

	productID = strings.TrimSpace(productID)
	reason = strings.TrimSpace(reason)
	if productID == "" {
		return ErrInvalidProductID
	}
	if reason == "" {
		return ErrReasonRequired
	}
	if newStock < 0 {
		return fmt.Errorf("%w: stock must be >= 0", ErrInvalidQuantity)
	}
	span.SetAttributes(attribute.String("product.id", productID), attribute.Int64("stock.new", newStock))

	var alert *model.StockAlert
	var previous int64
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		alert = nil

		p, err := findProduct(ctx, r, productID)
		if err != nil {
			return err
		}
		previous = p.Stock

		alert, err = u.recorder.apply(ctx, r, stockChange{
			product:  p,
			name:     snapshotName(productName, p),
			txType:   model.StockTxAdjustment,
			newStock: newStock,
			reason:   reason,
			evaluate: true,
		}, u.recorder.clock.Now())
		return err
	})
	if err != nil {
		return storeError(err)
	}

	zerolog.Ctx(ctx).Info().Str("product_id", productID).Int64("previous", previous).Int64("stock", newStock).Str("reason", reason).Msg("stock adjusted")
	if alert != nil {
		publishAlerts(ctx, u.publisher, []model.StockAlert{*alert})
	}
	return nil
}

// Restock は入荷分を足す。増えるだけなのでアラート判定はしない。
func (u *AdminInventoryUsecase) Restock(ctx context.Context, productID, productName string, quantity int64, reason string) (err error) {
	ctx, span := tracer.Start(ctx, "inventory.Restock")
	defer func() { finish(span, "restock", err) }()

	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ErrInvalidProductID
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrInvalidQuantity)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultRestockReason
	}
	span.SetAttributes(attribute.String("product.id", productID), attribute.Int64("quantity", quantity))

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := findProduct(ctx, r, productID)
		if err != nil {
			return err
		}
		_, err = u.recorder.apply(ctx, r, stockChange{
			product:  p,
			name:     snapshotName(productName, p),
			txType:   model.StockTxRestock,
			newStock: p.Stock + quantity,
			reason:   reason,
		}, u.recorder.clock.Now())
		return err
	})
	if err != nil {
		return storeError(err)
	}

	zerolog.Ctx(ctx).Info().Str("product_id", productID).Int64("quantity", quantity).Msg("stock restocked")
	return nil
}

// AcknowledgeAlert はアラートを確認済みにする。在庫とは無関係の単発書き込み。
func (u *AdminInventoryUsecase) AcknowledgeAlert(ctx context.Context, alertID string) (err error) {
	ctx, span := tracer.Start(ctx, "inventory.AcknowledgeAlert")
	defer func() { finish(span, "acknowledge", err) }()

	alertID = strings.TrimSpace(alertID)
	if alertID == "" {
		return ErrAlertNotFound
	}

	err = u.alerts.Acknowledge(ctx, alertID, u.recorder.clock.Now())
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
	}
	return err
}

// GetTransactions は商品の台帳を新しい順に返す（limit<=0 は50件）。
func (u *AdminInventoryUsecase) GetTransactions(ctx context.Context, productID string, limit int) ([]model.StockTransaction, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return []model.StockTransaction{}, ErrInvalidProductID
	}
	txs, err := u.ledger.ListByProduct(ctx, productID, repo.NormalizeLimit(limit))
	if err != nil {
		return []model.StockTransaction{}, err
	}
	return txs, nil
}

// アラート一覧の入力
type ListAlertsInput struct {
	ProductID string
	OnlyOpen  bool
	Limit     int
}

func (u *AdminInventoryUsecase) ListAlerts(ctx context.Context, in ListAlertsInput) ([]model.StockAlert, error) {
	filter := repo.StockAlertFilter{
		OnlyOpen: in.OnlyOpen,
		Limit:    repo.NormalizeLimit(in.Limit),
	}
	if id := strings.TrimSpace(in.ProductID); id != "" {
		filter.ProductID = &id
	}

	alerts, err := u.alerts.List(ctx, filter)
	if err != nil {
		return []model.StockAlert{}, err
	}
	return alerts, nil
}

func findProduct(ctx context.Context, r repo.TxRepos, productID string) (model.Product, error) {
	p, err := r.Products().FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return p, err
}
