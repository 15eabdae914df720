package usecase

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// 注文フロー（checkout / 決済）から呼ばれる在庫の仮押さえ。
type InventoryUsecase struct {
	tx        repo.TransactionManager
	ledger    repo.StockTransactionRepository
	publisher AlertPublisher
	recorder  stockRecorder
}

// DI
func NewInventoryUsecase(
	tx repo.TransactionManager,
	ledger repo.StockTransactionRepository,
	publisher AlertPublisher,
	idGen IDGenerator,
	clock Clock,
) *InventoryUsecase {
	return &InventoryUsecase{
		tx:        tx,
		ledger:    ledger,
		publisher: publisher,
		recorder:  stockRecorder{idGen: idGen, clock: clock},
	}
}

// 注文明細1行
type StockItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
}

// Reserve は注文の全明細を1Txで減算する。
// 全商品を読んでから全件チェックし、その後に書く。1件でも駄目なら何も残らない。
func (u *InventoryUsecase) Reserve(ctx context.Context, items []StockItem, orderID string) (err error) {
	ctx, span := tracer.Start(ctx, "inventory.Reserve")
	defer func() { finish(span, "reserve", err) }()

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return ErrInvalidOrderID
	}
	merged, err := mergeItems(items)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("order.id", orderID), attribute.Int("items", len(merged)))

	var alerts []model.StockAlert
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//やり直し時は前回分を捨てる
		alerts = alerts[:0]

		//全部読む
		products, err := r.Products().FindByIDs(ctx, itemIDs(merged))
		if err != nil {
			return err
		}

		//書く前に全件チェック
		for _, it := range merged {
			p, ok := products[it.ProductID]
			if !ok {
				return fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
			}
			if p.Stock < it.Quantity {
				return &InsufficientStockError{
					ProductID:   p.ID,
					ProductName: snapshotName(it.ProductName, p),
					Available:   p.Stock,
					Requested:   it.Quantity,
				}
			}
		}

		//全部書く
		now := u.recorder.clock.Now()
		for _, it := range merged {
			p := products[it.ProductID]
			alert, err := u.recorder.apply(ctx, r, stockChange{
				product:  p,
				name:     snapshotName(it.ProductName, p),
				txType:   model.StockTxReservation,
				newStock: p.Stock - it.Quantity,
				orderID:  orderID,
				evaluate: true,
			}, now)
			if err != nil {
				return err
			}
			if alert != nil {
				alerts = append(alerts, *alert)
			}
		}
		return nil
	})
	if err != nil {
		return storeError(err)
	}

	zerolog.Ctx(ctx).Info().Str("order_id", orderID).Int("items", len(merged)).Int("alerts", len(alerts)).Msg("stock reserved")
	publishAlerts(ctx, u.publisher, alerts)
	return nil
}

// Release は仮押さえを在庫へ戻す。
// catalogから消えた商品は飛ばす。アラートには触らない。
func (u *InventoryUsecase) Release(ctx context.Context, items []StockItem, orderID string) (err error) {
	ctx, span := tracer.Start(ctx, "inventory.Release")
	defer func() { finish(span, "release", err) }()

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return ErrInvalidOrderID
	}
	merged, err := mergeItems(items)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("order.id", orderID), attribute.Int("items", len(merged)))

	var skipped []string
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		skipped = skipped[:0]

		products, err := r.Products().FindByIDs(ctx, itemIDs(merged))
		if err != nil {
			return err
		}

		now := u.recorder.clock.Now()
		for _, it := range merged {
			p, ok := products[it.ProductID]
			if !ok {
				skipped = append(skipped, it.ProductID)
				continue
			}
			if _, err := u.recorder.apply(ctx, r, stockChange{
				product:  p,
				name:     snapshotName(it.ProductName, p),
				txType:   model.StockTxRelease,
				newStock: p.Stock + it.Quantity,
				orderID:  orderID,
			}, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeError(err)
	}

	logger := zerolog.Ctx(ctx)
	for _, id := range skipped {
		logger.Warn().Str("order_id", orderID).Str("product_id", id).Msg("release skipped: product no longer exists")
	}
	logger.Info().Str("order_id", orderID).Int("items", len(merged)-len(skipped)).Msg("stock released")
	return nil
}

// Confirm は注文の reservation を sale に書き換える。
// 在庫とは別に実行され、何度呼んでも結果は同じ。
func (u *InventoryUsecase) Confirm(ctx context.Context, orderID string) (err error) {
	ctx, span := tracer.Start(ctx, "inventory.Confirm")
	defer func() { finish(span, "confirm", err) }()

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return ErrInvalidOrderID
	}
	span.SetAttributes(attribute.String("order.id", orderID))

	n, err := u.ledger.MarkOrderSold(ctx, orderID)
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Str("order_id", orderID).Int64("entries", n).Msg("sale confirmed")
	return nil
}

// 同じ商品が複数行あればまとめ、商品ID順に並べる
func mergeItems(items []StockItem) ([]StockItem, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	merged := make([]StockItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			return nil, ErrInvalidProductID
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, id)
		}
		if i, ok := index[id]; ok {
			//合計がint64を超えると符号が反転する
			if it.Quantity > math.MaxInt64-merged[i].Quantity {
				return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, id)
			}
			merged[i].Quantity += it.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, StockItem{ProductID: id, ProductName: it.ProductName, Quantity: it.Quantity})
	}

	//行ロックを取る順番を揃える（{A,B} と {B,A} が同時に来てもデッドロックしない）
	slices.SortFunc(merged, func(a, b StockItem) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return merged, nil
}

func itemIDs(items []StockItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return ids
}
