package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"stockledger/internal/domain/model"
	infraRepo "stockledger/internal/infra/repository"
	"stockledger/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReserve_DecrementsAndRecordsReservation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil, product("p1", 20))

	err := e.inv.Reserve(ctx, items("p1", 3), "order-1")
	require.NoError(t, err)

	assert.Equal(t, int64(17), e.stock(t, "p1"))

	txs := e.ledger(t, "p1")
	require.Len(t, txs, 1)
	assert.Equal(t, model.StockTxReservation, txs[0].Type)
	assert.Equal(t, int64(-3), txs[0].Quantity)
	assert.Equal(t, int64(20), txs[0].PreviousStock)
	assert.Equal(t, int64(17), txs[0].NewStock)
	require.NotNil(t, txs[0].OrderID)
	assert.Equal(t, "order-1", *txs[0].OrderID)
	assert.Equal(t, "Product p1", txs[0].ProductName)

	//20→17 は閾値より上
	assert.Empty(t, e.alerts(t, "p1"))
}

func TestReserve_AlertThresholds(t *testing.T) {
	cases := []struct {
		name     string
		stock    int64
		qty      int
		severity model.AlertSeverity
		raised   bool
	}{
		{name: "6 to 5 is low", stock: 6, qty: 1, severity: model.AlertSeverityLow, raised: true},
		{name: "6 to 2 is critical", stock: 6, qty: 4, severity: model.AlertSeverityCritical, raised: true},
		{name: "6 to 0 is out", stock: 6, qty: 6, severity: model.AlertSeverityOut, raised: true},
		{name: "20 to 15 raises nothing", stock: 20, qty: 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, nil, product("p1", tc.stock))

			require.NoError(t, e.inv.Reserve(context.Background(), items("p1", tc.qty), "order-1"))

			alerts := e.alerts(t, "p1")
			if !tc.raised {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, tc.severity, alerts[0].Severity)
			assert.Equal(t, tc.stock-int64(tc.qty), alerts[0].CurrentStock)
			assert.Equal(t, model.DefaultMinStock, alerts[0].MinStock)
			assert.False(t, alerts[0].Acknowledged)
		})
	}
}

func TestReserve_MultiItemIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil, product("p1", 10), product("p2", 1), product("p3", 10))

	err := e.inv.Reserve(ctx, []usecase.StockItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", ProductName: "Green Tea", Quantity: 5},
		{ProductID: "p3", Quantity: 1},
	}, "order-1")
	require.Error(t, err)

	ie, ok := usecase.AsInsufficientStock(err)
	require.True(t, ok)
	assert.Equal(t, "p2", ie.ProductID)
	assert.Equal(t, "Green Tea", ie.ProductName)
	assert.Equal(t, int64(1), ie.Available)
	assert.Equal(t, int64(5), ie.Requested)
	assert.Contains(t, err.Error(), "Green Tea")

	//どれも変わっていない
	for id, want := range map[string]int64{"p1": 10, "p2": 1, "p3": 10} {
		assert.Equal(t, want, e.stock(t, id), id)
		assert.Empty(t, e.ledger(t, id), id)
		assert.Empty(t, e.alerts(t, id), id)
	}
}

func TestReserve_ProductNotFound(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil, product("p1", 10))

	err := e.inv.Reserve(ctx, items("p1", 1, "ghost", 1), "order-1")
	assert.ErrorIs(t, err, usecase.ErrProductNotFound)
	assert.Contains(t, err.Error(), "ghost")

	assert.Equal(t, int64(10), e.stock(t, "p1"))
	assert.Empty(t, e.ledger(t, "p1"))
}

func TestReserve_MergesDuplicateLines(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil, product("p1", 4))

	//2+3=5 > 4 なので1行ずつなら通ってしまうケース
	err := e.inv.Reserve(ctx, items("p1", 2, "p1", 3), "order-1")
	ie, ok := usecase.AsInsufficientStock(err)
	require.True(t, ok)
	assert.Equal(t, int64(5), ie.Requested)
	assert.Equal(t, int64(4), e.stock(t, "p1"))

	require.NoError(t, e.inv.Reserve(ctx, items("p1", 1, "p1", 2), "order-2"))
	assert.Equal(t, int64(1), e.stock(t, "p1"))
	txs := e.ledger(t, "p1")
	require.Len(t, txs, 1)
	assert.Equal(t, int64(-3), txs[0].Quantity)
}

// 同じ商品の行を合計して int64 を超えるなら、在庫に触れず弾く
func TestReserveAndRelease_RejectOverflowingMergedQuantity(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil, product("p1", 10))
	huge := []usecase.StockItem{
		{ProductID: "p1", Quantity: math.MaxInt64},
		{ProductID: "p1", Quantity: math.MaxInt64},
	}

	err := e.inv.Reserve(ctx, huge, "o1")
	assert.ErrorIs(t, err, usecase.ErrInvalidQuantity)

	err = e.inv.Release(ctx, huge, "o1")
	assert.ErrorIs(t, err, usecase.ErrInvalidQuantity)

	//1行でも既存在庫と足して溢れる解放は通さない
	err = e.inv.Release(ctx, items("p1", 1), "o1")
	require.NoError(t, err)
	err = e.inv.Release(ctx, []usecase.StockItem{{ProductID: "p1", Quantity: math.MaxInt64}}, "o1")
	assert.ErrorIs(t, err, usecase.ErrInvalidQuantity)

	assert.Equal(t, int64(11), e.stock(t, "p1"))
	for _, tx := range e.ledger(t, "p1") {
		assert.Equal(t, model.StockTxRelease, tx.Type)
		assert.Positive(t, tx.Quantity)
	}
}

func TestReserve_ValidatesInput(t *testing.T) {
	ctx := context.Background()
	tx := &TxManagerMock{}
	inv := usecase.NewInventoryUsecase(tx, &StockTxRepoMock{}, nil, &seqIDs{}, newStepClock())

	cases := []struct {
		name    string
		items   []usecase.StockItem
		orderID string
		want    error
	}{
		{name: "blank order id", items: items("p1", 1), orderID: "  ", want: usecase.ErrInvalidOrderID},
		{name: "no items", items: nil, orderID: "o1", want: usecase.ErrNoItems},
		{name: "zero quantity", items: items("p1", 0), orderID: "o1", want: usecase.ErrInvalidQuantity},
		{name: "negative quantity", items: items("p1", -2), orderID: "o1", want: usecase.ErrInvalidQuantity},
		{name: "blank product id", items: items(" ", 1), orderID: "o1", want: usecase.ErrInvalidProductID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := inv.Reserve(ctx, tc.items, tc.orderID)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	//storeには一度も触れていない
	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestReserve_ConflictExhaustedIsReported(t *testing.T) {
	ctx := context.Background()
	inner := &alwaysConflictTxManager{}
	tx := infraRepo.NewRetryingTxManager(inner, infraRepo.RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Microsecond,
		MaxInterval:     time.Microsecond,
	})
	inv := usecase.NewInventoryUsecase(tx, &StockTxRepoMock{}, nil, &seqIDs{}, newStepClock())

	err := inv.Reserve(ctx, items("p1", 1), "order-1")
	assert.ErrorIs(t, err, usecase.ErrTransactionConflict)
	assert.Equal(t, int64(3), inner.calls.Load())
}

// 同じ商品を大量に同時購入しても在庫を超えて売らない
func TestReserve_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	const (
		initial = 10
		buyers  = 30
	)
	ctx := context.Background()
	e := newEnv(t, nil, product("p1", initial))

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
		others       []error
	)
	start := make(chan struct{})
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			err := e.inv.Reserve(ctx, items("p1", 1), fmt.Sprintf("order-%d", i))

			mu.Lock()
			defer mu.Unlock()
			switch _, short := usecase.AsInsufficientStock(err); {
			case err == nil:
				succeeded++
			case short:
				insufficient++
			default:
				others = append(others, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.Empty(t, others)
	assert.Equal(t, initial, succeeded)
	assert.Equal(t, buyers-initial, insufficient)
	assert.Equal(t, int64(0), e.stock(t, "p1"))

	//成功した分だけ台帳がある
	txs := e.ledger(t, "p1")
	require.Len(t, txs, succeeded)
	var sum int64
	for _, tx := range txs {
		assert.True(t, tx.Balanced())
		sum += tx.Quantity
	}
	assert.Equal(t, int64(-initial), sum)
}

// 商品ごとに見ると台帳を順に辿れば現在庫に一致する
func TestLedger_ReplaysToCurrentStock(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil, product("p1", 12), product("p2", 8))

	require.NoError(t, e.inv.Reserve(ctx, items("p1", 3, "p2", 2), "order-1"))
	require.NoError(t, e.inv.Reserve(ctx, items("p1", 4), "order-2"))
	require.NoError(t, e.inv.Release(ctx, items("p1", 3, "p2", 2), "order-1"))
	require.NoError(t, e.admin.Restock(ctx, "p1", "", 6, ""))
	require.NoError(t, e.admin.AdjustStock(ctx, "p2", "", 3, "cycle count"))
	require.NoError(t, e.inv.Confirm(ctx, "order-2"))

	for id, initial := range map[string]int64{"p1": 12, "p2": 8} {
		txs := e.ledger(t, id)
		require.NotEmpty(t, txs, id)

		//新しい順なので逆から辿る
		stock := initial
		for i := len(txs) - 1; i >= 0; i-- {
			tx := txs[i]
			assert.True(t, tx.Balanced(), id)
			assert.Equal(t, stock, tx.PreviousStock, id)
			stock = tx.NewStock
		}
		assert.Equal(t, e.stock(t, id), stock, id)
	}
}

func TestRelease_ReversesReservation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil, product("p1", 9))

	require.NoError(t, e.inv.Reserve(ctx, items("p1", 4), "order-1"))
	require.Len(t, e.alerts(t, "p1"), 1) // 9→5 low

	require.NoError(t, e.inv.Release(ctx, items("p1", 4), "order-1"))
	assert.Equal(t, int64(9), e.stock(t, "p1"))

	txs := e.ledger(t, "p1")
	require.Len(t, txs, 2)
	assert.Equal(t, model.StockTxRelease, txs[0].Type)
	assert.Equal(t, int64(4), txs[0].Quantity)
	assert.Equal(t, "order-1", *txs[0].OrderID)
	assert.Equal(t, model.StockTxReservation, txs[1].Type)

	//戻しても自動では閉じない
	alerts := e.alerts(t, "p1")
	require.Len(t, alerts, 1)
	assert.False(t, alerts[0].Acknowledged)
}

func TestRelease_SkipsProductsThatNoLongerExist(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil, product("p1", 10), product("p2", 10))

	require.NoError(t, e.inv.Reserve(ctx, items("p1", 2, "p2", 2), "order-1"))
	e.store.Remove("p2")

	require.NoError(t, e.inv.Release(ctx, items("p1", 2, "p2", 2), "order-1"))
	assert.Equal(t, int64(10), e.stock(t, "p1"))
	assert.Len(t, e.ledger(t, "p2"), 1)
}

func TestConfirm_RelabelsReservationsIdempotently(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil, product("p1", 10), product("p2", 10))

	require.NoError(t, e.inv.Reserve(ctx, items("p1", 1, "p2", 2), "order-1"))
	require.NoError(t, e.inv.Reserve(ctx, items("p1", 1), "order-2"))

	require.NoError(t, e.inv.Confirm(ctx, "order-1"))
	require.NoError(t, e.inv.Confirm(ctx, "order-1"))

	count := func(id string, typ model.StockTransactionType, orderID string) int {
		n := 0
		for _, tx := range e.ledger(t, id) {
			if tx.Type == typ && tx.OrderID != nil && *tx.OrderID == orderID {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, count("p1", model.StockTxSale, "order-1"))
	assert.Equal(t, 1, count("p2", model.StockTxSale, "order-1"))
	assert.Equal(t, 0, count("p1", model.StockTxReservation, "order-1"))
	//他の注文には触れない
	assert.Equal(t, 1, count("p1", model.StockTxReservation, "order-2"))

	//在庫は変わらない
	assert.Equal(t, int64(8), e.stock(t, "p1"))
	assert.Equal(t, int64(8), e.stock(t, "p2"))
}

func TestConfirm_SurfacesStoreError(t *testing.T) {
	ctx := context.Background()
	ledger := &StockTxRepoMock{}
	boom := errors.New("db down")
	ledger.On("MarkOrderSold", mock.Anything, "order-1").Return(int64(0), boom).Once()

	inv := usecase.NewInventoryUsecase(&TxManagerMock{}, ledger, nil, &seqIDs{}, newStepClock())

	err := inv.Confirm(ctx, "order-1")
	assert.ErrorIs(t, err, boom)
	ledger.AssertExpectations(t)
}

func TestReserve_PublishesAlertsAfterCommit(t *testing.T) {
	ctx := context.Background()
	pub := &AlertPublisherMock{}
	e := newEnv(t, pub, product("p1", 6), product("p2", 20))

	pub.On("PublishAlerts", mock.Anything, mock.MatchedBy(func(alerts []model.StockAlert) bool {
		return len(alerts) == 1 && alerts[0].ProductID == "p1" && alerts[0].Severity == model.AlertSeverityCritical
	})).Return(errors.New("broker unavailable")).Once()

	//配信に失敗しても予約は成功
	require.NoError(t, e.inv.Reserve(ctx, items("p1", 4, "p2", 1), "order-1"))
	assert.Equal(t, int64(2), e.stock(t, "p1"))

	//失敗した予約では何も配信しない
	err := e.inv.Reserve(ctx, items("p1", 5), "order-2")
	_, short := usecase.AsInsufficientStock(err)
	assert.True(t, short)

	pub.AssertExpectations(t)
	pub.AssertNumberOfCalls(t, "PublishAlerts", 1)
}
