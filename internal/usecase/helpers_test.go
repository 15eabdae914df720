package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stockledger/internal/domain/model"
	"stockledger/internal/infra/memory"
	infraRepo "stockledger/internal/infra/repository"
	repo "stockledger/internal/repository"
	"stockledger/internal/usecase"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// テスト用の部品
// =====================

// 呼ぶたびに1ms進む時計
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) NewID() string {
	return fmt.Sprintf("id-%d", g.n.Add(1))
}

type AlertPublisherMock struct{ mock.Mock }

func (m *AlertPublisherMock) PublishAlerts(ctx context.Context, alerts []model.StockAlert) error {
	args := m.Called(ctx, alerts)
	return args.Error(0)
}

// 常に競合するTxManager
type alwaysConflictTxManager struct{ calls atomic.Int64 }

func (m *alwaysConflictTxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.calls.Add(1)
	return repo.ErrConflict
}

// WithinTxが呼ばれたかだけ記録する
type TxManagerMock struct{ mock.Mock }

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type StockAlertRepoMock struct{ mock.Mock }

func (m *StockAlertRepoMock) Create(ctx context.Context, alert model.StockAlert) error {
	panic("not used")
}

func (m *StockAlertRepoMock) Acknowledge(ctx context.Context, alertID string, at time.Time) error {
	args := m.Called(ctx, alertID)
	return args.Error(0)
}

func (m *StockAlertRepoMock) List(ctx context.Context, filter repo.StockAlertFilter) ([]model.StockAlert, error) {
	args := m.Called(ctx, filter)
	alerts, _ := args.Get(0).([]model.StockAlert)
	return alerts, args.Error(1)
}

type StockTxRepoMock struct{ mock.Mock }

func (m *StockTxRepoMock) Create(ctx context.Context, tx model.StockTransaction) error {
	panic("not used")
}

func (m *StockTxRepoMock) ListByProduct(ctx context.Context, productID string, limit int) ([]model.StockTransaction, error) {
	args := m.Called(ctx, productID, limit)
	txs, _ := args.Get(0).([]model.StockTransaction)
	return txs, args.Error(1)
}

func (m *StockTxRepoMock) MarkOrderSold(ctx context.Context, orderID string) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

// =====================
// memory storeで組み立てた環境
// =====================

type testEnv struct {
	store *memory.Store
	inv   *usecase.InventoryUsecase
	admin *usecase.AdminInventoryUsecase
}

func newEnv(t *testing.T, pub usecase.AlertPublisher, products ...model.Product) *testEnv {
	t.Helper()

	store := memory.NewStore()
	store.Seed(products...)

	tx := infraRepo.NewRetryingTxManager(store, infraRepo.RetryPolicy{
		MaxAttempts:     50,
		InitialInterval: 100 * time.Microsecond,
		MaxInterval:     time.Millisecond,
	})
	ids := &seqIDs{}
	clock := newStepClock()

	return &testEnv{
		store: store,
		inv:   usecase.NewInventoryUsecase(tx, store.StockTransactionRepository(), pub, ids, clock),
		admin: usecase.NewAdminInventoryUsecase(tx, store.StockTransactionRepository(), store.StockAlertRepository(), pub, ids, clock),
	}
}

func (e *testEnv) stock(t *testing.T, productID string) int64 {
	t.Helper()
	p, err := e.store.ProductRepository().FindByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func (e *testEnv) ledger(t *testing.T, productID string) []model.StockTransaction {
	t.Helper()
	txs, err := e.store.StockTransactionRepository().ListByProduct(context.Background(), productID, repo.MaxHistoryLimit)
	require.NoError(t, err)
	return txs
}

func (e *testEnv) alerts(t *testing.T, productID string) []model.StockAlert {
	t.Helper()
	alerts, err := e.store.StockAlertRepository().List(context.Background(), repo.StockAlertFilter{ProductID: &productID})
	require.NoError(t, err)
	return alerts
}

func product(id string, stock int64) model.Product {
	return model.Product{ID: id, Name: "Product " + id, Stock: stock, MinStock: model.DefaultMinStock}
}

func items(pairs ...interface{}) []usecase.StockItem {
	out := make([]usecase.StockItem, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, usecase.StockItem{ProductID: pairs[i].(string), Quantity: int64(pairs[i+1].(int))})
	}
	return out
}
