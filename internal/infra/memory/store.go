// Package memory is an in-process transactional store with per-record
// versions. A transaction remembers the version of every product it read and
// commits only if none of them changed in the meantime.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"
)

// Tx外から在庫を書こうとした
var ErrOutsideTx = errors.New("memory: stock can only change inside WithinTx")

type productRecord struct {
	product model.Product
	version uint64
}

type Store struct {
	mu       sync.Mutex
	seq      uint64
	products map[string]productRecord
	ledger   []model.StockTransaction
	//台帳の連番（DBの bigserial 相当）
	ledgerSeq int64
	alerts    []model.StockAlert
}

func NewStore() *Store {
	return &Store{products: make(map[string]productRecord)}
}

// Seed は catalog 側の登録を模す。Txを通さない。
func (s *Store) Seed(products ...model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.seq++
		s.products[p.ID] = productRecord{product: p, version: s.seq}
	}
}

// Remove は catalog 側の削除を模す。
func (s *Store) Remove(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, productID)
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := newTx(s)
	if err := fn(t); err != nil {
		return err
	}
	return t.commit()
}

// Tx外から使う repo
func (s *Store) ProductRepository() repo.ProductRepository { return storeProducts{s} }
func (s *Store) StockTransactionRepository() repo.StockTransactionRepository {
	return storeLedger{s}
}
func (s *Store) StockAlertRepository() repo.StockAlertRepository { return storeAlerts{s} }

func (s *Store) read(id string) (model.Product, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.products[id]
	return rec.product, rec.version, ok
}

type storeProducts struct{ s *Store }

func (v storeProducts) FindByID(ctx context.Context, id string) (model.Product, error) {
	p, _, ok := v.s.read(id)
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (v storeProducts) FindByIDs(ctx context.Context, ids []string) (map[string]model.Product, error) {
	out := make(map[string]model.Product, len(ids))
	for _, id := range ids {
		if p, _, ok := v.s.read(id); ok {
			out[id] = p
		}
	}
	return out, nil
}

// 在庫の書き込みは台帳と同じTxでしか許さない
func (v storeProducts) CompareAndSetStock(ctx context.Context, id string, expected int64, newStock int64) error {
	return ErrOutsideTx
}

func (s *Store) appendLedgerLocked(entries ...model.StockTransaction) {
	for _, e := range entries {
		s.ledgerSeq++
		e.Seq = s.ledgerSeq
		s.ledger = append(s.ledger, e)
	}
}

type storeLedger struct{ s *Store }

func (v storeLedger) Create(ctx context.Context, tx model.StockTransaction) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.appendLedgerLocked(tx)
	return nil
}

func (v storeLedger) ListByProduct(ctx context.Context, productID string, limit int) ([]model.StockTransaction, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	//追加順に逆から辿ると新しい順になる。CreatedAtは見ない
	out := make([]model.StockTransaction, 0)
	for i := len(v.s.ledger) - 1; i >= 0; i-- {
		if v.s.ledger[i].ProductID == productID {
			out = append(out, v.s.ledger[i])
		}
	}
	if n := repo.NormalizeLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (v storeLedger) MarkOrderSold(ctx context.Context, orderID string) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.s.markOrderSoldLocked(orderID), nil
}

func (s *Store) markOrderSoldLocked(orderID string) int64 {
	var n int64
	for i := range s.ledger {
		e := &s.ledger[i]
		if e.OrderID != nil && *e.OrderID == orderID && e.Type == model.StockTxReservation {
			e.Type = model.StockTxSale
			n++
		}
	}
	return n
}

type storeAlerts struct{ s *Store }

func (v storeAlerts) Create(ctx context.Context, alert model.StockAlert) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.alerts = append(v.s.alerts, alert)
	return nil
}

func (v storeAlerts) Acknowledge(ctx context.Context, alertID string, at time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for i := range v.s.alerts {
		a := &v.s.alerts[i]
		if a.ID != alertID {
			continue
		}
		if !a.Acknowledged {
			a.Acknowledged = true
			a.AcknowledgedAt = &at
		}
		return nil
	}
	return repo.ErrNotFound
}

func (v storeAlerts) List(ctx context.Context, filter repo.StockAlertFilter) ([]model.StockAlert, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	out := make([]model.StockAlert, 0)
	for i := len(v.s.alerts) - 1; i >= 0; i-- {
		a := v.s.alerts[i]
		if filter.ProductID != nil && a.ProductID != *filter.ProductID {
			continue
		}
		if filter.OnlyOpen && a.Acknowledged {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n := repo.NormalizeLimit(filter.Limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}
