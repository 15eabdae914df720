package memory

import (
	"context"
	"time"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"
)

// 1回分のTx。書き込みはcommitまで溜めておく
type tx struct {
	s *Store

	// 読んだ商品とそのときのversion（0は存在しなかった）
	reads  map[string]uint64
	stocks map[string]int64

	ledger      []model.StockTransaction
	alerts      []model.StockAlert
	soldOrders  []string
	acknowledge map[string]time.Time
}

func newTx(s *Store) *tx {
	return &tx{
		s:           s,
		reads:       make(map[string]uint64),
		stocks:      make(map[string]int64),
		acknowledge: make(map[string]time.Time),
	}
}

func (t *tx) Products() repo.ProductRepository                   { return txProducts{t} }
func (t *tx) StockTransactions() repo.StockTransactionRepository { return txLedger{t} }
func (t *tx) StockAlerts() repo.StockAlertRepository             { return txAlerts{t} }

// Tx内の見え方（自分の書き込みを優先）
func (t *tx) view(id string) (model.Product, bool) {
	p, version, ok := t.s.read(id)
	if _, seen := t.reads[id]; !seen {
		t.reads[id] = version
	}
	if !ok {
		return model.Product{}, false
	}
	if stock, written := t.stocks[id]; written {
		p.Stock = stock
	}
	return p, true
}

func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	//読んだ後に誰かがcommitしていたら全部捨てる
	for id, seen := range t.reads {
		if s.products[id].version != seen {
			return repo.ErrConflict
		}
	}

	for id, stock := range t.stocks {
		rec, ok := s.products[id]
		if !ok {
			return repo.ErrConflict
		}
		s.seq++
		rec.product.Stock = stock
		rec.version = s.seq
		s.products[id] = rec
	}
	s.appendLedgerLocked(t.ledger...)
	s.alerts = append(s.alerts, t.alerts...)
	for _, orderID := range t.soldOrders {
		s.markOrderSoldLocked(orderID)
	}
	for id, at := range t.acknowledge {
		for i := range s.alerts {
			if s.alerts[i].ID == id && !s.alerts[i].Acknowledged {
				s.alerts[i].Acknowledged = true
				s.alerts[i].AcknowledgedAt = &at
			}
		}
	}
	return nil
}

type txProducts struct{ t *tx }

func (v txProducts) FindByID(ctx context.Context, id string) (model.Product, error) {
	p, ok := v.t.view(id)
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (v txProducts) FindByIDs(ctx context.Context, ids []string) (map[string]model.Product, error) {
	out := make(map[string]model.Product, len(ids))
	for _, id := range ids {
		if p, ok := v.t.view(id); ok {
			out[id] = p
		}
	}
	return out, nil
}

func (v txProducts) CompareAndSetStock(ctx context.Context, id string, expected int64, newStock int64) error {
	p, ok := v.t.view(id)
	if !ok || p.Stock != expected {
		return repo.ErrConflict
	}
	v.t.stocks[id] = newStock
	return nil
}

type txLedger struct{ t *tx }

func (v txLedger) Create(ctx context.Context, e model.StockTransaction) error {
	v.t.ledger = append(v.t.ledger, e)
	return nil
}

// 読み取りはcommit済みの内容
func (v txLedger) ListByProduct(ctx context.Context, productID string, limit int) ([]model.StockTransaction, error) {
	return storeLedger{v.t.s}.ListByProduct(ctx, productID, limit)
}

func (v txLedger) MarkOrderSold(ctx context.Context, orderID string) (int64, error) {
	v.t.soldOrders = append(v.t.soldOrders, orderID)
	return 0, nil
}

type txAlerts struct{ t *tx }

func (v txAlerts) Create(ctx context.Context, alert model.StockAlert) error {
	v.t.alerts = append(v.t.alerts, alert)
	return nil
}

func (v txAlerts) Acknowledge(ctx context.Context, alertID string, at time.Time) error {
	v.t.acknowledge[alertID] = at
	return nil
}

func (v txAlerts) List(ctx context.Context, filter repo.StockAlertFilter) ([]model.StockAlert, error) {
	return storeAlerts{v.t.s}.List(ctx, filter)
}
