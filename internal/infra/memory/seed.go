package memory

import (
	"encoding/json"
	"fmt"
	"os"

	"stockledger/internal/domain/model"
)

// LoadSeedFile は STORE_DRIVER=memory で起動するときの商品一覧（JSON配列）を読む。
// min_stock が無い商品は既定値にする。
func LoadSeedFile(path string) ([]model.Product, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var raw []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Stock    int64  `json:"stock"`
		MinStock *int64 `json:"min_stock"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	products := make([]model.Product, 0, len(raw))
	for i, r := range raw {
		if r.ID == "" {
			return nil, fmt.Errorf("seed file: product #%d has no id", i)
		}
		if r.Stock < 0 {
			return nil, fmt.Errorf("seed file: product %s has negative stock", r.ID)
		}
		p := model.Product{ID: r.ID, Name: r.Name, Stock: r.Stock, MinStock: model.DefaultMinStock}
		if r.MinStock != nil {
			p.MinStock = *r.MinStock
		}
		products = append(products, p)
	}
	return products, nil
}
