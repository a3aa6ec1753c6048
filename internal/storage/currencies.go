package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// GetCurrencies returns every supported currency ordered by code.
func (s *SQLiteStorage) GetCurrencies(ctx context.Context) ([]model.Currency, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT code, name, symbol FROM currencies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query currencies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var currencies []model.Currency
	for rows.Next() {
		var c model.Currency
		if err := rows.Scan(&c.Code, &c.Name, &c.Symbol); err != nil {
			return nil, fmt.Errorf("failed to scan currency: %w", err)
		}
		currencies = append(currencies, c)
	}
	return currencies, rows.Err()
}
