package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// MenuItem is a sellable product.
type MenuItem struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable bool            `json:"is_available"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

const menuColumns = `id, name, category, price, is_available, created_at, updated_at`

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var mi MenuItem
	err := row.Scan(&mi.ID, &mi.Name, &mi.Category, &mi.Price, &mi.IsAvailable, &mi.CreatedAt, &mi.UpdatedAt)
	return mi, mapError(err)
}

// MenuItemParams carries a menu item create or update.
type MenuItemParams struct {
	Name        string
	Category    string
	Price       decimal.Decimal
	IsAvailable bool
}

func (s *Store) CreateMenuItem(ctx context.Context, p MenuItemParams) (MenuItem, error) {
	return scanMenuItem(s.db.QueryRow(ctx, `
		INSERT INTO menu_items (name, category, price, is_available)
		VALUES ($1, $2, $3, $4)
		RETURNING `+menuColumns,
		p.Name, p.Category, p.Price, p.IsAvailable,
	))
}

func (s *Store) UpdateMenuItem(ctx context.Context, id uuid.UUID, p MenuItemParams) (MenuItem, error) {
	return scanMenuItem(s.db.QueryRow(ctx, `
		UPDATE menu_items
		SET name = $2, category = $3, price = $4, is_available = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+menuColumns,
		id, p.Name, p.Category, p.Price, p.IsAvailable,
	))
}

// DeleteMenuItem retires an item. Rows are kept so historic order lines
// keep their foreign key; the item just stops being offered.
func (s *Store) DeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE menu_items SET is_available = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(s.db.QueryRow(ctx,
		`SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id))
}

// ListMenuItems returns the menu sorted by category then name. With
// onlyAvailable set, retired items are skipped.
func (s *Store) ListMenuItems(ctx context.Context, onlyAvailable bool) ([]MenuItem, error) {
	query := `SELECT ` + menuColumns + ` FROM menu_items`
	if onlyAvailable {
		query += ` WHERE is_available`
	}
	query += ` ORDER BY category, name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		mi, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, mi)
	}
	return items, rows.Err()
}
