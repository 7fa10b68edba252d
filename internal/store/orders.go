package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/abba-pos/api/internal/order"
)

// ItemParams is one line of an order being created or replaced.
type ItemParams struct {
	MenuItemID uuid.UUID
	Name       string
	Price      decimal.Decimal
	Quantity   int32
	Note       string
}

// CreateOrderParams carries everything needed to persist a new order.
// Totals are computed by the caller so pricing stays in one place.
type CreateOrderParams struct {
	Number     string
	Identifier string
	RoomNumber string
	CreatedBy  uuid.UUID
	Items      []ItemParams
	Subtotal   decimal.Decimal
	Total      decimal.Decimal
}

const orderColumns = `id, order_number, identifier, room_number, status, subtotal, tip_amount, total, created_at, updated_at`

func scanOrder(row pgx.Row) (order.Snapshot, error) {
	var snap order.Snapshot
	err := row.Scan(
		&snap.ID, &snap.Number, &snap.Identifier, &snap.RoomNumber, &snap.Status,
		&snap.Subtotal, &snap.TipAmount, &snap.Total, &snap.CreatedAt, &snap.UpdatedAt,
	)
	return snap, mapError(err)
}

// CountOrdersToday returns how many orders exist for the current day. The
// caller derives the next human order number from it and retries on a
// unique violation.
func (s *Store) CountOrdersToday(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE created_at::DATE = CURRENT_DATE`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count today's orders: %w", err)
	}
	return count, nil
}

// CreateOrder inserts an order and its items in one transaction and
// returns the stored snapshot. A duplicate order number surfaces as
// ErrUniqueViolation.
func (s *Store) CreateOrder(ctx context.Context, p CreateOrderParams) (order.Snapshot, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return order.Snapshot{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	snap, err := scanOrder(tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, identifier, room_number, created_by, subtotal, total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+orderColumns,
		p.Number, p.Identifier, p.RoomNumber, nullableUUID(p.CreatedBy), p.Subtotal, p.Total,
	))
	if err != nil {
		return order.Snapshot{}, err
	}

	for i, item := range p.Items {
		var li order.LineItem
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, menu_item_id, name, price, quantity, note)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, menu_item_id, name, price, quantity, note, is_prepared, is_served`,
			snap.ID, item.MenuItemID, item.Name, item.Price, item.Quantity, item.Note,
		).Scan(&li.ID, &li.MenuItemID, &li.Name, &li.Price, &li.Quantity, &li.Note, &li.IsPrepared, &li.IsServed)
		if err != nil {
			return order.Snapshot{}, fmt.Errorf("items[%d]: %w", i, mapError(err))
		}
		snap.Items = append(snap.Items, li)
	}

	if err := tx.Commit(ctx); err != nil {
		return order.Snapshot{}, fmt.Errorf("commit: %w", err)
	}
	return snap, nil
}

// GetOrder fetches one order with its items.
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (order.Snapshot, error) {
	snap, err := scanOrder(s.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id,
	))
	if err != nil {
		return order.Snapshot{}, err
	}
	items, err := s.orderItems(ctx, []uuid.UUID{id})
	if err != nil {
		return order.Snapshot{}, err
	}
	snap.Items = items[id]
	return snap, nil
}

// ListFilter narrows ListOrders. Zero values mean no constraint.
type ListFilter struct {
	Status order.Status
	From   time.Time
	To     time.Time
	Search string
	Limit  int32
	Offset int32
}

// ListOrders returns orders newest first, with items attached.
func (s *Store) ListOrders(ctx context.Context, f ListFilter) ([]order.Snapshot, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	args := []any{}

	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		query += fmt.Sprintf(" AND (order_number ILIKE $%d OR identifier ILIKE $%d)", len(args), len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return s.queryOrders(ctx, query, args...)
}

// ListActiveOrders returns every non-terminal order, oldest first, for
// seeding the dashboard board.
func (s *Store) ListActiveOrders(ctx context.Context) ([]order.Snapshot, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status IN ('pending', 'preparing', 'ready', 'served')
		ORDER BY created_at ASC`)
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]order.Snapshot, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var snaps []order.Snapshot
	var ids []uuid.UUID
	for rows.Next() {
		snap, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
		ids = append(ids, snap.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return snaps, nil
	}

	items, err := s.orderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range snaps {
		snaps[i].Items = items[snaps[i].ID]
	}
	return snaps, nil
}

func (s *Store) orderItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]order.LineItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT order_id, id, menu_item_id, name, price, quantity, note, is_prepared, is_served
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at ASC`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]order.LineItem)
	for rows.Next() {
		var orderID uuid.UUID
		var li order.LineItem
		if err := rows.Scan(&orderID, &li.ID, &li.MenuItemID, &li.Name, &li.Price, &li.Quantity, &li.Note, &li.IsPrepared, &li.IsServed); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], li)
	}
	return items, rows.Err()
}

// UpdateOrderStatus transitions an order from one status to another. The
// WHERE clause carries the expected current status: when a concurrent
// writer got there first, no row matches and ErrNotFound is returned so
// the caller can report the conflict.
func (s *Store) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to order.Status, tip decimal.Decimal, roomNumber string) (order.Snapshot, error) {
	snap, err := scanOrder(s.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $3,
		    tip_amount = tip_amount + $4,
		    total = subtotal + tip_amount + $4,
		    room_number = CASE WHEN $5 <> '' THEN $5 ELSE room_number END,
		    updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+orderColumns,
		id, from, to, tip, roomNumber,
	))
	if err != nil {
		return order.Snapshot{}, err
	}
	items, err := s.orderItems(ctx, []uuid.UUID{id})
	if err != nil {
		return order.Snapshot{}, err
	}
	snap.Items = items[id]
	return snap, nil
}

// ReplaceEditableItems swaps out the unfulfilled lines of an order for the
// given set and recomputes its totals, all in one transaction. Lines the
// kitchen already prepared or served are untouched.
func (s *Store) ReplaceEditableItems(ctx context.Context, id uuid.UUID, items []ItemParams) (order.Snapshot, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return order.Snapshot{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the order row for the duration of the swap.
	var status order.Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		return order.Snapshot{}, mapError(err)
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM order_items
		WHERE order_id = $1 AND NOT (is_prepared OR is_served)`, id)
	if err != nil {
		return order.Snapshot{}, fmt.Errorf("delete editable items: %w", err)
	}

	for i, item := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, menu_item_id, name, price, quantity, note)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, item.MenuItemID, item.Name, item.Price, item.Quantity, item.Note,
		)
		if err != nil {
			return order.Snapshot{}, fmt.Errorf("items[%d]: %w", i, mapError(err))
		}
	}

	snap, err := scanOrder(tx.QueryRow(ctx, `
		UPDATE orders
		SET subtotal = agg.subtotal,
		    total = agg.subtotal + tip_amount,
		    updated_at = now()
		FROM (
			SELECT COALESCE(SUM(price * quantity), 0) AS subtotal
			FROM order_items WHERE order_id = $1
		) agg
		WHERE id = $1
		RETURNING `+orderColumns, id,
	))
	if err != nil {
		return order.Snapshot{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return order.Snapshot{}, fmt.Errorf("commit: %w", err)
	}

	lineItems, err := s.orderItems(ctx, []uuid.UUID{id})
	if err != nil {
		return order.Snapshot{}, err
	}
	snap.Items = lineItems[id]
	return snap, nil
}

// SetItemFlags updates per-line fulfilment. Nil pointers leave the flag
// unchanged.
func (s *Store) SetItemFlags(ctx context.Context, orderID, itemID uuid.UUID, prepared, served *bool) (order.Snapshot, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE order_items
		SET is_prepared = COALESCE($3, is_prepared),
		    is_served = COALESCE($4, is_served)
		WHERE id = $2 AND order_id = $1`,
		orderID, itemID, prepared, served,
	)
	if err != nil {
		return order.Snapshot{}, mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return order.Snapshot{}, ErrNotFound
	}
	if _, err := s.db.Exec(ctx, `UPDATE orders SET updated_at = now() WHERE id = $1`, orderID); err != nil {
		return order.Snapshot{}, err
	}
	return s.GetOrder(ctx, orderID)
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
