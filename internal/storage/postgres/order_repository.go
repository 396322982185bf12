package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/basket/internal/domain"
)

const orderColumns = `
	id, user_id, mart_id, mart_name, status, delivery_charge, total_minor,
	distance_km, total_weight_kg, contact_number,
	address_id, address_snapshot, address_short, address_lat, address_long,
	version, created_at, updated_at`

type orderRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
// Timeline и outbox пишутся в те же таблицы, что читают timeline- и outbox-репозитории.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{
		db:  store.DB(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *orderRepository) CreateBatch(ctx context.Context, orders []domain.Order, timeline []domain.TimelineEvent, events []domain.OutboxMessage) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return withTx(queryCtx, r.db, func(tx *sql.Tx) error {
		for _, order := range orders {
			if err := insertOrder(queryCtx, tx, order); err != nil {
				return err
			}
		}
		return r.writeSideEffects(queryCtx, tx, timeline, events)
	})
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(queryCtx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(queryCtx, []string{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Order, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(queryCtx, query+" LIMIT $2", userID, limit)
	} else {
		rows, err = r.db.QueryContext(queryCtx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	ids := make([]string, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.loadItems(queryCtx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

// Save обновляет статус заказа при совпадении версии и пишет события в той же транзакции.
func (r *orderRepository) Save(ctx context.Context, order domain.Order, timeline []domain.TimelineEvent, events []domain.OutboxMessage) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return withTx(queryCtx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(queryCtx, `
			UPDATE orders
			SET status = $1,
			    version = version + 1,
			    updated_at = $2
			WHERE id = $3
			  AND version = $4
		`, string(order.Status), order.UpdatedAt, order.ID, order.Version)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			exists, err := orderExists(queryCtx, tx, order.ID)
			if err != nil {
				return err
			}
			if !exists {
				return domain.ErrOrderNotFound
			}
			return domain.ErrOrderVersionConflict
		}

		return r.writeSideEffects(queryCtx, tx, timeline, events)
	})
}

func (r *orderRepository) writeSideEffects(ctx context.Context, ex execer, timeline []domain.TimelineEvent, events []domain.OutboxMessage) error {
	for _, ev := range timeline {
		if err := insertTimeline(ctx, ex, ev); err != nil {
			return err
		}
	}
	now := r.now()
	for _, msg := range events {
		if _, err := insertOutbox(ctx, ex, msg, now); err != nil {
			return err
		}
	}
	return nil
}

// loadItems читает позиции сразу для всех заказов, сохраняя порядок строк заказа.
func (r *orderRepository) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, id, product_id, mart_id, name, qty, price_minor, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, line_no
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			item    domain.OrderItem
			price   int64
		)
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.MartID, &item.Name, &item.Qty, &price, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.PriceAtPurchase = domain.Money(price)
		item.CreatedAt = item.CreatedAt.UTC()
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

func insertOrder(ctx context.Context, ex execer, order domain.Order) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`,
		order.ID, order.UserID, order.MartID, order.MartName, string(order.Status),
		order.DeliveryCharge, int64(order.Total),
		order.DistanceKm, order.TotalWeightKg, order.ContactNumber,
		order.Address.AddressID, order.Address.Text, order.Address.Short,
		order.Address.Location.Lat, order.Address.Location.Long,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, line_no, product_id, mart_id, name, qty, price_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			item.ID, order.ID, i, item.ProductID, item.MartID, item.Name,
			item.Qty, int64(item.PriceAtPurchase), item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		status string
		total  int64
	)
	if err := row.Scan(
		&order.ID, &order.UserID, &order.MartID, &order.MartName, &status,
		&order.DeliveryCharge, &total,
		&order.DistanceKm, &order.TotalWeightKg, &order.ContactNumber,
		&order.Address.AddressID, &order.Address.Text, &order.Address.Short,
		&order.Address.Location.Lat, &order.Address.Location.Long,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.Total = domain.Money(total)
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

func orderExists(ctx context.Context, tx *sql.Tx, orderID string) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

var _ domain.OrderRepository = (*orderRepository)(nil)
