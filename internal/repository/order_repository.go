package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nplusone-fashion/fulfillment-service/internal/domain"
)

// OrderRepository is the single source of truth for order status and
// payment status. Tracking history is an append-only JSON array embedded
// on the order row; items live in their own table and are written once.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrder writes the order row and then its item rows. If the item
// insert fails after the order row succeeded, the error is surfaced and
// the order row is left in place; the orphan is an operational cleanup
// concern, not compensated in-band.
func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	addressJSON, err := json.Marshal(order.Address)
	if err != nil {
		return fmt.Errorf("shipping address serialization error: %v", err)
	}

	eventsJSON, err := json.Marshal(order.TrackingEvents)
	if err != nil {
		return fmt.Errorf("tracking events serialization error: %v", err)
	}

	query := `
		INSERT INTO orders (
			id, customer_id, subtotal, tax_total, shipping_cost, discount_total,
			total_amount, status, payment_status, payment_method,
			shipping_address, tracking_events, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.CustomerID,
		order.Subtotal,
		order.TaxTotal,
		order.ShippingCost,
		order.DiscountTotal,
		order.TotalAmount,
		order.Status,
		order.PaymentStatus,
		order.PaymentMethod,
		addressJSON,
		eventsJSON,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("order creation error: %v", err)
	}

	itemQuery := `
		INSERT INTO order_items (
			id, order_id, product_id, product_name, product_sku, quantity,
			price_per_unit, selected_size, selected_color, tax_rate, hsn_code
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	for _, item := range order.Items {
		_, err = r.db.ExecContext(
			ctx,
			itemQuery,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.ProductSKU,
			item.Quantity,
			item.PricePerUnit,
			item.SelectedSize,
			item.SelectedColor,
			item.TaxRate,
			item.HSNCode,
		)
		if err != nil {
			return fmt.Errorf("order items creation error: %v", err)
		}
	}

	return nil
}

func (r *OrderRepository) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	query := `
		SELECT id, customer_id, subtotal, tax_total, shipping_cost, discount_total,
			   total_amount, status, payment_status, payment_method, payment_id,
			   shipping_address, courier_name, tracking_id, tracking_events,
			   created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	order := &domain.Order{}
	var addressJSON, eventsJSON []byte
	var paymentID, courierName, trackingID sql.NullString

	err := r.db.QueryRowContext(ctx, query, orderID).Scan(
		&order.ID,
		&order.CustomerID,
		&order.Subtotal,
		&order.TaxTotal,
		&order.ShippingCost,
		&order.DiscountTotal,
		&order.TotalAmount,
		&order.Status,
		&order.PaymentStatus,
		&order.PaymentMethod,
		&paymentID,
		&addressJSON,
		&courierName,
		&trackingID,
		&eventsJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("order fetch error: %v", err)
	}

	order.PaymentID = paymentID.String
	order.CourierName = courierName.String
	order.TrackingID = trackingID.String

	if err := json.Unmarshal(addressJSON, &order.Address); err != nil {
		return nil, fmt.Errorf("shipping address deserialization error: %v", err)
	}
	if len(eventsJSON) > 0 {
		if err := json.Unmarshal(eventsJSON, &order.TrackingEvents); err != nil {
			return nil, fmt.Errorf("tracking events deserialization error: %v", err)
		}
	}

	items, err := r.getOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (r *OrderRepository) getOrderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, product_sku, quantity,
			   price_per_unit, selected_size, selected_color, tax_rate, hsn_code
		FROM order_items
		WHERE order_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("order items fetch error: %v", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		var sku, size, color sql.NullString

		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&sku,
			&item.Quantity,
			&item.PricePerUnit,
			&size,
			&color,
			&item.TaxRate,
			&item.HSNCode,
		)
		if err != nil {
			return nil, fmt.Errorf("order item scan error: %v", err)
		}

		item.ProductSKU = sku.String
		item.SelectedSize = size.String
		item.SelectedColor = color.String
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *OrderRepository) GetOrdersByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	query := `
		SELECT id FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("orders fetch error: %v", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("order id scan error: %v", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var orders []*domain.Order
	for _, id := range ids {
		order, err := r.GetOrderByID(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, nil
}

// ConfirmPayment atomically moves the order to PROCESSING/PAID. The
// payment_status guard makes the transition one-way: a PAID order can
// never regress to PENDING, and a replayed callback affects zero rows.
func (r *OrderRepository) ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentID, paymentMethod string, event domain.TrackingEvent) (bool, error) {
	eventJSON, err := json.Marshal([]domain.TrackingEvent{event})
	if err != nil {
		return false, fmt.Errorf("tracking event serialization error: %v", err)
	}

	query := `
		UPDATE orders
		SET status = $2, payment_status = $3, payment_id = $4, payment_method = $5,
			tracking_events = COALESCE(tracking_events, '[]'::jsonb) || $6::jsonb,
			updated_at = $7
		WHERE id = $1 AND payment_status = $8
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		orderID,
		domain.OrderStatusProcessing,
		domain.PaymentStatusPaid,
		paymentID,
		paymentMethod,
		eventJSON,
		time.Now(),
		domain.PaymentStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("payment confirmation error: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// MarkProcessing confirms a COD order immediately after its items are
// persisted; payment stays PENDING until the courier collects.
func (r *OrderRepository) MarkProcessing(ctx context.Context, orderID uuid.UUID) error {
	query := `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, orderID, domain.OrderStatusProcessing, time.Now())
	if err != nil {
		return fmt.Errorf("order status update error: %v", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// SetShipmentBooked persists the carrier assignment. The tracking_id
// guard enforces the at-most-one-waybill invariant: rebooking an already
// booked order affects zero rows and reports ErrAlreadyBooked.
func (r *OrderRepository) SetShipmentBooked(ctx context.Context, orderID uuid.UUID, courierName, waybill string, status domain.OrderStatus, event domain.TrackingEvent) error {
	eventJSON, err := json.Marshal([]domain.TrackingEvent{event})
	if err != nil {
		return fmt.Errorf("tracking event serialization error: %v", err)
	}

	query := `
		UPDATE orders
		SET courier_name = $2, tracking_id = $3, status = $4,
			tracking_events = COALESCE(tracking_events, '[]'::jsonb) || $5::jsonb,
			updated_at = $6
		WHERE id = $1 AND tracking_id IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, orderID, courierName, waybill, status, eventJSON, time.Now())
	if err != nil {
		return fmt.Errorf("shipment booking update error: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrAlreadyBooked
	}
	return nil
}

// AppendTrackingEvents appends courier-pushed events and mirrors the
// courier's reported status onto the order. An empty status leaves the
// column alone; a non-empty one is last-write-wins, so out-of-order
// webhook deliveries can regress it.
func (r *OrderRepository) AppendTrackingEvents(ctx context.Context, orderID uuid.UUID, events []domain.TrackingEvent, courierName, trackingNumber string, status domain.OrderStatus) error {
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("tracking events serialization error: %v", err)
	}

	query := `
		UPDATE orders
		SET tracking_events = COALESCE(tracking_events, '[]'::jsonb) || $2::jsonb,
			status = COALESCE(NULLIF($3, ''), status),
			courier_name = COALESCE(NULLIF($4, ''), courier_name),
			tracking_id = COALESCE(tracking_id, NULLIF($5, '')),
			updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, orderID, eventsJSON, string(status), courierName, trackingNumber, time.Now())
	if err != nil {
		return fmt.Errorf("tracking update error: %v", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// UpdateStatus is the administrative transition path (CANCELLED,
// RETURNED, manual corrections), appending the matching event.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus, event domain.TrackingEvent) error {
	eventJSON, err := json.Marshal([]domain.TrackingEvent{event})
	if err != nil {
		return fmt.Errorf("tracking event serialization error: %v", err)
	}

	query := `
		UPDATE orders
		SET status = $2,
			tracking_events = COALESCE(tracking_events, '[]'::jsonb) || $3::jsonb,
			updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, orderID, status, eventJSON, time.Now())
	if err != nil {
		return fmt.Errorf("order status update error: %v", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
