package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "PENDING"
	OrderStatusProcessing  OrderStatus = "PROCESSING"
	OrderStatusReadyToShip OrderStatus = "READY_TO_SHIP"
	OrderStatusShipped     OrderStatus = "SHIPPED"
	OrderStatusDelivered   OrderStatus = "DELIVERED"
	OrderStatusCancelled   OrderStatus = "CANCELLED"
	OrderStatusReturned    OrderStatus = "RETURNED"
)

// IsTerminal reports whether no further fulfillment step may run.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusReturned
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

const (
	PaymentMethodCOD      = "COD"
	PaymentMethodRazorpay = "RAZORPAY"
)

type ShippingAddress struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phone_number"`
	AltPhone     string `json:"alt_phone,omitempty"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	Country      string `json:"country"`
}

type Order struct {
	ID             uuid.UUID       `json:"id"`
	CustomerID     uuid.NullUUID   `json:"customer_id,omitempty"` // null for guest checkout
	Subtotal       float64         `json:"subtotal"`
	TaxTotal       float64         `json:"tax_total"`
	ShippingCost   float64         `json:"shipping_cost"`
	DiscountTotal  float64         `json:"discount_total"`
	TotalAmount    float64         `json:"total_amount"`
	Status         OrderStatus     `json:"status"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentID      string          `json:"payment_id,omitempty"`
	Address        ShippingAddress `json:"shipping_address"`
	CourierName    string          `json:"courier_name,omitempty"`
	TrackingID     string          `json:"tracking_id,omitempty"`
	TrackingEvents []TrackingEvent `json:"tracking_events"`
	Items          []OrderItem     `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID            uuid.UUID     `json:"id"`
	OrderID       uuid.UUID     `json:"order_id"`
	ProductID     uuid.NullUUID `json:"product_id,omitempty"` // null once the product is deleted
	ProductName   string        `json:"product_name"`
	ProductSKU    string        `json:"product_sku,omitempty"`
	Quantity      int           `json:"quantity"`
	PricePerUnit  float64       `json:"price_per_unit"`
	SelectedSize  string        `json:"selected_size,omitempty"`
	SelectedColor string        `json:"selected_color,omitempty"`
	TaxRate       float64       `json:"tax_rate"`
	HSNCode       string        `json:"hsn_code"`
}

// currencyUnit is the smallest representable amount (one paisa).
const currencyUnit = 0.01

// NewOrder builds a PENDING order with its item snapshots. Monetary fields
// are captured as given; TotalsConsistent validates the arithmetic.
func NewOrder(customerID uuid.NullUUID, address ShippingAddress, paymentMethod string, subtotal, taxTotal, shippingCost, discountTotal float64, items []OrderItem) *Order {
	orderID := uuid.New()
	now := time.Now()

	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = orderID
	}

	return &Order{
		ID:            orderID,
		CustomerID:    customerID,
		Subtotal:      subtotal,
		TaxTotal:      taxTotal,
		ShippingCost:  shippingCost,
		DiscountTotal: discountTotal,
		TotalAmount:   subtotal + taxTotal + shippingCost - discountTotal,
		Status:        OrderStatusPending,
		PaymentStatus: PaymentStatusPending,
		PaymentMethod: paymentMethod,
		Address:       address,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// TotalsConsistent checks total = subtotal + tax + shipping - discount
// within one currency unit, and that no monetary field is negative.
func (o *Order) TotalsConsistent() bool {
	if o.Subtotal < 0 || o.TaxTotal < 0 || o.ShippingCost < 0 || o.DiscountTotal < 0 || o.TotalAmount < 0 {
		return false
	}
	expected := o.Subtotal + o.TaxTotal + o.ShippingCost - o.DiscountTotal
	return math.Abs(o.TotalAmount-expected) <= currencyUnit
}

func (o *Order) IsCOD() bool {
	return o.PaymentMethod == PaymentMethodCOD
}

// CanBookShipment guards the single-waybill invariant: an order that
// already carries a tracking ID must be cancelled before rebooking.
func (o *Order) CanBookShipment() bool {
	return o.TrackingID == "" && !o.Status.IsTerminal()
}

// AppendEvent adds to the order's tracking history. Events are never
// removed or reordered.
func (o *Order) AppendEvent(ev TrackingEvent) {
	o.TrackingEvents = append(o.TrackingEvents, ev)
	o.UpdatedAt = time.Now()
}

// CurrentTrackingStatus derives the visible status from the latest event,
// defaulting to "placed" when no event has been recorded yet.
func (o *Order) CurrentTrackingStatus() string {
	if len(o.TrackingEvents) == 0 {
		return TrackingPlaced
	}
	return o.TrackingEvents[len(o.TrackingEvents)-1].Status
}
