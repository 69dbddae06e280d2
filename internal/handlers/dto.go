package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/nplusone-fashion/fulfillment-service/internal/domain"
	"github.com/nplusone-fashion/fulfillment-service/internal/service"
)

type CustomerDTO struct {
	CustomerID   string `json:"customer_id,omitempty"`
	Name         string `json:"name"`
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

type ProductRef struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	SKU       string  `json:"sku,omitempty"`
	Price     float64 `json:"price"`
	SalePrice float64 `json:"sale_price,omitempty"`
	TaxRate   float64 `json:"tax_rate,omitempty"`
	HSNCode   string  `json:"hsn_code,omitempty"`
}

type CheckoutItem struct {
	Product  ProductRef `json:"product"`
	Quantity int        `json:"quantity"`
	Size     string     `json:"size,omitempty"`
	Color    string     `json:"color,omitempty"`
}

type PlaceOrderRequest struct {
	Customer      CustomerDTO    `json:"customer"`
	Items         []CheckoutItem `json:"items"`
	Subtotal      float64        `json:"subtotal,omitempty"`
	TaxTotal      float64        `json:"tax_total,omitempty"`
	ShippingCost  float64        `json:"shipping_cost,omitempty"`
	DiscountTotal float64        `json:"discount_total,omitempty"`
	Total         float64        `json:"total"`
	PaymentMethod string         `json:"payment_method"`
}

// Apparel defaults snapshotted onto items that carry no tax data of
// their own (GST slab and HSN chapter for garments).
const (
	defaultTaxRate = 5
	defaultHSNCode = "6204"
)

func (r *PlaceOrderRequest) toInput() service.PlaceOrderInput {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, ci := range r.Items {
		price := ci.Product.Price
		if ci.Product.SalePrice > 0 {
			price = ci.Product.SalePrice
		}
		taxRate := ci.Product.TaxRate
		if taxRate == 0 {
			taxRate = defaultTaxRate
		}
		hsn := ci.Product.HSNCode
		if hsn == "" {
			hsn = defaultHSNCode
		}

		var productID uuid.NullUUID
		if parsed, err := uuid.Parse(ci.Product.ID); err == nil {
			productID = uuid.NullUUID{UUID: parsed, Valid: true}
		}

		items = append(items, domain.OrderItem{
			ProductID:     productID,
			ProductName:   ci.Product.Title,
			ProductSKU:    ci.Product.SKU,
			Quantity:      ci.Quantity,
			PricePerUnit:  price,
			SelectedSize:  ci.Size,
			SelectedColor: ci.Color,
			TaxRate:       taxRate,
			HSNCode:       hsn,
		})
	}

	subtotal := r.Subtotal
	if subtotal == 0 {
		for _, item := range items {
			subtotal += item.PricePerUnit * float64(item.Quantity)
		}
	}

	var customerID uuid.NullUUID
	if parsed, err := uuid.Parse(r.Customer.CustomerID); err == nil {
		customerID = uuid.NullUUID{UUID: parsed, Valid: true}
	}

	country := r.Customer.Country
	if country == "" {
		country = "India"
	}

	return service.PlaceOrderInput{
		CustomerID: customerID,
		Address: domain.ShippingAddress{
			FullName:     r.Customer.Name,
			Email:        r.Customer.Email,
			PhoneNumber:  r.Customer.PhoneNumber,
			AltPhone:     r.Customer.AltPhone,
			AddressLine1: r.Customer.AddressLine1,
			AddressLine2: r.Customer.AddressLine2,
			City:         r.Customer.City,
			State:        r.Customer.State,
			Pincode:      r.Customer.Pincode,
			Country:      country,
		},
		Items:         items,
		Subtotal:      subtotal,
		TaxTotal:      r.TaxTotal,
		ShippingCost:  r.ShippingCost,
		DiscountTotal: r.DiscountTotal,
		PaymentMethod: r.PaymentMethod,
	}
}

// PaymentCallbackRequest keeps the gateway's wire field names.
type PaymentCallbackRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	OrderDBID         string `json:"order_db_id"`
}

type CourierWebhookEvent struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Location  string    `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type CourierWebhookRequest struct {
	CourierName    string                `json:"courier_name"`
	TrackingNumber string                `json:"tracking_number"`
	CurrentStatus  string                `json:"current_status"`
	Events         []CourierWebhookEvent `json:"events"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

type OrderResponse struct {
	ID             uuid.UUID              `json:"id"`
	CustomerID     *uuid.UUID             `json:"customer_id,omitempty"`
	Items          []domain.OrderItem     `json:"items"`
	Subtotal       float64                `json:"subtotal"`
	TaxTotal       float64                `json:"tax_total"`
	ShippingCost   float64                `json:"shipping_cost"`
	DiscountTotal  float64                `json:"discount_total"`
	TotalAmount    float64                `json:"total_amount"`
	Status         string                 `json:"status"`
	PaymentStatus  string                 `json:"payment_status"`
	PaymentMethod  string                 `json:"payment_method"`
	Address        domain.ShippingAddress `json:"shipping_address"`
	CourierName    string                 `json:"courier_name,omitempty"`
	TrackingID     string                 `json:"tracking_id,omitempty"`
	TrackingEvents []domain.TrackingEvent `json:"tracking_events"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

func toOrderResponse(order *domain.Order) OrderResponse {
	var customerID *uuid.UUID
	if order.CustomerID.Valid {
		id := order.CustomerID.UUID
		customerID = &id
	}
	return OrderResponse{
		ID:             order.ID,
		CustomerID:     customerID,
		Items:          order.Items,
		Subtotal:       order.Subtotal,
		TaxTotal:       order.TaxTotal,
		ShippingCost:   order.ShippingCost,
		DiscountTotal:  order.DiscountTotal,
		TotalAmount:    order.TotalAmount,
		Status:         string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		PaymentMethod:  order.PaymentMethod,
		Address:        order.Address,
		CourierName:    order.CourierName,
		TrackingID:     order.TrackingID,
		TrackingEvents: order.TrackingEvents,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
}
