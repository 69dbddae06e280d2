// Package service holds the fulfillment orchestrator: the state machine
// that takes a checkout from order creation through payment confirmation,
// inventory adjustment, shipment booking and notification.
//
// Failure posture: order creation and signature verification are hard
// failures surfaced to the caller. Everything after confirmation is
// soft: inventory, shipment booking, email and event publishing are
// attempted once, their failures logged and swallowed, so that "payment
// succeeded" always means "order confirmed" regardless of logistics or
// mail infrastructure health.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nplusone-fashion/fulfillment-service/internal/courier"
	"github.com/nplusone-fashion/fulfillment-service/internal/domain"
	"github.com/nplusone-fashion/fulfillment-service/internal/events"
)

type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	GetOrdersByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentID, paymentMethod string, event domain.TrackingEvent) (bool, error)
	MarkProcessing(ctx context.Context, orderID uuid.UUID) error
	SetShipmentBooked(ctx context.Context, orderID uuid.UUID, courierName, waybill string, status domain.OrderStatus, event domain.TrackingEvent) error
	AppendTrackingEvents(ctx context.Context, orderID uuid.UUID, events []domain.TrackingEvent, courierName, trackingNumber string, status domain.OrderStatus) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus, event domain.TrackingEvent) error
}

type StockAdjuster interface {
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error
}

type CourierGateway interface {
	CreateShipment(ctx context.Context, order *domain.Order, paymentMode string) (*courier.BookingResult, error)
	Cancel(ctx context.Context, awbs []string) (*courier.Response, error)
}

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *domain.Order) error
}

type SignatureVerifier interface {
	Verify(orderRef, paymentRef, providedSignature string) bool
}

type EventPublisher interface {
	PublishOrderEvent(eventType events.OrderEventType, orderID uuid.UUID, payload interface{}) error
}

const courierName = "iThinkLogistics"

type FulfillmentService struct {
	orders    OrderStore
	stock     StockAdjuster
	gateway   CourierGateway
	verifier  SignatureVerifier
	notifier  Notifier
	publisher EventPublisher
}

func NewFulfillmentService(orders OrderStore, stock StockAdjuster, gateway CourierGateway, verifier SignatureVerifier, notifier Notifier, publisher EventPublisher) *FulfillmentService {
	return &FulfillmentService{
		orders:    orders,
		stock:     stock,
		gateway:   gateway,
		verifier:  verifier,
		notifier:  notifier,
		publisher: publisher,
	}
}

type PlaceOrderInput struct {
	CustomerID    uuid.NullUUID
	Address       domain.ShippingAddress
	Items         []domain.OrderItem
	Subtotal      float64
	TaxTotal      float64
	ShippingCost  float64
	DiscountTotal float64
	PaymentMethod string
}

func (in *PlaceOrderInput) validate() error {
	if len(in.Items) == 0 {
		return fmt.Errorf("at least one item is required")
	}
	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive", i)
		}
		if item.PricePerUnit < 0 {
			return fmt.Errorf("item %d: price must not be negative", i)
		}
		if item.ProductName == "" {
			return fmt.Errorf("item %d: product name is required", i)
		}
	}
	if in.PaymentMethod != domain.PaymentMethodCOD && in.PaymentMethod != domain.PaymentMethodRazorpay {
		return fmt.Errorf("unsupported payment method: %s", in.PaymentMethod)
	}
	addr := in.Address
	if addr.FullName == "" || addr.PhoneNumber == "" || addr.AddressLine1 == "" || addr.City == "" || addr.Pincode == "" {
		return fmt.Errorf("incomplete shipping address")
	}
	return nil
}

// PlaceOrder creates the order and, for COD, confirms it immediately and
// runs the fulfillment side effects. Prepaid orders stay PENDING until
// the payment callback is verified. Creation failures are hard errors.
func (s *FulfillmentService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*domain.Order, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	order := domain.NewOrder(
		input.CustomerID,
		input.Address,
		input.PaymentMethod,
		input.Subtotal,
		input.TaxTotal,
		input.ShippingCost,
		input.DiscountTotal,
		input.Items,
	)
	if !order.TotalsConsistent() {
		return nil, fmt.Errorf("order totals are inconsistent")
	}

	order.AppendEvent(domain.NewTrackingEvent(domain.TrackingPlaced, "Order placed", "", domain.EventSourceSystem))

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("order creation failed: %v", err)
	}

	log.Printf("[fulfillment] order created: id=%s method=%s total=%.2f", order.ID, order.PaymentMethod, order.TotalAmount)
	s.publish(events.OrderCreated, order.ID, order)

	if order.IsCOD() {
		// COD confirmation is immediate; there is no gateway callback.
		confirmed := domain.NewTrackingEvent(domain.TrackingConfirmed, "Order confirmed (cash on delivery)", "", domain.EventSourceSystem)
		if err := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusProcessing, confirmed); err != nil {
			return nil, fmt.Errorf("order confirmation failed: %v", err)
		}
		order.Status = domain.OrderStatusProcessing
		order.AppendEvent(confirmed)

		s.runFulfillment(ctx, order)
	}

	return order, nil
}

// ConfirmPayment is the prepaid confirmation path, entered from the
// payment gateway callback. An invalid signature aborts with no state
// mutation. A replayed callback for an already-PAID order is a no-op:
// side effects run only on the PENDING->PAID transition.
func (s *FulfillmentService) ConfirmPayment(ctx context.Context, orderID uuid.UUID, orderRef, paymentRef, signature string) error {
	if !s.verifier.Verify(orderRef, paymentRef, signature) {
		return domain.ErrInvalidSignature
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	if order.PaymentStatus == domain.PaymentStatusPaid {
		log.Printf("[fulfillment] payment callback replay for order %s, ignoring", orderID)
		return nil
	}

	confirmed := domain.NewTrackingEvent(domain.TrackingConfirmed, "Payment received", "", domain.EventSourceSystem)
	ok, err := s.orders.ConfirmPayment(ctx, orderID, paymentRef, domain.PaymentMethodRazorpay, confirmed)
	if err != nil {
		return err
	}
	if !ok {
		// Lost the race against a concurrent callback; the winner runs
		// the side effects.
		log.Printf("[fulfillment] payment already confirmed concurrently for order %s", orderID)
		return nil
	}

	order.Status = domain.OrderStatusProcessing
	order.PaymentStatus = domain.PaymentStatusPaid
	order.PaymentID = paymentRef
	order.AppendEvent(confirmed)

	log.Printf("[fulfillment] payment confirmed: order=%s payment=%s", orderID, paymentRef)
	s.runFulfillment(ctx, order)

	return nil
}

// runFulfillment executes the soft steps for a confirmed order, in
// sequence: inventory, shipment booking, notification. Each failure is
// logged and the flow continues.
func (s *FulfillmentService) runFulfillment(ctx context.Context, order *domain.Order) {
	s.publish(events.OrderConfirmed, order.ID, order)

	for _, item := range order.Items {
		if !item.ProductID.Valid {
			continue
		}
		if err := s.stock.DecrementStock(ctx, item.ProductID.UUID, item.Quantity); err != nil {
			log.Printf("[fulfillment] stock decrement failed for product %s (order %s): %v", item.ProductID.UUID, order.ID, err)
		}
	}

	s.bookShipment(ctx, order, domain.OrderStatusShipped, domain.EventSourceSystem)

	if err := s.notifier.SendOrderConfirmation(ctx, order); err != nil {
		log.Printf("[fulfillment] confirmation email failed for order %s: %v", order.ID, err)
	}
}

// bookShipment attempts exactly one booking. A transport failure or a
// provider rejection never propagates: the order stays confirmed and an
// operator retries manually.
func (s *FulfillmentService) bookShipment(ctx context.Context, order *domain.Order, onSuccess domain.OrderStatus, source domain.EventSource) {
	if !order.CanBookShipment() {
		log.Printf("[fulfillment] skipping shipment booking for order %s: already booked or terminal", order.ID)
		return
	}

	result, err := s.gateway.CreateShipment(ctx, order, paymentMode(order))
	if err != nil {
		log.Printf("[fulfillment] shipment booking unreachable for order %s: %v", order.ID, err)
		return
	}
	if !result.Booked() {
		log.Printf("[fulfillment] shipment booking rejected for order %s: status=%s message=%s", order.ID, result.Status, result.Message)
		return
	}

	eventStatus := domain.TrackingShipped
	if onSuccess == domain.OrderStatusReadyToShip {
		eventStatus = domain.TrackingReadyToShip
	}
	event := domain.NewTrackingEvent(eventStatus, fmt.Sprintf("AWB generated: %s", result.Waybill), "", source)

	if err := s.orders.SetShipmentBooked(ctx, order.ID, courierName, result.Waybill, onSuccess, event); err != nil {
		log.Printf("[fulfillment] shipment booked (AWB %s) but order %s update failed: %v", result.Waybill, order.ID, err)
		return
	}

	order.CourierName = courierName
	order.TrackingID = result.Waybill
	order.Status = onSuccess
	order.AppendEvent(event)

	log.Printf("[fulfillment] shipment booked: order=%s awb=%s", order.ID, result.Waybill)
	s.publish(events.OrderShipped, order.ID, map[string]interface{}{
		"waybill": result.Waybill,
		"courier": courierName,
	})
}

// BookShipment is the manual retry path used by operators after a failed
// checkout-time booking. Unlike the checkout path, failures are surfaced.
func (s *FulfillmentService) BookShipment(ctx context.Context, orderID uuid.UUID) (string, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if !order.CanBookShipment() {
		return "", domain.ErrAlreadyBooked
	}

	result, err := s.gateway.CreateShipment(ctx, order, paymentMode(order))
	if err != nil {
		return "", fmt.Errorf("courier gateway unreachable: %v", err)
	}
	if !result.Booked() {
		return "", fmt.Errorf("shipment booking rejected: %s", result.Message)
	}

	event := domain.NewTrackingEvent(domain.TrackingReadyToShip, fmt.Sprintf("AWB generated: %s", result.Waybill), "", domain.EventSourceAdmin)
	if err := s.orders.SetShipmentBooked(ctx, orderID, courierName, result.Waybill, domain.OrderStatusReadyToShip, event); err != nil {
		return "", err
	}

	s.publish(events.OrderShipped, orderID, map[string]interface{}{
		"waybill": result.Waybill,
		"courier": courierName,
	})
	return result.Waybill, nil
}

// CourierEvent is one status entry from the courier's webhook payload.
type CourierEvent struct {
	Status    string
	Message   string
	Location  string
	Timestamp time.Time
}

// TrackingUpdate is the courier-originated status push.
type TrackingUpdate struct {
	CourierName    string
	TrackingNumber string
	CurrentStatus  string
	Events         []CourierEvent
}

// ApplyTrackingUpdate appends the courier's events to the order history
// and mirrors the reported status onto the order. Statuses are not
// validated as a forward-only progression; a late or duplicate delivery
// is applied as-is. Carrier codes with no order-status mapping append to
// the history without moving the order.
func (s *FulfillmentService) ApplyTrackingUpdate(ctx context.Context, orderID uuid.UUID, update TrackingUpdate) error {
	normalized := make([]domain.TrackingEvent, 0, len(update.Events))
	for _, ev := range update.Events {
		event := domain.NewTrackingEvent(ev.Status, ev.Message, ev.Location, domain.EventSourceCourier)
		if !ev.Timestamp.IsZero() {
			event.Timestamp = ev.Timestamp
		}
		normalized = append(normalized, event)
	}

	currentStatus := strings.ToLower(strings.TrimSpace(update.CurrentStatus))
	orderStatus, _ := domain.OrderStatusForTracking(currentStatus)
	if err := s.orders.AppendTrackingEvents(ctx, orderID, normalized, update.CourierName, update.TrackingNumber, orderStatus); err != nil {
		return err
	}

	s.publish(events.OrderTrackingUpdated, orderID, map[string]interface{}{
		"current_status": currentStatus,
		"events":         len(normalized),
	})
	return nil
}

// TrackingView is the customer-facing tracking page payload.
type TrackingView struct {
	OrderID       uuid.UUID              `json:"order_id"`
	CurrentStatus string                 `json:"current_status"`
	Timeline      []domain.TimelineStep  `json:"timeline"`
	Events        []domain.TrackingEvent `json:"tracking_events"`
}

func (s *FulfillmentService) Tracking(ctx context.Context, orderID uuid.UUID) (*TrackingView, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	current := order.CurrentTrackingStatus()
	return &TrackingView{
		OrderID:       order.ID,
		CurrentStatus: current,
		Timeline:      domain.BuildTimeline(current),
		Events:        order.TrackingEvents,
	}, nil
}

// CancelOrder is the administrative side branch, reachable from any
// non-terminal state. A booked shipment is cancelled at the courier
// best-effort before the order is marked CANCELLED.
func (s *FulfillmentService) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) error {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status.IsTerminal() {
		return fmt.Errorf("order %s is %s and cannot be cancelled", orderID, order.Status)
	}

	if order.TrackingID != "" {
		if resp, err := s.gateway.Cancel(ctx, []string{order.TrackingID}); err != nil {
			log.Printf("[fulfillment] courier cancellation unreachable for AWB %s: %v", order.TrackingID, err)
		} else if !resp.IsSuccess() {
			log.Printf("[fulfillment] courier cancellation rejected for AWB %s: %s", order.TrackingID, resp.Message)
		}
	}

	message := "Order cancelled"
	if reason != "" {
		message = fmt.Sprintf("Order cancelled: %s", reason)
	}
	event := domain.NewTrackingEvent(domain.TrackingCancelled, message, "", domain.EventSourceAdmin)

	if err := s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusCancelled, event); err != nil {
		return err
	}

	s.publish(events.OrderCancelled, orderID, map[string]interface{}{"reason": reason})
	return nil
}

func (s *FulfillmentService) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.orders.GetOrderByID(ctx, orderID)
}

func (s *FulfillmentService) GetOrdersByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	return s.orders.GetOrdersByCustomerID(ctx, customerID)
}

func (s *FulfillmentService) publish(eventType events.OrderEventType, orderID uuid.UUID, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(eventType, orderID, payload); err != nil {
		log.Printf("[fulfillment] event publish failed (%s, order %s): %v", eventType, orderID, err)
	}
}

func paymentMode(order *domain.Order) string {
	if order.IsCOD() {
		return "COD"
	}
	return "Prepaid"
}
