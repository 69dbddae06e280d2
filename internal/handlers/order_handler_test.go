package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nplusone-fashion/fulfillment-service/internal/courier"
	"github.com/nplusone-fashion/fulfillment-service/internal/domain"
	"github.com/nplusone-fashion/fulfillment-service/internal/service"
)

type stubOrderStore struct {
	orders map[uuid.UUID]*domain.Order
}

func (s *stubOrderStore) CreateOrder(_ context.Context, order *domain.Order) error {
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrderStore) GetOrderByID(_ context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *stubOrderStore) GetOrdersByCustomerID(_ context.Context, _ uuid.UUID) ([]*domain.Order, error) {
	return nil, nil
}

func (s *stubOrderStore) ConfirmPayment(_ context.Context, orderID uuid.UUID, paymentID, paymentMethod string, event domain.TrackingEvent) (bool, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if order.PaymentStatus != domain.PaymentStatusPending {
		return false, nil
	}
	order.PaymentStatus = domain.PaymentStatusPaid
	order.Status = domain.OrderStatusProcessing
	order.PaymentID = paymentID
	order.PaymentMethod = paymentMethod
	order.AppendEvent(event)
	return true, nil
}

func (s *stubOrderStore) MarkProcessing(_ context.Context, _ uuid.UUID) error { return nil }

func (s *stubOrderStore) SetShipmentBooked(_ context.Context, orderID uuid.UUID, courierName, waybill string, status domain.OrderStatus, event domain.TrackingEvent) error {
	order, ok := s.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.CourierName = courierName
	order.TrackingID = waybill
	order.Status = status
	order.AppendEvent(event)
	return nil
}

func (s *stubOrderStore) AppendTrackingEvents(_ context.Context, orderID uuid.UUID, evs []domain.TrackingEvent, _, _ string, status domain.OrderStatus) error {
	order, ok := s.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.TrackingEvents = append(order.TrackingEvents, evs...)
	if status != "" {
		order.Status = status
	}
	return nil
}

func (s *stubOrderStore) UpdateStatus(_ context.Context, orderID uuid.UUID, status domain.OrderStatus, event domain.TrackingEvent) error {
	order, ok := s.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Status = status
	order.AppendEvent(event)
	return nil
}

type stubGateway struct {
	serviceable bool
}

func (g *stubGateway) CheckPincode(_ context.Context, pincode string) (*courier.ServiceabilityResult, error) {
	if len(pincode) != 6 {
		return &courier.ServiceabilityResult{Serviceable: false, Message: "invalid pincode format: expected a 6-digit number"}, nil
	}
	if g.serviceable {
		return &courier.ServiceabilityResult{Serviceable: true, Message: "Delivery available to your location"}, nil
	}
	return &courier.ServiceabilityResult{Serviceable: false, Message: "Delivery is not available in your area"}, nil
}

func (g *stubGateway) CreateShipment(_ context.Context, _ *domain.Order, _ string) (*courier.BookingResult, error) {
	return &courier.BookingResult{Status: "success", Waybill: "AWB42"}, nil
}

func (g *stubGateway) Cancel(_ context.Context, _ []string) (*courier.Response, error) {
	return &courier.Response{Status: "success"}, nil
}

type stubStock struct{}

func (stubStock) DecrementStock(_ context.Context, _ uuid.UUID, _ int) error { return nil }

type stubNotifier struct{}

func (stubNotifier) SendOrderConfirmation(_ context.Context, _ *domain.Order) error { return nil }

type stubVerifier struct{ valid bool }

func (v *stubVerifier) Verify(_, _, _ string) bool { return v.valid }

type testEnv struct {
	app      *fiber.App
	store    *stubOrderStore
	verifier *stubVerifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := &stubOrderStore{orders: make(map[uuid.UUID]*domain.Order)}
	gateway := &stubGateway{serviceable: true}
	verifier := &stubVerifier{valid: true}

	svc := service.NewFulfillmentService(store, stubStock{}, gateway, verifier, stubNotifier{}, nil)
	handler := NewOrderHandler(svc, gateway)

	app := fiber.New()
	app.Get("/health", handler.HealthCheck)
	app.Get("/delivery/check", handler.CheckDelivery)
	app.Post("/orders", handler.PlaceOrder)
	app.Get("/orders/:id", handler.GetOrderByID)
	app.Get("/orders/:id/tracking", handler.GetTracking)
	app.Post("/payments/verify", handler.VerifyPayment)
	app.Post("/webhooks/courier", handler.CourierWebhook)

	return &testEnv{app: app, store: store, verifier: verifier}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func checkoutBody(paymentMethod string) PlaceOrderRequest {
	return PlaceOrderRequest{
		Customer: CustomerDTO{
			Name:         "Asha Rao",
			Email:        "asha@example.com",
			PhoneNumber:  "9876543210",
			AddressLine1: "12 MG Road",
			City:         "Bengaluru",
			State:        "Karnataka",
			Pincode:      "560001",
		},
		Items: []CheckoutItem{
			{
				Product:  ProductRef{ID: uuid.NewString(), Title: "Linen Shirt", Price: 500},
				Quantity: 2,
			},
		},
		Total:         1000,
		PaymentMethod: paymentMethod,
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	status, body := doJSON(t, env.app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
}

func TestPlaceOrderEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, body := doJSON(t, env.app, http.MethodPost, "/orders", checkoutBody("COD"))
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, body.Success)

	var data struct {
		OrderID uuid.UUID `json:"order_id"`
		Status  string    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, string(domain.OrderStatusShipped), data.Status)

	stored, ok := env.store.orders[data.OrderID]
	require.True(t, ok)
	assert.Equal(t, "AWB42", stored.TrackingID)
}

func TestPlaceOrderRejectsEmptyItems(t *testing.T) {
	env := newTestEnv(t)

	body := checkoutBody("COD")
	body.Items = nil

	status, env2 := doJSON(t, env.app, http.MethodPost, "/orders", body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env2.Success)
}

func TestPlaceOrderRejectsMismatchedTotal(t *testing.T) {
	env := newTestEnv(t)

	body := checkoutBody("COD")
	body.Total = 999 // items say 1000

	status, resp := doJSON(t, env.app, http.MethodPost, "/orders", body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Order total does not match items", resp.Message)
}

func TestVerifyPaymentEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, body := doJSON(t, env.app, http.MethodPost, "/orders", checkoutBody("RAZORPAY"))
	require.Equal(t, http.StatusCreated, status)
	var created struct {
		OrderID uuid.UUID `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &created))

	status, resp := doJSON(t, env.app, http.MethodPost, "/payments/verify", PaymentCallbackRequest{
		RazorpayOrderID:   "order_ref",
		RazorpayPaymentID: "pay_ref",
		RazorpaySignature: "sig",
		OrderDBID:         created.OrderID.String(),
	})
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)

	stored := env.store.orders[created.OrderID]
	assert.Equal(t, domain.PaymentStatusPaid, stored.PaymentStatus)
}

func TestVerifyPaymentInvalidSignature(t *testing.T) {
	env := newTestEnv(t)
	env.verifier.valid = false

	status, body := doJSON(t, env.app, http.MethodPost, "/orders", checkoutBody("RAZORPAY"))
	require.Equal(t, http.StatusCreated, status)
	var created struct {
		OrderID uuid.UUID `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &created))

	status, resp := doJSON(t, env.app, http.MethodPost, "/payments/verify", PaymentCallbackRequest{
		RazorpayOrderID:   "order_ref",
		RazorpayPaymentID: "pay_ref",
		RazorpaySignature: "forged",
		OrderDBID:         created.OrderID.String(),
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid signature", resp.Message, "the response must not reveal what part of verification failed")

	stored := env.store.orders[created.OrderID]
	assert.Equal(t, domain.PaymentStatusPending, stored.PaymentStatus)
}

func TestVerifyPaymentUnknownOrder(t *testing.T) {
	env := newTestEnv(t)

	status, _ := doJSON(t, env.app, http.MethodPost, "/payments/verify", PaymentCallbackRequest{
		RazorpayOrderID:   "order_ref",
		RazorpayPaymentID: "pay_ref",
		RazorpaySignature: "sig",
		OrderDBID:         uuid.NewString(),
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCourierWebhookRequiresOrderID(t *testing.T) {
	env := newTestEnv(t)

	status, resp := doJSON(t, env.app, http.MethodPost, "/webhooks/courier", CourierWebhookRequest{
		CurrentStatus: "shipped",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Order ID required", resp.Message)
}

func TestCourierWebhookAppendsEvents(t *testing.T) {
	env := newTestEnv(t)

	status, body := doJSON(t, env.app, http.MethodPost, "/orders", checkoutBody("COD"))
	require.Equal(t, http.StatusCreated, status)
	var created struct {
		OrderID uuid.UUID `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &created))

	before := len(env.store.orders[created.OrderID].TrackingEvents)

	target := fmt.Sprintf("/webhooks/courier?order_id=%s", created.OrderID)
	status, resp := doJSON(t, env.app, http.MethodPost, target, CourierWebhookRequest{
		CurrentStatus: "out_for_delivery",
		Events: []CourierWebhookEvent{
			{Status: "out_for_delivery", Message: "Out for delivery", Location: "Bengaluru"},
		},
	})
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Len(t, env.store.orders[created.OrderID].TrackingEvents, before+1)
}

func TestCheckDeliveryEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, resp := doJSON(t, env.app, http.MethodGet, "/delivery/check?pincode=560001", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)

	var data struct {
		Available bool `json:"available"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.True(t, data.Available)
}

func TestCheckDeliveryRequiresPincode(t *testing.T) {
	env := newTestEnv(t)

	status, _ := doJSON(t, env.app, http.MethodGet, "/delivery/check", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetOrderAndTracking(t *testing.T) {
	env := newTestEnv(t)

	status, body := doJSON(t, env.app, http.MethodPost, "/orders", checkoutBody("COD"))
	require.Equal(t, http.StatusCreated, status)
	var created struct {
		OrderID uuid.UUID `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &created))

	status, resp := doJSON(t, env.app, http.MethodGet, "/orders/"+created.OrderID.String(), nil)
	assert.Equal(t, http.StatusOK, status)

	var order OrderResponse
	require.NoError(t, json.Unmarshal(resp.Data, &order))
	assert.Equal(t, created.OrderID, order.ID)
	assert.Equal(t, "AWB42", order.TrackingID)

	status, resp = doJSON(t, env.app, http.MethodGet, "/orders/"+created.OrderID.String()+"/tracking", nil)
	assert.Equal(t, http.StatusOK, status)

	var view service.TrackingView
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, domain.TrackingShipped, view.CurrentStatus)
	assert.Len(t, view.Timeline, len(domain.StandardFlow))
}

func TestGetOrderNotFound(t *testing.T) {
	env := newTestEnv(t)

	status, _ := doJSON(t, env.app, http.MethodGet, "/orders/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, status)
}
