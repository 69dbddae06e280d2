package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nplusone-fashion/fulfillment-service/internal/courier"
	"github.com/nplusone-fashion/fulfillment-service/internal/domain"
	"github.com/nplusone-fashion/fulfillment-service/internal/httpx"
	"github.com/nplusone-fashion/fulfillment-service/internal/service"
)

// ServiceabilityChecker is the slice of the courier client the public
// handler needs.
type ServiceabilityChecker interface {
	CheckPincode(ctx context.Context, pincode string) (*courier.ServiceabilityResult, error)
}

type OrderHandler struct {
	fulfillment *service.FulfillmentService
	gateway     ServiceabilityChecker
}

func NewOrderHandler(fulfillment *service.FulfillmentService, gateway ServiceabilityChecker) *OrderHandler {
	return &OrderHandler{fulfillment: fulfillment, gateway: gateway}
}

// PlaceOrder handles checkout. A creation failure aborts with a generic
// message; shipment or email trouble never surfaces here.
func (h *OrderHandler) PlaceOrder(c *fiber.Ctx) error {
	var request PlaceOrderRequest
	if err := c.BodyParser(&request); err != nil {
		return httpx.BadRequestResponse(c, "Invalid request body", map[string]interface{}{
			"parse_error": err.Error(),
		})
	}

	if len(request.Items) == 0 {
		return httpx.BadRequestResponse(c, "At least one item is required", nil)
	}
	for i, item := range request.Items {
		if item.Quantity <= 0 {
			return httpx.BadRequestResponse(c, "Invalid quantity", map[string]interface{}{
				"item_index": i,
				"quantity":   item.Quantity,
			})
		}
	}

	input := request.toInput()
	if request.Total > 0 {
		// The storefront sends the grand total it displayed; trust the
		// itemized fields and let the service check consistency.
		expected := input.Subtotal + input.TaxTotal + input.ShippingCost - input.DiscountTotal
		if diff := request.Total - expected; diff > 0.01 || diff < -0.01 {
			return httpx.BadRequestResponse(c, "Order total does not match items", map[string]interface{}{
				"total":    request.Total,
				"expected": expected,
			})
		}
	}

	order, err := h.fulfillment.PlaceOrder(c.Context(), input)
	if err != nil {
		log.Printf("Order placement error: %v", err)
		return httpx.InternalServerErrorResponse(c, "Order creation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return httpx.CreatedResponse(c, "Order placed successfully", fiber.Map{
		"order_id": order.ID,
		"status":   order.Status,
	})
}

// VerifyPayment is the prepaid gateway callback. Signature mismatches get
// a generic client error with no detail about which part failed.
func (h *OrderHandler) VerifyPayment(c *fiber.Ctx) error {
	var request PaymentCallbackRequest
	if err := c.BodyParser(&request); err != nil {
		return httpx.BadRequestResponse(c, "Invalid request body", nil)
	}

	orderID, err := uuid.Parse(request.OrderDBID)
	if err != nil {
		return httpx.BadRequestResponse(c, "Invalid order ID", map[string]interface{}{
			"order_db_id": request.OrderDBID,
		})
	}

	err = h.fulfillment.ConfirmPayment(c.Context(), orderID, request.RazorpayOrderID, request.RazorpayPaymentID, request.RazorpaySignature)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			return httpx.BadRequestResponse(c, "Invalid signature", nil)
		}
		if errors.Is(err, domain.ErrOrderNotFound) {
			return httpx.NotFoundResponse(c, "Order not found")
		}
		log.Printf("Payment verification error: %v", err)
		return httpx.InternalServerErrorResponse(c, "Payment verification failed", nil)
	}

	return httpx.SuccessResponse(c, "Payment verified", nil)
}

// CourierWebhook ingests courier status pushes. The provider's payload
// has no notion of our order id, so it rides in as a query parameter.
func (h *OrderHandler) CourierWebhook(c *fiber.Ctx) error {
	orderIDStr := c.Query("order_id")
	if orderIDStr == "" {
		return httpx.BadRequestResponse(c, "Order ID required", nil)
	}
	orderID, err := uuid.Parse(orderIDStr)
	if err != nil {
		return httpx.BadRequestResponse(c, "Invalid order ID", map[string]interface{}{
			"order_id": orderIDStr,
		})
	}

	var request CourierWebhookRequest
	if err := c.BodyParser(&request); err != nil {
		return httpx.BadRequestResponse(c, "Invalid request body", nil)
	}

	update := service.TrackingUpdate{
		CourierName:    request.CourierName,
		TrackingNumber: request.TrackingNumber,
		CurrentStatus:  request.CurrentStatus,
	}
	for _, ev := range request.Events {
		update.Events = append(update.Events, service.CourierEvent{
			Status:    ev.Status,
			Message:   ev.Message,
			Location:  ev.Location,
			Timestamp: ev.Timestamp,
		})
	}

	if err := h.fulfillment.ApplyTrackingUpdate(c.Context(), orderID, update); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return httpx.NotFoundResponse(c, "Order not found")
		}
		log.Printf("Courier webhook error: %v", err)
		return httpx.InternalServerErrorResponse(c, "Tracking update failed", nil)
	}

	return httpx.SuccessResponse(c, "Tracking updated from courier", nil)
}

// CheckDelivery answers pincode serviceability for the storefront.
func (h *OrderHandler) CheckDelivery(c *fiber.Ctx) error {
	pincode := c.Query("pincode")
	if pincode == "" {
		return httpx.BadRequestResponse(c, "Pincode is required", nil)
	}

	result, err := h.gateway.CheckPincode(c.Context(), pincode)
	if err != nil {
		log.Printf("Pincode check error: %v", err)
		return httpx.InternalServerErrorResponse(c, "Failed to check delivery availability", nil)
	}

	return httpx.SuccessResponse(c, result.Message, fiber.Map{
		"available": result.Serviceable,
	})
}

func (h *OrderHandler) GetOrderByID(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httpx.BadRequestResponse(c, "Invalid order ID", map[string]interface{}{
			"order_id": c.Params("id"),
		})
	}

	order, err := h.fulfillment.GetOrderByID(c.Context(), orderID)
	if err != nil {
		return httpx.NotFoundResponse(c, "Order not found")
	}

	return httpx.SuccessResponse(c, "Order retrieved successfully", toOrderResponse(order))
}

func (h *OrderHandler) GetTracking(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httpx.BadRequestResponse(c, "Invalid order ID", map[string]interface{}{
			"order_id": c.Params("id"),
		})
	}

	view, err := h.fulfillment.Tracking(c.Context(), orderID)
	if err != nil {
		return httpx.NotFoundResponse(c, "Order not found")
	}

	return httpx.SuccessResponse(c, "Tracking retrieved successfully", view)
}

func (h *OrderHandler) GetOrdersByCustomerID(c *fiber.Ctx) error {
	customerID, err := uuid.Parse(c.Params("customer_id"))
	if err != nil {
		return httpx.BadRequestResponse(c, "Invalid customer ID", map[string]interface{}{
			"customer_id": c.Params("customer_id"),
		})
	}

	page := 1
	limit := 10
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	orders, err := h.fulfillment.GetOrdersByCustomerID(c.Context(), customerID)
	if err != nil {
		return httpx.InternalServerErrorResponse(c, "Orders retrieval failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	start := (page - 1) * limit
	end := start + limit
	if start > len(orders) {
		start = len(orders)
	}
	if end > len(orders) {
		end = len(orders)
	}

	responses := make([]OrderResponse, 0, end-start)
	for _, order := range orders[start:end] {
		responses = append(responses, toOrderResponse(order))
	}

	return httpx.SuccessResponse(c, "Orders retrieved successfully", fiber.Map{
		"orders": responses,
		"pagination": fiber.Map{
			"page":     page,
			"limit":    limit,
			"total":    len(orders),
			"has_more": end < len(orders),
		},
	})
}

func (h *OrderHandler) HealthCheck(c *fiber.Ctx) error {
	return httpx.SuccessResponse(c, "Fulfillment service is healthy", fiber.Map{
		"service": "fulfillment-service",
		"status":  "healthy",
	})
}
