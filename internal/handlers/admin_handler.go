package handlers

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nplusone-fashion/fulfillment-service/internal/courier"
	"github.com/nplusone-fashion/fulfillment-service/internal/domain"
	"github.com/nplusone-fashion/fulfillment-service/internal/httpx"
	"github.com/nplusone-fashion/fulfillment-service/internal/service"
)

// DocumentGateway is the slice of the courier client used for shipping
// documents (labels, invoices, manifests).
type DocumentGateway interface {
	Label(ctx context.Context, awbs []string) (*courier.Response, error)
	Invoice(ctx context.Context, awb string) (*courier.Response, error)
	Manifest(ctx context.Context, awbs []string) (*courier.Response, error)
}

type AdminHandler struct {
	fulfillment *service.FulfillmentService
	documents   DocumentGateway
}

func NewAdminHandler(fulfillment *service.FulfillmentService, documents DocumentGateway) *AdminHandler {
	return &AdminHandler{fulfillment: fulfillment, documents: documents}
}

// CreateShipment is the operator retry for orders whose checkout-time
// booking failed. Rebooking an already-booked order is refused.
func (h *AdminHandler) CreateShipment(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httpx.BadRequestResponse(c, "Invalid order ID", map[string]interface{}{
			"order_id": c.Params("id"),
		})
	}

	awb, err := h.fulfillment.BookShipment(c.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return httpx.NotFoundResponse(c, "Order not found")
		}
		if errors.Is(err, domain.ErrAlreadyBooked) {
			return httpx.ConflictResponse(c, "Shipment already booked; cancel it before rebooking", nil)
		}
		log.Printf("Manual shipment booking error: %v", err)
		return httpx.InternalServerErrorResponse(c, "Shipment booking failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return httpx.SuccessResponse(c, "Shipment created", fiber.Map{"awb": awb})
}

func (h *AdminHandler) CancelOrder(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httpx.BadRequestResponse(c, "Invalid order ID", map[string]interface{}{
			"order_id": c.Params("id"),
		})
	}

	var request CancelOrderRequest
	if err := c.BodyParser(&request); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		// Body is optional for cancellation.
		request.Reason = ""
	}

	if err := h.fulfillment.CancelOrder(c.Context(), orderID, request.Reason); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return httpx.NotFoundResponse(c, "Order not found")
		}
		log.Printf("Order cancellation error: %v", err)
		return httpx.ConflictResponse(c, err.Error(), nil)
	}

	return httpx.SuccessResponse(c, "Order cancelled", nil)
}

func (h *AdminHandler) PrintLabel(c *fiber.Ctx) error {
	awbs := splitAWBs(c.Query("awb"))
	if len(awbs) == 0 {
		return httpx.BadRequestResponse(c, "AWB number required", nil)
	}

	resp, err := h.documents.Label(c.Context(), awbs)
	return h.documentResponse(c, resp, err, "Label generated")
}

func (h *AdminHandler) PrintInvoice(c *fiber.Ctx) error {
	awb := c.Query("awb")
	if awb == "" {
		return httpx.BadRequestResponse(c, "AWB number required", nil)
	}

	resp, err := h.documents.Invoice(c.Context(), awb)
	return h.documentResponse(c, resp, err, "Invoice generated")
}

func (h *AdminHandler) PrintManifest(c *fiber.Ctx) error {
	awbs := splitAWBs(c.Query("awb"))
	if len(awbs) == 0 {
		return httpx.BadRequestResponse(c, "AWB number required", nil)
	}

	resp, err := h.documents.Manifest(c.Context(), awbs)
	return h.documentResponse(c, resp, err, "Manifest generated")
}

func (h *AdminHandler) documentResponse(c *fiber.Ctx, resp *courier.Response, err error, message string) error {
	if err != nil {
		log.Printf("Courier document error: %v", err)
		return httpx.InternalServerErrorResponse(c, "Courier gateway unreachable", nil)
	}
	if !resp.IsSuccess() {
		return httpx.InternalServerErrorResponse(c, "Courier gateway rejected the request", map[string]interface{}{
			"provider_message": resp.Message,
		})
	}
	return httpx.SuccessResponse(c, message, resp.Data)
}

func splitAWBs(raw string) []string {
	var awbs []string
	for _, awb := range strings.Split(raw, ",") {
		if awb = strings.TrimSpace(awb); awb != "" {
			awbs = append(awbs, awb)
		}
	}
	return awbs
}
