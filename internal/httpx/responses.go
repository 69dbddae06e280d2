package httpx

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id"`
}

type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func SuccessResponse(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

func CreatedResponse(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

func BadRequestResponse(c *fiber.Ctx, message string, details map[string]interface{}) error {
	return errorResponse(c, fiber.StatusBadRequest, "BAD_REQUEST", message, details)
}

// UnauthorizedResponse carries a generic message on purpose: signature
// failures must not leak which part of the check failed.
func UnauthorizedResponse(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func NotFoundResponse(c *fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusNotFound, "NOT_FOUND", message, nil)
}

func ConflictResponse(c *fiber.Ctx, message string, details map[string]interface{}) error {
	return errorResponse(c, fiber.StatusConflict, "CONFLICT", message, details)
}

func InternalServerErrorResponse(c *fiber.Ctx, message string, details map[string]interface{}) error {
	return errorResponse(c, fiber.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message, details)
}

func errorResponse(c *fiber.Ctx, status int, code, message string, details map[string]interface{}) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: message,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

func getRequestID(c *fiber.Ctx) string {
	requestID := c.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
		c.Set("X-Request-ID", requestID)
	}
	return requestID
}
