// Package courier is the client for the iThink-style logistics API:
// pincode serviceability, shipment booking, tracking, cancellation and
// shipping documents. Every request is a JSON POST with the business
// credentials merged into the "data" envelope.
package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/nplusone-fashion/fulfillment-service/internal/domain"
)

var pincodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// Fashion parcel defaults; the catalog carries no per-product dimensions.
const (
	defaultUnitWeightKg = 0.5
	shipmentLengthCm    = 30
	shipmentWidthCm     = 20
	shipmentHeightCm    = 5
)

type Client struct {
	baseURL     string
	accessToken string
	secretKey   string
	pickupID    string
	httpClient  *http.Client
}

// NewClient validates the account credentials up front; a client with
// missing credentials is a deployment error, not a per-request one.
func NewClient(baseURL, accessToken, secretKey, pickupID string, httpClient *http.Client) (*Client, error) {
	if accessToken == "" || secretKey == "" || pickupID == "" {
		return nil, fmt.Errorf("courier credentials missing (access token, secret key, pickup id)")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		secretKey:   secretKey,
		pickupID:    pickupID,
		httpClient:  httpClient,
	}, nil
}

// Response is the provider's common envelope.
type Response struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (r *Response) IsSuccess() bool {
	return r != nil && r.Status == "success"
}

type ServiceabilityResult struct {
	Serviceable bool            `json:"serviceable"`
	Message     string          `json:"message"`
	Raw         json.RawMessage `json:"-"`
}

// CheckPincode rejects malformed pincodes deterministically before any
// network call; only a well-formed 6-digit code reaches the provider.
func (c *Client) CheckPincode(ctx context.Context, pincode string) (*ServiceabilityResult, error) {
	if !pincodePattern.MatchString(pincode) {
		return &ServiceabilityResult{
			Serviceable: false,
			Message:     "invalid pincode format: expected a 6-digit number",
		}, nil
	}

	resp, err := c.post(ctx, "/pincode/check.json", map[string]interface{}{
		"pincode": pincode,
	})
	if err != nil {
		return nil, fmt.Errorf("pincode check request failed: %w", err)
	}

	result := &ServiceabilityResult{
		Serviceable: resp.IsSuccess(),
		Message:     resp.Message,
		Raw:         resp.Data,
	}
	if result.Message == "" {
		if result.Serviceable {
			result.Message = "Delivery available to your location"
		} else {
			result.Message = "Delivery is not available in your area"
		}
	}
	return result, nil
}

// BookingResult is the normalized outcome of a shipment-creation call.
type BookingResult struct {
	Status  string          `json:"status"`
	Waybill string          `json:"waybill"`
	Message string          `json:"message,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// Booked reports whether the provider confirmed the booking and assigned
// a waybill.
func (b *BookingResult) Booked() bool {
	return b != nil && b.Status == "success" && b.Waybill != ""
}

// CreateShipment issues exactly one booking call for the order. A
// transport failure returns (nil, err): the caller must treat that as
// "booking not confirmed", never as a customer-facing error. Retry policy
// belongs to the caller.
func (c *Client) CreateShipment(ctx context.Context, order *domain.Order, paymentMode string) (*BookingResult, error) {
	shipment := c.buildShipment(order, paymentMode)

	resp, err := c.post(ctx, "/order/add.json", map[string]interface{}{
		"shipments":         []map[string]interface{}{shipment},
		"pickup_address_id": c.pickupID,
		"logistics":         "Delhivery",
		"s_type":            "",
		"order_type":        "",
	})
	if err != nil {
		return nil, fmt.Errorf("shipment booking request failed: %w", err)
	}

	return &BookingResult{
		Status:  resp.Status,
		Waybill: extractWaybill(resp.Data),
		Message: resp.Message,
		Raw:     resp.Data,
	}, nil
}

func (c *Client) buildShipment(order *domain.Order, paymentMode string) map[string]interface{} {
	addr := order.Address
	isCOD := paymentMode == "COD"

	products := make([]map[string]interface{}, 0, len(order.Items))
	totalQty := 0
	for _, item := range order.Items {
		sku := item.ProductSKU
		if sku == "" {
			sku = "SKU-GENERIC"
		}
		products = append(products, map[string]interface{}{
			"p_name":     item.ProductName,
			"p_sku":      sku,
			"p_qty":      item.Quantity,
			"p_price":    item.PricePerUnit,
			"p_tax_rate": item.TaxRate,
			"p_hsn_code": item.HSNCode,
			"p_discount": 0,
		})
		totalQty += item.Quantity
	}

	// Additive package weight with a per-unit default; nothing in the
	// catalog carries real weights.
	weight := float64(totalQty) * defaultUnitWeightKg

	codAmount := "0"
	if isCOD {
		codAmount = fmt.Sprintf("%.2f", order.TotalAmount)
	}

	return map[string]interface{}{
		"waybill":      "",
		"order":        order.ID.String(),
		"sub_order":    "A",
		"order_date":   order.CreatedAt.Format("2006-01-02"),
		"total_amount": order.TotalAmount,

		"name":         addr.FullName,
		"add":          addr.AddressLine1,
		"add2":         addr.AddressLine2,
		"add3":         "",
		"pin":          addr.Pincode,
		"city":         addr.City,
		"state":        addr.State,
		"country":      addr.Country,
		"phone":        addr.PhoneNumber,
		"alt_phone":    addr.AltPhone,
		"email":        addr.Email,
		"company_name": "",

		"is_billing_same_as_shipping": "yes",
		"billing_name":                addr.FullName,
		"billing_company_name":        "",
		"billing_add":                 addr.AddressLine1,
		"billing_add2":                addr.AddressLine2,
		"billing_add3":                "",
		"billing_pin":                 addr.Pincode,
		"billing_city":                addr.City,
		"billing_state":               addr.State,
		"billing_country":             addr.Country,
		"billing_phone":               addr.PhoneNumber,
		"billing_alt_phone":           addr.AltPhone,
		"billing_email":               addr.Email,

		"products": products,

		"shipment_length": shipmentLengthCm,
		"shipment_width":  shipmentWidthCm,
		"shipment_height": shipmentHeightCm,
		"weight":          weight,

		"shipping_charges":      "0",
		"giftwrap_charges":      "0",
		"transaction_charges":   "0",
		"total_discount":        "0",
		"first_attemp_discount": "0",
		"cod_charges":           "0",
		"advance_amount":        "0",
		"cod_amount":            codAmount,
		"payment_mode":          paymentMode,
		"reseller_name":         "",
		"eway_bill_number":      "",
		"gst_number":            "",
		"return_address_id":     c.pickupID,
	}
}

// Track fetches tracking detail for one or more waybills.
func (c *Client) Track(ctx context.Context, awbs []string) (*Response, error) {
	return c.post(ctx, "/order/track.json", map[string]interface{}{
		"awb_number_list": joinAWBs(awbs),
	})
}

// Cancel cancels booked shipments by waybill.
func (c *Client) Cancel(ctx context.Context, awbs []string) (*Response, error) {
	return c.post(ctx, "/order/cancel.json", map[string]interface{}{
		"awb_numbers": joinAWBs(awbs),
	})
}

// Label returns the shipping label document reference.
func (c *Client) Label(ctx context.Context, awbs []string) (*Response, error) {
	return c.post(ctx, "/shipping/label.json", map[string]interface{}{
		"awb_numbers":         joinAWBs(awbs),
		"page_size":           "A4",
		"display_cod_prepaid": "1",
	})
}

// Invoice returns the shipment invoice document reference.
func (c *Client) Invoice(ctx context.Context, awb string) (*Response, error) {
	return c.post(ctx, "/shipping/invoice.json", map[string]interface{}{
		"awb_numbers": awb,
	})
}

// Manifest returns the pickup manifest document reference.
func (c *Client) Manifest(ctx context.Context, awbs []string) (*Response, error) {
	return c.post(ctx, "/shipping/manifest.json", map[string]interface{}{
		"awb_numbers": joinAWBs(awbs),
	})
}

func (c *Client) post(ctx context.Context, path string, fields map[string]interface{}) (*Response, error) {
	data := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		data[k] = v
	}
	data["access_token"] = c.accessToken
	data["secret_key"] = c.secretKey

	body, err := json.Marshal(map[string]interface{}{"data": data})
	if err != nil {
		return nil, fmt.Errorf("payload serialization error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("response decode error: %w", err)
	}
	return &resp, nil
}

func joinAWBs(awbs []string) string {
	return strings.Join(awbs, ",")
}
