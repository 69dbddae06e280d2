package courier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nplusone-fashion/fulfillment-service/internal/domain"
)

type capturedRequest struct {
	path string
	body map[string]interface{}
}

// newTestServer records every request and replies with the given envelope.
func newTestServer(t *testing.T, reply string, calls *atomic.Int64, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if captured != nil {
			captured.path = r.URL.Path
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			captured.body = body
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, reply)
	}))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(baseURL, "test-token", "test-secret", "pickup-42", nil)
	require.NoError(t, err)
	return client
}

func dataEnvelope(t *testing.T, captured *capturedRequest) map[string]interface{} {
	t.Helper()
	data, ok := captured.body["data"].(map[string]interface{})
	require.True(t, ok, "request body must wrap fields in a data envelope")
	return data
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient("http://example.com", "", "secret", "pickup", nil)
	assert.Error(t, err)

	_, err = NewClient("http://example.com", "token", "", "pickup", nil)
	assert.Error(t, err)

	_, err = NewClient("http://example.com", "token", "secret", "", nil)
	assert.Error(t, err)
}

func TestCheckPincodeRejectsMalformedWithoutNetworkCall(t *testing.T) {
	var calls atomic.Int64
	server := newTestServer(t, `{"status":"success"}`, &calls, nil)
	defer server.Close()

	client := newTestClient(t, server.URL)

	for _, pincode := range []string{"12AB56", "12345", "1234567", "", " 560001"} {
		result, err := client.CheckPincode(context.Background(), pincode)
		require.NoError(t, err, "malformed pincode %q must not surface an error", pincode)
		assert.False(t, result.Serviceable)
		assert.Contains(t, result.Message, "invalid pincode format")
	}

	assert.Equal(t, int64(0), calls.Load(), "malformed pincodes must never reach the provider")
}

func TestCheckPincodeServiceable(t *testing.T) {
	var calls atomic.Int64
	var captured capturedRequest
	server := newTestServer(t, `{"status":"success","data":{"560001":{"city":"Bengaluru"}}}`, &calls, &captured)
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.CheckPincode(context.Background(), "560001")
	require.NoError(t, err)
	assert.True(t, result.Serviceable)
	assert.Equal(t, "Delivery available to your location", result.Message)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, "/pincode/check.json", captured.path)

	data := dataEnvelope(t, &captured)
	assert.Equal(t, "560001", data["pincode"])
	assert.Equal(t, "test-token", data["access_token"])
	assert.Equal(t, "test-secret", data["secret_key"])
}

func TestCheckPincodeNotServiceable(t *testing.T) {
	var calls atomic.Int64
	server := newTestServer(t, `{"status":"error"}`, &calls, nil)
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.CheckPincode(context.Background(), "999999")
	require.NoError(t, err)
	assert.False(t, result.Serviceable)
	assert.Equal(t, "Delivery is not available in your area", result.Message)
}

func bookingOrder() *domain.Order {
	items := []domain.OrderItem{
		{ProductName: "Linen Shirt", ProductSKU: "LNS-01", Quantity: 2, PricePerUnit: 450, TaxRate: 5, HSNCode: "6204"},
		{ProductName: "Denim Jacket", Quantity: 1, PricePerUnit: 1200, TaxRate: 5, HSNCode: "6204"},
	}
	return domain.NewOrder(uuid.NullUUID{}, domain.ShippingAddress{
		FullName:     "Asha Rao",
		Email:        "asha@example.com",
		PhoneNumber:  "9876543210",
		AddressLine1: "12 MG Road",
		City:         "Bengaluru",
		State:        "Karnataka",
		Pincode:      "560001",
		Country:      "India",
	}, domain.PaymentMethodCOD, 2100, 0, 0, 0, items)
}

func TestCreateShipmentPayload(t *testing.T) {
	var calls atomic.Int64
	var captured capturedRequest
	reply := `{"status":"success","data":{"1":{"waybill":"AWB1234567890","status":"success"}}}`
	server := newTestServer(t, reply, &calls, &captured)
	defer server.Close()

	client := newTestClient(t, server.URL)
	order := bookingOrder()

	result, err := client.CreateShipment(context.Background(), order, "COD")
	require.NoError(t, err)
	assert.True(t, result.Booked())
	assert.Equal(t, "AWB1234567890", result.Waybill)
	assert.Equal(t, "/order/add.json", captured.path)

	data := dataEnvelope(t, &captured)
	assert.Equal(t, "pickup-42", data["pickup_address_id"])

	shipments, ok := data["shipments"].([]interface{})
	require.True(t, ok)
	require.Len(t, shipments, 1)
	shipment := shipments[0].(map[string]interface{})

	assert.Equal(t, order.ID.String(), shipment["order"])
	assert.Equal(t, "Asha Rao", shipment["name"])
	assert.Equal(t, "560001", shipment["pin"])
	assert.Equal(t, "yes", shipment["is_billing_same_as_shipping"])
	assert.Equal(t, "Asha Rao", shipment["billing_name"])
	assert.Equal(t, "COD", shipment["payment_mode"])
	assert.Equal(t, "2100.00", shipment["cod_amount"])
	assert.Equal(t, 1.5, shipment["weight"], "3 units at 0.5kg each")
	assert.Equal(t, "pickup-42", shipment["return_address_id"])

	products, ok := shipment["products"].([]interface{})
	require.True(t, ok)
	require.Len(t, products, 2)
	first := products[0].(map[string]interface{})
	assert.Equal(t, "Linen Shirt", first["p_name"])
	assert.Equal(t, "LNS-01", first["p_sku"])
	assert.Equal(t, float64(2), first["p_qty"])
	second := products[1].(map[string]interface{})
	assert.Equal(t, "SKU-GENERIC", second["p_sku"], "missing SKU falls back to a placeholder")
}

func TestCreateShipmentPrepaidHasZeroCODAmount(t *testing.T) {
	var calls atomic.Int64
	var captured capturedRequest
	server := newTestServer(t, `{"status":"success","data":{"1":{"waybill":"AWB1"}}}`, &calls, &captured)
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.CreateShipment(context.Background(), bookingOrder(), "Prepaid")
	require.NoError(t, err)

	shipment := dataEnvelope(t, &captured)["shipments"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "0", shipment["cod_amount"])
	assert.Equal(t, "Prepaid", shipment["payment_mode"])
}

func TestCreateShipmentProviderError(t *testing.T) {
	var calls atomic.Int64
	server := newTestServer(t, `{"status":"error","message":"pincode not serviceable"}`, &calls, nil)
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.CreateShipment(context.Background(), bookingOrder(), "COD")
	require.NoError(t, err, "a provider-level rejection is a result, not a transport error")
	assert.False(t, result.Booked())
	assert.Equal(t, "pincode not serviceable", result.Message)
	assert.Empty(t, result.Waybill)
}

func TestCreateShipmentTransportFailure(t *testing.T) {
	server := newTestServer(t, `{}`, &atomic.Int64{}, nil)
	server.Close() // connection refused from here on

	client := newTestClient(t, server.URL)

	result, err := client.CreateShipment(context.Background(), bookingOrder(), "COD")
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestCancelJoinsWaybills(t *testing.T) {
	var calls atomic.Int64
	var captured capturedRequest
	server := newTestServer(t, `{"status":"success"}`, &calls, &captured)
	defer server.Close()

	client := newTestClient(t, server.URL)

	resp, err := client.Cancel(context.Background(), []string{"AWB1", "AWB2"})
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "/order/cancel.json", captured.path)
	assert.Equal(t, "AWB1,AWB2", dataEnvelope(t, &captured)["awb_numbers"])
}

func TestLabelRequest(t *testing.T) {
	var calls atomic.Int64
	var captured capturedRequest
	server := newTestServer(t, `{"status":"success","data":{"url":"https://cdn.example.com/label.pdf"}}`, &calls, &captured)
	defer server.Close()

	client := newTestClient(t, server.URL)

	resp, err := client.Label(context.Background(), []string{"AWB1"})
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "/shipping/label.json", captured.path)

	data := dataEnvelope(t, &captured)
	assert.Equal(t, "AWB1", data["awb_numbers"])
	assert.Equal(t, "A4", data["page_size"])
}

func TestExtractWaybill(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"object keyed by index", `{"1":{"waybill":"AWB100","status":"success"}}`, "AWB100"},
		{"object picks lowest key first", `{"2":{"waybill":"AWB200"},"1":{"waybill":"AWB100"}}`, "AWB100"},
		{"object skips entries without waybill", `{"1":{"status":"error"},"2":{"waybill":"AWB200"}}`, "AWB200"},
		{"array shape", `[{"waybill":"AWB300"}]`, "AWB300"},
		{"array skips empty entries", `[{"status":"error"},{"waybill":"AWB400"}]`, "AWB400"},
		{"empty data", ``, ""},
		{"null data", `null`, ""},
		{"scalar data", `"oops"`, ""},
		{"no waybill anywhere", `{"1":{"status":"error"}}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractWaybill(json.RawMessage(tt.data)))
		})
	}
}
