package courier

import (
	"encoding/json"
	"sort"
)

// extractWaybill pulls the carrier-assigned waybill out of the booking
// response. The provider is not consistent about the shape of "data": it
// can be an object keyed by arbitrary shipment indexes, or an array. The
// waybill lives on the first entry either way; object keys are sorted so
// "first" is deterministic.
func extractWaybill(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(data, &asObject); err == nil {
		keys := make([]string, 0, len(asObject))
		for k := range asObject {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if wb := waybillField(asObject[k]); wb != "" {
				return wb
			}
		}
		return ""
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal(data, &asArray); err == nil {
		for _, entry := range asArray {
			if wb := waybillField(entry); wb != "" {
				return wb
			}
		}
	}

	return ""
}

func waybillField(entry json.RawMessage) string {
	var fields struct {
		Waybill string `json:"waybill"`
	}
	if err := json.Unmarshal(entry, &fields); err != nil {
		return ""
	}
	return fields.Waybill
}
