package domain

import (
	"strings"
	"time"
)

// Standard tracking flow shown to customers, in order.
const (
	TrackingPlaced         = "placed"
	TrackingConfirmed      = "confirmed"
	TrackingPacked         = "packed"
	TrackingReadyToShip    = "ready_to_ship"
	TrackingShipped        = "shipped"
	TrackingOutForDelivery = "out_for_delivery"
	TrackingDelivered      = "delivered"
	TrackingCancelled      = "cancelled"
)

// StandardFlow is the timeline rendered on the tracking page.
var StandardFlow = []string{
	TrackingPlaced,
	TrackingConfirmed,
	TrackingPacked,
	TrackingShipped,
	TrackingOutForDelivery,
	TrackingDelivered,
}

type EventSource string

const (
	EventSourceSystem  EventSource = "system"
	EventSourceAdmin   EventSource = "admin"
	EventSourceCourier EventSource = "courier"
)

type TrackingEvent struct {
	Status    string      `json:"status"`
	Label     string      `json:"label"`
	Message   string      `json:"message,omitempty"`
	Location  string      `json:"location,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Source    EventSource `json:"source"`
}

// NewTrackingEvent normalizes the status tag (lowercased) and derives a
// human label from it when none is given.
func NewTrackingEvent(status, message, location string, source EventSource) TrackingEvent {
	status = strings.ToLower(strings.TrimSpace(status))
	return TrackingEvent{
		Status:    status,
		Label:     StatusLabel(status),
		Message:   message,
		Location:  location,
		Timestamp: time.Now(),
		Source:    source,
	}
}

// StatusLabel turns a snake_case status tag into a display label,
// e.g. "out_for_delivery" -> "OUT FOR DELIVERY".
func StatusLabel(status string) string {
	return strings.ToUpper(strings.ReplaceAll(status, "_", " "))
}

// OrderStatusForTracking maps a courier-reported tracking status to the
// order status it implies. The second return is false for statuses that
// do not move the order (unknown carrier codes, intermediate scans).
func OrderStatusForTracking(trackingStatus string) (OrderStatus, bool) {
	switch trackingStatus {
	case TrackingConfirmed, TrackingPacked:
		return OrderStatusProcessing, true
	case TrackingReadyToShip:
		return OrderStatusReadyToShip, true
	case TrackingShipped, TrackingOutForDelivery:
		return OrderStatusShipped, true
	case TrackingDelivered:
		return OrderStatusDelivered, true
	case TrackingCancelled:
		return OrderStatusCancelled, true
	default:
		return "", false
	}
}

// TimelineStep is one entry of the standard tracking timeline.
type TimelineStep struct {
	Status    string `json:"status"`
	Completed bool   `json:"completed"`
}

// BuildTimeline marks every standard step up to and including the current
// status as completed. Unknown statuses map to the first step.
func BuildTimeline(currentStatus string) []TimelineStep {
	currentIndex := 0
	for i, step := range StandardFlow {
		if step == currentStatus {
			currentIndex = i
			break
		}
	}

	timeline := make([]TimelineStep, len(StandardFlow))
	for i, step := range StandardFlow {
		timeline[i] = TimelineStep{Status: step, Completed: i <= currentIndex}
	}
	return timeline
}
