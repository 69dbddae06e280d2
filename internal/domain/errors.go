package domain

import "errors"

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")

	// ErrAlreadyBooked guards the single-waybill invariant on rebooking
	// attempts without an intervening cancellation.
	ErrAlreadyBooked = errors.New("shipment already booked for order")

	ErrInvalidSignature = errors.New("invalid payment signature")
)
