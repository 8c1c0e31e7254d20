package inventory

import "errors"

var (
	// ErrInsufficientStock: the inventory service answered 409.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrItemNotFound: the inventory service does not know the book (404).
	ErrItemNotFound = errors.New("inventory item not found")
	// ErrServiceError covers any other non-2xx answer and inconsistent 2xx bodies.
	ErrServiceError = errors.New("inventory service error")
	// ErrServiceUnavailable covers transport failures, timeouts, unreadable
	// bodies and an open circuit.
	ErrServiceUnavailable = errors.New("inventory service unavailable")
)
