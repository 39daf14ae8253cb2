package core

import "errors"

var (
	// ErrNotFound means a referenced contact or column does not exist.
	ErrNotFound = errors.New("not found")

	// ErrGatewayDelivery means the messaging network rejected or timed
	// out on a send. Nothing is persisted when this is returned.
	ErrGatewayDelivery = errors.New("gateway delivery failed")

	// ErrDuplicateDelivery means an inbound payload carried a provider
	// message id that was already recorded. Callers treat it as success.
	ErrDuplicateDelivery = errors.New("duplicate inbound delivery")

	// ErrMalformedPayload means an inbound payload was missing the
	// fields required to record it.
	ErrMalformedPayload = errors.New("malformed inbound payload")
)
