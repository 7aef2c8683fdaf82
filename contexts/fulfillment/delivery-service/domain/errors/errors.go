package errors

import "errors"

var (
	ErrInvalidShipmentInput   = errors.New("invalid shipment input")
	ErrShipmentNotFound       = errors.New("shipment not found")
	ErrInvalidStateTransition = errors.New("invalid shipment state transition")
	ErrOrderDetailsNotFound   = errors.New("order details not found")
)
