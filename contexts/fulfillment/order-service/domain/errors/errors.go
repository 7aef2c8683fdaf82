package errors

import "errors"

var (
	ErrInvalidOrderInput      = errors.New("order: invalid order input")
	ErrOrderNotFound          = errors.New("order: order not found")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
)
