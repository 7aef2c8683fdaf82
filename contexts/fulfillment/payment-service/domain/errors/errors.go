package errors

import "errors"

var (
	ErrInvalidPaymentInput    = errors.New("payment: invalid payment input")
	ErrPaymentNotFound        = errors.New("payment: payment not found")
	ErrInvalidStateTransition = errors.New("payment: invalid state transition")
	ErrGatewayDeclined        = errors.New("payment: gateway declined the operation")
)
