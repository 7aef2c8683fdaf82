package errors

import "errors"

var (
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrItemNotFound      = errors.New("inventory: item not found")
	ErrInvalidItemInput  = errors.New("inventory: invalid item input")
)
