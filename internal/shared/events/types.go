package events

// Event types published and consumed across the fulfillment saga.
// Topic names equal event types one-to-one.
const (
	TypeOrderCreated               = "order.created"
	TypeInventoryReserved          = "inventory.reserved"
	TypeInventoryReservationFailed = "inventory.reservation_failed"
	TypeInventoryReleaseRequested  = "inventory.release_requested"
	TypePaymentAuthorized          = "payment.authorized"
	TypePaymentCaptured            = "payment.captured"
	TypePaymentFailed              = "payment.failed"
	TypePaymentRefunded            = "payment.refunded"
	TypePaymentCancelled           = "payment.cancelled"
	TypeShipmentCreated            = "shipment.created"
	TypeShipmentBooked             = "shipment.booked"
	TypeShipmentBookingFailed      = "shipment.booking_failed"
	TypeShipmentDispatched         = "shipment.dispatched"
	TypeShipmentDelivered          = "shipment.delivered"
)

// OrderLine travels inside order and inventory payloads.
type OrderLine struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type OrderCreated struct {
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Items      []OrderLine `json:"items"`
}

type InventoryReserved struct {
	OrderID     string  `json:"order_id"`
	TotalAmount float64 `json:"total_amount"`
	Currency    string  `json:"currency"`
}

type InventoryReservationFailed struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type InventoryReleaseRequested struct {
	OrderID string      `json:"order_id"`
	Items   []OrderLine `json:"items"`
}

type PaymentAuthorized struct {
	OrderID          string  `json:"order_id"`
	PaymentID        string  `json:"payment_id"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	ConfirmationCode string  `json:"confirmation_code"`
}

type PaymentCaptured struct {
	OrderID          string  `json:"order_id"`
	PaymentID        string  `json:"payment_id"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	ConfirmationCode string  `json:"confirmation_code"`
}

type PaymentFailed struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

type PaymentRefunded struct {
	OrderID          string  `json:"order_id"`
	PaymentID        string  `json:"payment_id"`
	Amount           float64 `json:"amount"`
	ConfirmationCode string  `json:"confirmation_code"`
}

type PaymentCancelled struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

type ShipmentCreated struct {
	OrderID    string      `json:"order_id"`
	ShipmentID string      `json:"shipment_id"`
	Address    string      `json:"address"`
	Items      []OrderLine `json:"items"`
}

type ShipmentBooked struct {
	OrderID        string `json:"order_id"`
	ShipmentID     string `json:"shipment_id"`
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

type ShipmentBookingFailed struct {
	OrderID    string `json:"order_id"`
	ShipmentID string `json:"shipment_id"`
	Reason     string `json:"reason"`
}

type ShipmentDispatched struct {
	OrderID    string `json:"order_id"`
	ShipmentID string `json:"shipment_id"`
}

type ShipmentDelivered struct {
	OrderID    string `json:"order_id"`
	ShipmentID string `json:"shipment_id"`
}
