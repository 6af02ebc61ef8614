package orders

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an order. Values read from the table are
// open strings; ParseStatus folds anything unrecognised into StatusUnknown.
type Status string

const (
	StatusPending   Status = "pending"
	StatusShipped   Status = "shipped"
	StatusFulfilled Status = "fulfilled"
	StatusDelivered Status = "delivered"
	StatusCanceled  Status = "canceled"
	StatusUnknown   Status = "unknown"
)

// ParseStatus normalises s (case and surrounding space) into a known Status.
func ParseStatus(s string) Status {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusShipped, StatusFulfilled, StatusDelivered, StatusCanceled:
		return st
	case "cancelled":
		return StatusCanceled
	default:
		return StatusUnknown
	}
}

// Normalize is ParseStatus applied to the receiver.
func (s Status) Normalize() Status { return ParseStatus(string(s)) }

var transitions = map[Status][]Status{
	StatusPending:   {StatusShipped, StatusFulfilled, StatusCanceled},
	StatusShipped:   {StatusDelivered},
	StatusFulfilled: {StatusDelivered},
}

// CanTransitionTo reports whether the admin desk may move an order from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s.Normalize()] {
		if allowed == next.Normalize() {
			return true
		}
	}
	return false
}

// ShippingMethod is how an order leaves the studio. Carrier-specific labels
// ("usps_priority", "ups_ground", ...) all parse to ShippingOther.
type ShippingMethod string

const (
	ShippingPickup   ShippingMethod = "pickup"
	ShippingDelivery ShippingMethod = "delivery"
	ShippingOther    ShippingMethod = "other"
)

// ParseShippingMethod normalises s into a known ShippingMethod.
func ParseShippingMethod(s string) ShippingMethod {
	switch m := ShippingMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case ShippingPickup, ShippingDelivery:
		return m
	default:
		return ShippingOther
	}
}

// Normalize is ParseShippingMethod applied to the receiver.
func (m ShippingMethod) Normalize() ShippingMethod { return ParseShippingMethod(string(m)) }

// CustomerSnapshot is the customer data attached to an order for display and
// search. Any field may be empty.
type CustomerSnapshot struct {
	FirstName string `dynamodbav:"first_name,omitempty" json:"first_name,omitempty"`
	LastName  string `dynamodbav:"last_name,omitempty" json:"last_name,omitempty"`
	Email     string `dynamodbav:"email,omitempty" json:"email,omitempty"`
}

// LineItem is one product on an order.
type LineItem struct {
	ProductID string  `dynamodbav:"product_id" json:"product_id"`
	Name      string  `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Quantity  int     `dynamodbav:"quantity" json:"quantity"`
	UnitPrice float64 `dynamodbav:"unit_price" json:"unit_price"`
}

// Order represents the item stored in the Orders DynamoDB table.
type Order struct {
	OrderID        string            `dynamodbav:"order_id" json:"order_id"` // PK, 24-hex ObjectID
	CustomerID     string            `dynamodbav:"customer_id,omitempty" json:"customer_id,omitempty"`
	Customer       *CustomerSnapshot `dynamodbav:"customer,omitempty" json:"customer,omitempty"`
	Status         Status            `dynamodbav:"order_status" json:"order_status"`
	ShippingMethod ShippingMethod    `dynamodbav:"shipping_method" json:"shipping_method"`
	TotalAmount    float64           `dynamodbav:"total_amount" json:"total_amount"`
	Items          []LineItem        `dynamodbav:"items,omitempty" json:"items,omitempty"`
	OrderDate      time.Time         `dynamodbav:"order_date" json:"order_date"`
	UpdatedAt      time.Time         `dynamodbav:"updated_at" json:"updated_at"`
	Attempts       int               `dynamodbav:"attempts,omitempty" json:"-"`
}
