package validation

// Item is one checkout line.
type Item struct {
	ProductID string  `json:"product_id" validate:"required"`
	Name      string  `json:"name,omitempty" validate:"max=200"`
	Quantity  int     `json:"quantity" validate:"required,min=1"`
	UnitPrice float64 `json:"unit_price" validate:"required,gt=0"`
}

// Customer is the buyer snapshot sent by the storefront. It is optional; the
// desk falls back to the customers table when it is missing.
type Customer struct {
	FirstName string `json:"first_name" validate:"required_with=LastName,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// CheckoutRequest is the payload for POST /orders.
type CheckoutRequest struct {
	CustomerID     string    `json:"customer_id" validate:"required"`
	Customer       *Customer `json:"customer,omitempty" validate:"omitempty"`
	ShippingMethod string    `json:"shipping_method" validate:"required,max=40"` // pickup, delivery or a carrier label
	Items          []Item    `json:"items" validate:"required,min=1,dive"`
	Amount         float64   `json:"amount" validate:"required,gt=0"` // total the client claims
}

// ListQuery is the query string of GET /admin/orders.
type ListQuery struct {
	Q      string `form:"q" validate:"max=100"`
	Filter string `form:"filter" validate:"omitempty,order_filter"`
}

// StatusPatch is the payload for PATCH /admin/orders/:id/status.
type StatusPatch struct {
	From string `json:"from" validate:"required,order_status"`
	To   string `json:"to" validate:"required,order_status"`
}
