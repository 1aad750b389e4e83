package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"productId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Owner       string          `json:"owner"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// CartLine is keyed by (ProductID, Customer).
type CartLine struct {
	ProductID string    `json:"productId"`
	Customer  string    `json:"customer"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// Order is immutable after creation except for Status.
type Order struct {
	ID              string    `json:"orderId"`
	ProductID       string    `json:"productId"`
	Quantity        int       `json:"quantity"`
	Customer        string    `json:"customer"`
	Status          Status    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	ShippingAddress string    `json:"shippingAddress"`
	PaymentMethod   string    `json:"paymentMethod"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role Role
}

type CartItemView struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type CartView struct {
	Customer string          `json:"customer"`
	Items    []CartItemView  `json:"items"`
	Total    decimal.Decimal `json:"total"`
}
