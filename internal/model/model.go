package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Roles recognized by the identity layer.
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"password"` // bcrypt hash
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Stock       int             `json:"stock"`
	Featured    bool            `json:"featured"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type CartItem struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// Cart is keyed by its owner: at most one cart per user.
type Cart struct {
	UserID    uuid.UUID  `json:"userId"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// AddItem merges quantity into an existing line for the product, or appends a
// new line with a fresh id. Repeated adds accumulate, they never replace.
func (c *Cart) AddItem(productID uuid.UUID, quantity int, now time.Time) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			c.UpdatedAt = now
			return &c.Items[i]
		}
	}
	c.Items = append(c.Items, CartItem{
		ID:        uuid.New(),
		ProductID: productID,
		Quantity:  quantity,
		AddedAt:   now,
	})
	c.UpdatedAt = now
	return &c.Items[len(c.Items)-1]
}

// SetQuantity replaces the quantity of an existing line. Returns false if the
// line is absent.
func (c *Cart) SetQuantity(itemID uuid.UUID, quantity int, now time.Time) bool {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items[i].Quantity = quantity
			c.UpdatedAt = now
			return true
		}
	}
	return false
}

// RemoveItem removes the line if present. Removing an absent line is a no-op.
func (c *Cart) RemoveItem(itemID uuid.UUID, now time.Time) {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.UpdatedAt = now
			return
		}
	}
}

// Clear empties the line sequence, keeping the cart itself.
func (c *Cart) Clear(now time.Time) {
	c.Items = c.Items[:0]
	c.UpdatedAt = now
}

// Item returns the line with the given id, or nil.
func (c *Cart) Item(itemID uuid.UUID) *CartItem {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a member of the closed status set.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further fulfillment work follows s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransition validates a status change. Any member of the status set is
// currently accepted from an authorized caller; routing every change through
// here leaves room for a stricter transition table without touching callers.
func CanTransition(from, to OrderStatus) bool {
	return to.Valid()
}

type Address struct {
	FullName   string `json:"fullName"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Empty reports whether the address carries no usable destination.
func (a Address) Empty() bool {
	return a.Street == "" || a.City == ""
}

// OrderLineItem is a frozen copy of product fields at order time. Orders stay
// historically accurate even if the product is edited or deleted later.
type OrderLineItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image"`
}

// Order is immutable after creation except for Status and UpdatedAt.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"userId"`
	Items           []OrderLineItem `json:"items"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress Address         `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// OrderMessage is the queue payload published after an order commits.
type OrderMessage struct {
	OrderID uuid.UUID `json:"order_id"`
	UserID  uuid.UUID `json:"user_id"`
}
