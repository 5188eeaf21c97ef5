// Package ledger reconciles requested cart quantities against the product
// catalog. It performs no I/O: callers load the catalog, run a plan, and
// apply it, all under whatever exclusive section they hold.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voltmart/storefront-api/internal/model"
)

// Request is one cart line to validate, in cart order.
type Request struct {
	ProductID uuid.UUID
	Quantity  int
}

// Reservation pairs the pre-decrement product snapshot with the amount to
// subtract. The snapshot is what order line items freeze.
type Reservation struct {
	Product  model.Product
	Quantity int
}

// NotFoundError reports a cart line referencing a product that is not in the
// catalog.
type NotFoundError struct {
	ProductID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError reports the first line whose quantity exceeds what
// the catalog can cover.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// Plan validates every request against the catalog and returns the decrement
// plan, or the first failure in request order. A failure aborts the whole
// plan; nothing is partially reserved. Requests repeating a product draw down
// the same availability, so a plan can never overshoot stock even if the
// one-line-per-product cart invariant is violated upstream.
func Plan(requests []Request, catalog []model.Product) ([]Reservation, error) {
	index := make(map[uuid.UUID]*model.Product, len(catalog))
	for i := range catalog {
		index[catalog[i].ID] = &catalog[i]
	}

	reserved := make(map[uuid.UUID]int)
	plan := make([]Reservation, 0, len(requests))
	for _, req := range requests {
		p, ok := index[req.ProductID]
		if !ok {
			return nil, &NotFoundError{ProductID: req.ProductID}
		}
		available := p.Stock - reserved[p.ID]
		if req.Quantity > available {
			return nil, &InsufficientStockError{
				ProductID: p.ID,
				Available: available,
				Requested: req.Quantity,
			}
		}
		reserved[p.ID] += req.Quantity
		plan = append(plan, Reservation{Product: *p, Quantity: req.Quantity})
	}
	return plan, nil
}

// Apply subtracts each reservation from the matching product in the catalog
// slice. Plan has already proven every decrement is covered, so stock cannot
// go negative here.
func Apply(catalog []model.Product, plan []Reservation, now time.Time) {
	for _, res := range plan {
		for i := range catalog {
			if catalog[i].ID == res.Product.ID {
				catalog[i].Stock -= res.Quantity
				catalog[i].UpdatedAt = now
				break
			}
		}
	}
}
