package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voltmart/storefront-api/internal/ledger"
	"github.com/voltmart/storefront-api/internal/service"
	"github.com/voltmart/storefront-api/internal/store"
)

// respondError maps service failures onto the HTTP surface: bad input 400,
// absent entities 404, stock conflicts 400, authorization 403, and store
// contention 503 (the only retryable class).
func respondError(c *gin.Context, err error) {
	var short *ledger.InsufficientStockError
	var missing *ledger.NotFoundError

	switch {
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrMissingField),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &short):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "insufficient stock",
			"product_id": short.ProductID,
			"available":  short.Available,
			"requested":  short.Requested,
		})
	case errors.As(err, &missing):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found", "product_id": missing.ProductID})
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrCartNotFound),
		errors.Is(err, service.ErrCartItemNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrOrderAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrBusy):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store busy, try again"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
