// Package inventory decrements per-product stock when an order is
// confirmed. Stock never goes negative: decrements clamp at zero, trading
// a possible oversell for a sane stock figure downstream.
package inventory

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/nplusone-fashion/fulfillment-service/internal/domain"
)

type ProductStore interface {
	GetStockQuantity(ctx context.Context, productID uuid.UUID) (int, error)
	UpdateStockQuantity(ctx context.Context, productID uuid.UUID, stock int) error
}

type Adjuster struct {
	products ProductStore
}

func NewAdjuster(products ProductStore) *Adjuster {
	return &Adjuster{products: products}
}

// DecrementStock applies max(0, current-quantity) to the product's stock.
// A product that has been removed from the catalog is skipped silently: an
// order must not fail because its product no longer exists. Not internally
// idempotent; the orchestrator runs it once per confirmed order.
func (a *Adjuster) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	current, err := a.products.GetStockQuantity(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			log.Printf("[inventory] product %s no longer exists, skipping stock decrement", productID)
			return nil
		}
		return err
	}

	newStock := current - quantity
	if newStock < 0 {
		newStock = 0
	}

	return a.products.UpdateStockQuantity(ctx, productID, newStock)
}
