package ledger

import (
	"context"
	"fmt"
)

// =============================================================================
// INVENTORY RESERVATION - Stock tied to a sale's lifecycle
// =============================================================================

// Reserve takes quantity units of the product out of stock as part of the
// transaction behind s. The check and the decrement are a single guarded
// write, so two concurrent reservations can never overdraw.
func Reserve(ctx context.Context, s Store, product ProductID, quantity int) error {
	if quantity <= 0 {
		return invalidInput("quantity", "must be positive")
	}

	ok, err := s.DecrementStock(ctx, product, quantity)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if ok {
		return nil
	}

	// Nothing changed; re-read to explain why.
	p, err := s.GetProduct(ctx, product)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if p == nil {
		return ErrProductNotFound
	}
	return &InsufficientStockError{ProductID: product, Available: p.StockQuantity, Requested: quantity}
}

// Release returns quantity units to stock, undoing a reservation.
func Release(ctx context.Context, s Store, product ProductID, quantity int) error {
	if quantity <= 0 {
		return invalidInput("quantity", "must be positive")
	}
	if err := s.IncrementStock(ctx, product, quantity); err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	return nil
}
