package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/nplusone-fashion/fulfillment-service/internal/domain"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) GetStockQuantity(ctx context.Context, productID uuid.UUID) (int, error) {
	query := `SELECT stock_quantity FROM products WHERE id = $1`

	var stock int
	err := r.db.QueryRowContext(ctx, query, productID).Scan(&stock)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, domain.ErrProductNotFound
		}
		return 0, fmt.Errorf("stock fetch error: %v", err)
	}
	return stock, nil
}

func (r *ProductRepository) UpdateStockQuantity(ctx context.Context, productID uuid.UUID, stock int) error {
	query := `UPDATE products SET stock_quantity = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, productID, stock); err != nil {
		return fmt.Errorf("stock update error: %v", err)
	}
	return nil
}
