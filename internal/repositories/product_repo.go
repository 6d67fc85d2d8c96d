package repositories

import (
	"context"

	"inventory/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	// ListByUser returns the products owned by userID, newest first.
	ListByUser(ctx context.Context, userID string) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}
