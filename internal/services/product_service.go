package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"inventory/internal/models"
	"inventory/internal/repositories"
	"inventory/pkg/media"

	"go.uber.org/zap"
)

// Product event routing keys.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
)

// EventPublisher delivers domain events to a broker.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// ProductEvent is published after every successful product write.
type ProductEvent struct {
	Event     string    `json:"event"`
	ProductID string    `json:"productId"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
	At        time.Time `json:"at"`
}

// ProductInput carries product fields from the client. Nil means absent.
type ProductInput struct {
	Name        *string
	SKU         *string
	Category    *string
	Quantity    *int
	Price       *float64
	Description *string
}

// ProductService handles business logic related to products.
// Every read and write is scoped to the requesting owner.
type ProductService struct {
	repo      repositories.ProductRepository
	uploader  media.Uploader
	folder    string
	publisher EventPublisher
	log       *zap.Logger
}

// NewProductService creates a new ProductService. publisher may be nil.
func NewProductService(repo repositories.ProductRepository, uploader media.Uploader, folder string, publisher EventPublisher, log *zap.Logger) *ProductService {
	return &ProductService{
		repo:      repo,
		uploader:  uploader,
		folder:    folder,
		publisher: publisher,
		log:       log.Named("products"),
	}
}

// Create stores a new product owned by userID, uploading image first when present.
func (s *ProductService) Create(ctx context.Context, userID string, in ProductInput, image *media.File) (*models.Product, error) {
	if !in.complete() {
		return nil, newError(ErrValidation, "Please, fill in all fields")
	}
	if err := in.checkRanges(); err != nil {
		return nil, err
	}

	product := &models.Product{UserID: userID}
	in.applyTo(product)

	if image != nil {
		img, err := s.upload(ctx, image)
		if err != nil {
			return nil, err
		}
		product.Image = img
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.log.Info("product created", zap.String("product_id", product.ID), zap.String("user_id", userID))
	s.publish(EventProductCreated, product)
	return product, nil
}

// List returns the products of userID, newest first. It never returns nil.
func (s *ProductService) List(ctx context.Context, userID string) ([]models.Product, error) {
	products, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// GetOne returns a product owned by userID.
func (s *ProductService) GetOne(ctx context.Context, userID, productID string) (*models.Product, error) {
	return s.getOwned(ctx, userID, productID)
}

// Delete removes a product owned by userID.
func (s *ProductService) Delete(ctx context.Context, userID, productID string) error {
	product, err := s.getOwned(ctx, userID, productID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, product.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return wrapError(ErrNotFound, err, "Product not found")
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.log.Info("product deleted", zap.String("product_id", product.ID), zap.String("user_id", userID))
	s.publish(EventProductDeleted, product)
	return nil
}

// Update applies the supplied fields to a product owned by userID. Without a new
// image the stored image is kept as is. Owner and ID never change.
func (s *ProductService) Update(ctx context.Context, userID, productID string, in ProductInput, image *media.File) (*models.Product, error) {
	product, err := s.getOwned(ctx, userID, productID)
	if err != nil {
		return nil, err
	}

	if err := in.checkPresent(); err != nil {
		return nil, err
	}
	if err := in.checkRanges(); err != nil {
		return nil, err
	}
	in.applyTo(product)

	if image != nil {
		img, err := s.upload(ctx, image)
		if err != nil {
			return nil, err
		}
		product.Image = img
	}

	if err := s.repo.Update(ctx, product); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, wrapError(ErrNotFound, err, "Product not found")
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.log.Info("product updated", zap.String("product_id", product.ID), zap.String("user_id", userID))
	s.publish(EventProductUpdated, product)
	return product, nil
}

// getOwned hides products of other owners behind the same error as missing ones.
func (s *ProductService) getOwned(ctx context.Context, userID, productID string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, wrapError(ErrNotFound, err, "Product not found")
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product.UserID != userID {
		s.log.Debug("ownership mismatch", zap.String("product_id", productID), zap.String("user_id", userID))
		return nil, newError(ErrNotFound, "Product not found")
	}
	return product, nil
}

func (s *ProductService) upload(ctx context.Context, file *media.File) (models.Image, error) {
	if !media.IsAllowedType(file.ContentType) {
		return models.Image{}, newError(ErrValidation, "Only .png, .jpg and .jpeg images are allowed")
	}

	url, err := s.uploader.Upload(ctx, s.folder, *file)
	if err != nil {
		s.log.Error("image upload failed", zap.String("file", file.Name), zap.Error(err))
		return models.Image{}, wrapError(ErrUpload, err, "Image could not be uploaded")
	}

	return models.Image{
		FileName: file.Name,
		FilePath: url,
		FileType: file.ContentType,
		FileSize: media.FormatSize(file.Size, 2),
	}, nil
}

func (s *ProductService) publish(event string, p *models.Product) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(event, ProductEvent{
		Event:     event,
		ProductID: p.ID,
		UserID:    p.UserID,
		Name:      p.Name,
		SKU:       p.SKU,
		Quantity:  p.Quantity,
		At:        time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("failed to publish product event", zap.String("event", event), zap.String("product_id", p.ID), zap.Error(err))
	}
}

func (in ProductInput) complete() bool {
	for _, field := range []*string{in.Name, in.SKU, in.Category, in.Description} {
		if field == nil || strings.TrimSpace(*field) == "" {
			return false
		}
	}
	return in.Quantity != nil && in.Price != nil
}

func (in ProductInput) checkPresent() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"name", in.Name},
		{"sku", in.SKU},
		{"category", in.Category},
		{"description", in.Description},
	}
	for _, f := range fields {
		if f.value != nil && strings.TrimSpace(*f.value) == "" {
			return newError(ErrValidation, "Field %s cannot be empty", f.name)
		}
	}
	return nil
}

func (in ProductInput) checkRanges() error {
	if in.Quantity != nil && *in.Quantity < 0 {
		return newError(ErrValidation, "Quantity cannot be negative")
	}
	if in.Price != nil {
		// NaN and infinities cannot be stored or rendered as JSON.
		if math.IsNaN(*in.Price) || math.IsInf(*in.Price, 0) {
			return newError(ErrValidation, "Price must be a finite number")
		}
		if *in.Price < 0 {
			return newError(ErrValidation, "Price cannot be negative")
		}
	}
	return nil
}

func (in ProductInput) applyTo(p *models.Product) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.SKU != nil {
		p.SKU = strings.TrimSpace(*in.SKU)
	}
	if in.Category != nil {
		p.Category = strings.TrimSpace(*in.Category)
	}
	if in.Quantity != nil {
		p.Quantity = *in.Quantity
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
}
