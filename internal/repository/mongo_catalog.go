package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fjod/storefront/internal/domain"
)

// Product and cart documents carry hex object ids as plain strings so the
// same identifier travels through cart lines, order items and URLs.

type MongoCatalogRepository struct {
	collection *mongo.Collection
}

func NewMongoCatalogRepository(db *mongo.Database) *MongoCatalogRepository {
	return &MongoCatalogRepository{
		collection: db.Collection("products"),
	}
}

func (m *MongoCatalogRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var product domain.Product
	err := m.collection.FindOne(ctx, bson.M{"_id": productID}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

func (m *MongoCatalogRepository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	cursor, err := m.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []*domain.Product
	for cursor.Next(ctx) {
		p := &domain.Product{}
		if err := cursor.Decode(p); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		products = append(products, p)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration error: %w", err)
	}

	return products, nil
}

func (m *MongoCatalogRepository) InsertProduct(ctx context.Context, product *domain.Product) (string, error) {
	now := time.Now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	if product.Variant == "" {
		product.Variant = domain.DefaultVariant
	}
	if product.ID == "" {
		product.ID = primitive.NewObjectID().Hex()
	}

	if _, err := m.collection.InsertOne(ctx, product); err != nil {
		return "", fmt.Errorf("failed to insert product: %w", err)
	}

	return product.ID, nil
}

// DecrementStock performs the conditional atomic update `stock -= n where
// stock >= n`. Concurrent checkouts on the same product cannot both pass:
// the filter re-checks live stock at write time, closing the gap between
// stock checking and decrementing.
func (m *MongoCatalogRepository) DecrementStock(ctx context.Context, productID string, n int) error {
	filter := bson.M{"_id": productID, "stock": bson.M{"$gte": n}}
	update := bson.M{
		"$inc": bson.M{"stock": -n},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	if result.MatchedCount == 0 {
		// Distinguish a missing product from depleted stock.
		count, countErr := m.collection.CountDocuments(ctx, bson.M{"_id": productID})
		if countErr != nil {
			return fmt.Errorf("failed to check product existence: %w", countErr)
		}
		if count == 0 {
			return ErrProductNotFound
		}
		return ErrInsufficientStock
	}

	return nil
}

func (m *MongoCatalogRepository) IncrementStock(ctx context.Context, productID string, n int) error {
	update := bson.M{
		"$inc": bson.M{"stock": n},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": productID}, update)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}

	return nil
}
