package domain

import "time"

// DefaultVariant is used when a product is seeded without an explicit variant.
const DefaultVariant = "Standard"

type Product struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Price       float64   `bson:"price" json:"price"`
	Category    string    `bson:"category" json:"category"`
	Variant     string    `bson:"variant" json:"variant"`
	Image       string    `bson:"image" json:"image"`
	Description string    `bson:"description" json:"description"`
	Stock       int       `bson:"stock" json:"stock"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}
