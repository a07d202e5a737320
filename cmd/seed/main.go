package main

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
)

var categories = []string{
	"Tourist Visa",
	"Business Visa",
	"Student Visa",
	"Work Visa",
	"Family Visa",
	"Transit Visa",
	"Medical Visa",
	"Digital Nomad Visa",
	"Residence Permit",
	"Visa Extension",
}

var countries = []string{
	"USA", "UK", "Canada", "Australia", "Germany",
	"France", "Japan", "India", "Spain", "Singapore",
}

var variants = []string{"Standard", "Express", "Premium", "VIP", "Budget"}

// Seeds the catalog with generated products, five per category.
func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()
	ctx := context.Background()

	db, err := repository.ConnectMongoDB(ctx, repository.MongoConfig{
		URI:         cfg.MongoURI,
		Database:    cfg.MongoDBName,
		MaxPoolSize: uint64(cfg.MongoMaxPoolSize),
		MinPoolSize: uint64(cfg.MongoMinPoolSize),
	})
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer db.Client().Disconnect(ctx)

	catalog := repository.NewMongoCatalogRepository(db)

	count := 0
	for _, category := range categories {
		for i := 0; i < 5; i++ {
			country := countries[rand.Intn(len(countries))]
			variant := variants[rand.Intn(len(variants))]

			product := &domain.Product{
				Name:        fmt.Sprintf("%s - %s", category, country),
				Price:       float64(50 + rand.Intn(450)),
				Category:    category,
				Variant:     variant,
				Image:       fmt.Sprintf("https://via.placeholder.com/150?text=%s", strings.ReplaceAll(category, " ", "+")),
				Description: fmt.Sprintf("%s %s processing for %s", variant, strings.ToLower(category), country),
				Stock:       50 + rand.Intn(150),
			}

			id, err := catalog.InsertProduct(ctx, product)
			if err != nil {
				log.Fatal("failed to insert product", zap.String("name", product.Name), zap.Error(err))
			}
			log.Debug("seeded product", zap.String("id", id), zap.String("name", product.Name))
			count++
		}
	}

	log.Info("catalog seeded", zap.Int("products", count))
}
