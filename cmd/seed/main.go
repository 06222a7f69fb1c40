// Package main provides a CLI tool for seeding the database with demo data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/batch"
	"lotkeeper/internal/domain/location"
	"lotkeeper/internal/infrastructure/auth"
	v1 "lotkeeper/internal/infrastructure/http/v1"
	"lotkeeper/internal/infrastructure/storage/postgres"
	"lotkeeper/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)
	services := v1.BuildServices(txManager, nil)

	ctx = logger.WithLogger(ctx, log)

	if err := seedDemoData(ctx, services, log); err != nil {
		log.Fatalw("failed to seed demo data", "error", err)
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		printDemoToken(secret, log)
	}

	log.Info("seeding completed successfully")
}

func seedDemoData(ctx context.Context, services v1.Services, log *logger.Logger) error {
	// Storage locations.
	shelfA := location.New("A-01", "Aisle A, slot 1", types.NewQuantityFromInt(500))
	backroom := location.New("BR-01", "Backroom rack 1", types.NewQuantityFromInt(2000))
	for _, l := range []*location.Location{shelfA, backroom} {
		if err := services.Locations.Create(ctx, l); err != nil {
			return fmt.Errorf("create location %s: %w", l.Code, err)
		}
	}

	// Demo products: milk (short dated), pasta (long dated), salt (no expiry).
	milk := id.New()
	pasta := id.New()
	salt := id.New()

	now := time.Now().UTC()
	in5d := now.AddDate(0, 0, 5)
	in30d := now.AddDate(0, 0, 30)
	in2y := now.AddDate(2, 0, 0)

	batches := []batch.CreateParams{
		{ProductID: milk, ManufactureDate: now.AddDate(0, 0, -2), ExpiryDate: &in5d,
			DeclaredQuantity: types.NewQuantityFromInt(40), ReceiveStock: true},
		{ProductID: milk, ManufactureDate: now.AddDate(0, 0, -1), ExpiryDate: &in30d,
			DeclaredQuantity: types.NewQuantityFromInt(80), ReceiveStock: true},
		{ProductID: pasta, ManufactureDate: now.AddDate(0, -1, 0), ExpiryDate: &in2y,
			DeclaredQuantity: types.NewQuantityFromInt(200), ReceiveStock: true},
		{ProductID: salt, ManufactureDate: now.AddDate(0, -6, 0),
			DeclaredQuantity: types.NewQuantityFromInt(500), ReceiveStock: true},
	}

	for i, p := range batches {
		b, err := services.Batches.Create(ctx, p)
		if err != nil {
			return fmt.Errorf("create batch %d: %w", i, err)
		}

		// Put part of each delivery on the shelf and store the rest.
		shelfQty := types.NewQuantityFromFloat64(p.DeclaredQuantity.Float64() / 4)
		if shelfQty.IsPositive() {
			if err := services.Ledgers.MoveToShelf(ctx, b.ID, shelfQty, "initial stocking"); err != nil {
				return fmt.Errorf("stock shelf for batch %s: %w", b.Code, err)
			}
		}
		if err := services.Ledgers.AssignLocation(ctx, b.ID, backroom.ID); err != nil {
			return fmt.Errorf("assign location for batch %s: %w", b.Code, err)
		}

		// Short-dated milk goes on promotion.
		if i == 0 {
			if _, err := services.Batches.SetDiscount(ctx, b.ID, types.NewPercent(30)); err != nil {
				return fmt.Errorf("set discount for batch %s: %w", b.Code, err)
			}
		}

		log.Infow("seeded batch", "code", b.Code, "product_id", b.ProductID)
	}

	// Replenishment thresholds.
	for productID, point := range map[id.ID]types.Quantity{
		milk:  types.NewQuantityFromInt(20),
		pasta: types.NewQuantityFromInt(50),
		salt:  types.NewQuantityFromInt(100),
	} {
		if err := services.Inventory.SetReorderPoint(ctx, productID, point); err != nil {
			return fmt.Errorf("set reorder point: %w", err)
		}
	}

	log.Infow("seeded demo products",
		"milk", milk, "pasta", pasta, "salt", salt)
	return nil
}

// printDemoToken issues a token for local API exploration.
func printDemoToken(secret string, log *logger.Logger) {
	m := auth.NewJWTManager(secret, "lotkeeper", 24*time.Hour)
	token, err := m.Issue("seed-admin", "admin@lotkeeper.local", []string{"manager"})
	if err != nil {
		log.Warnw("failed to issue demo token", "error", err)
		return
	}
	fmt.Printf("demo token: %s\n", token)
}
