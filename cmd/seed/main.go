package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/provetcare/clinic-server/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	log.Println("schema applied")

	gofakeit.Seed(time.Now().UnixNano())

	staffIDs, err := seedStaff(context.Background(), pool, 5)
	if err != nil {
		log.Fatalf("seed staff: %v", err)
	}
	clientIDs, err := seedClients(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed clients: %v", err)
	}
	petIDs, err := seedPets(context.Background(), pool, clientIDs)
	if err != nil {
		log.Fatalf("seed pets: %v", err)
	}
	if err := seedInventory(context.Background(), pool, 40); err != nil {
		log.Fatalf("seed inventory: %v", err)
	}

	log.Printf("seeded %d staff, %d clients, %d pets", len(staffIDs), len(clientIDs), len(petIDs))
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, n int) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.New()
		role := "vet"
		if i == 0 {
			role = "admin"
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO users (id, full_name, email, phone, role)
			VALUES ($1, $2, $3, $4, $5)
		`, id, "Dr. "+gofakeit.Name(), gofakeit.Email(), gofakeit.Phone(), role)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedClients(ctx context.Context, pool *pgxpool.Pool, n int) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO users (id, full_name, email, phone, role)
			VALUES ($1, $2, $3, $4, 'client')
		`, id, gofakeit.Name(), gofakeit.Email(), gofakeit.Phone())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedPets(ctx context.Context, pool *pgxpool.Pool, owners []uuid.UUID) ([]uuid.UUID, error) {
	species := []string{"Perro", "Gato", "Conejo", "Ave"}

	var ids []uuid.UUID
	for _, ownerID := range owners {
		pets := gofakeit.Number(1, 3)
		for i := 0; i < pets; i++ {
			id := uuid.New()
			_, err := pool.Exec(ctx, `
				INSERT INTO pets (id, owner_id, name, species)
				VALUES ($1, $2, $3, $4)
			`, id, ownerID, gofakeit.PetName(), species[gofakeit.Number(0, len(species)-1)])
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func seedInventory(ctx context.Context, pool *pgxpool.Pool, n int) error {
	for i := 0; i < n; i++ {
		price := fmt.Sprintf("%.2f", gofakeit.Float64Range(2, 120))
		_, err := pool.Exec(ctx, `
			INSERT INTO inventory_items (id, name, unit_price)
			VALUES ($1, $2, $3)
		`, uuid.New(), gofakeit.ProductName(), price)
		if err != nil {
			return err
		}
	}
	return nil
}
