// seed inserts a development account for local testing. Idempotent: skips
// when the dev account (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"os"

	"github.com/google/uuid"

	accountdomain "city-report/backend/internal/account/domain"
	accountrepo "city-report/backend/internal/account/repository"
	"city-report/backend/internal/config"
	"city-report/backend/internal/db"
	"city-report/backend/internal/security"
)

const (
	devEmail    = "dev@example.com"
	devPassword = "Password123!"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	accounts := accountrepo.NewPostgresRepository(pool)

	existing, err := accounts.GetByEmail(ctx, devEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash(devPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	account := &accountdomain.Account{
		FirstName:      "Dev",
		LastName:       "Account",
		Email:          devEmail,
		PasswordHash:   passwordHash,
		ActivationCode: uuid.NewString(),
	}
	if err := accounts.Create(ctx, account); err != nil {
		log.Fatalf("create dev account: %v", err)
	}
	if _, err := accounts.MarkActivated(ctx, account.ID); err != nil {
		log.Fatalf("activate dev account: %v", err)
	}

	log.Printf("Seeded dev account %s (id %d), password %q", devEmail, account.ID, devPassword)
}
