package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/app/repository"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/config"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/database"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/entitlements"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/env"
)

func main() {
	env.SetupEnvFile()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := database.SetupDatabase(cfg.Database, cfg.IsDev()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()
	ctx := context.Background()

	created, err := seedPlans(ctx, repos.Plan)
	if err != nil {
		log.Fatalf("Failed to seed plans: %v", err)
	}
	log.Printf("Plans seeded: %d created", created)

	email := env.GetEnv("SEED_ADMIN_EMAIL", "admin@soundsmith.local")
	key, err := seedAdmin(ctx, repos.User, env.GetEnv("SEED_ADMIN_NAME", "Administrator"), email)
	if err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}
	if key == "" {
		log.Printf("Admin %s already exists, API key unchanged", email)
		return
	}
	fmt.Printf("Admin %s created. API key (shown once): %s\n", email, key)
}

// seedPlans creates every default plan whose tier does not exist yet.
func seedPlans(ctx context.Context, plans repository.PlanRepository) (int, error) {
	created := 0
	for _, p := range entitlements.DefaultPlans() {
		exists, err := plans.TierExists(ctx, p.Tier, 0)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		if err := plans.Create(ctx, &p); err != nil {
			return created, fmt.Errorf("create plan %s: %w", p.Tier, err)
		}
		created++
	}
	return created, nil
}

// seedAdmin creates the admin user with a fresh API key. It returns an empty
// key when the user already exists.
func seedAdmin(ctx context.Context, users repository.UserRepository, name, email string) (string, error) {
	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	admin, err := models.CreateUser(name, email, models.ROLE_ADMIN)
	if err != nil {
		return "", err
	}
	key, err := admin.IssueAPIKey()
	if err != nil {
		return "", err
	}
	if err := users.Create(ctx, admin); err != nil {
		return "", err
	}
	return key, nil
}
