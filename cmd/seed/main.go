package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-lms-registration/config"
	"github.com/oksasatya/go-lms-registration/internal/domain/entity"
	"github.com/oksasatya/go-lms-registration/internal/domain/repository"
	pginfra "github.com/oksasatya/go-lms-registration/internal/infrastructure/postgres"
	"github.com/oksasatya/go-lms-registration/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)

	name := flag.String("name", "Admin", "admin display name")
	email := flag.String("email", "admin@lms.local", "admin email")
	password := flag.String("password", "", "admin password (required)")
	flag.Parse()
	if *password == "" {
		log.Fatal("-password is required")
	}

	ctx := context.Background()
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{MaxConns: 2, MinConns: 1, MaxConnLife: cfg.DBMaxConnLife})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	repo := pginfra.NewUserRepository(pool, helpers.NewBcryptHasher(cfg.BcryptCost))

	u, err := repo.FindByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("lookup admin: %v", err)
	}
	if u == nil {
		u = entity.NewUser(*name, *email)
	}
	u.Role = entity.RoleAdmin
	u.IsVerified = true
	u.SetPassword(*password)

	if err := repo.Save(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			log.Fatalf("admin %s was created concurrently, rerun the seed", *email)
		}
		log.Fatalf("failed to seed admin: %v", err)
	}
	logger.WithField("user_id", u.ID).WithField("email", u.Email).Info("admin seeded")
}
