package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/savorly/savorly-api/config"
	"github.com/savorly/savorly-api/internal/domain/directory"
	"github.com/savorly/savorly-api/internal/infrastructure/redisdir"
	"github.com/savorly/savorly-api/pkg/helpers"
)

// Seeds a demo account with a couple of recipes so the profile endpoints
// have something to show locally.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	name := "demoUser"
	email := "demo@savorly.dev"
	password := "password123"

	var id int64
	err = db.QueryRow(`
		INSERT INTO users (name, email, password, avatar_url)
		VALUES ($1, $2, $3, '')
		ON CONFLICT (name) DO UPDATE SET email = EXCLUDED.email
		RETURNING id
	`, name, email, password).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed user: %v", err)
	}
	fmt.Printf("seeded user: id=%d name=%s email=%s password=%s\n", id, name, email, password)

	for _, title := range []string{"Weeknight carbonara", "Miso ramen from scratch"} {
		if _, err := db.Exec(`
			INSERT INTO recipes (user_id, title, description)
			VALUES ($1, $2, '')
			ON CONFLICT DO NOTHING
		`, id, title); err != nil {
			log.Fatalf("failed to seed recipe: %v", err)
		}
	}
	fmt.Println("seeded recipes")

	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()

	dir := redisdir.New(rdb)
	if err := dir.Rewrite(ctx, name, password, []string{directory.RoleUser}); err != nil {
		log.Fatalf("failed to seed credential: %v", err)
	}
	fmt.Println("seeded credential entry")
}
