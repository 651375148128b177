package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/fleetconsole/console/internal/config"
	"github.com/fleetconsole/console/internal/db"
	"github.com/fleetconsole/console/internal/seeds"
)

func main() {
	path := flag.String("users", seeds.DefaultUsersFile, "YAML file of directory users")
	flag.Parse()

	_ = godotenv.Load(".env.local")
	cfg := config.LoadFromEnv()
	if err := db.Connect(cfg.DatabaseURL, false); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}

	if err := seeds.SeedAll(context.Background(), db.DB, *path); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}
}
