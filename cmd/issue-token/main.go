// Command issue-token prints a bearer token for a directory user, for local
// testing against the console API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/config"
	"github.com/fleetconsole/console/internal/db"
	"github.com/fleetconsole/console/internal/directory"
)

func main() {
	userID := flag.String("user", "", "directory user id")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		log.Fatal("usage: issue-token -user <id> [-ttl 12h]")
	}

	_ = godotenv.Load(".env.local")
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := db.Connect(cfg.DatabaseURL, false); err != nil {
		log.Fatalf("connect: %v", err)
	}

	actor, err := directory.New(db.DB).FindActor(context.Background(), *userID)
	if err != nil {
		log.Fatalf("lookup %s: %v", *userID, err)
	}

	token, err := access.NewTokenResolver(cfg.JWTSecret).Issue(*actor, *ttl)
	if err != nil {
		log.Fatalf("issue: %v", err)
	}
	fmt.Println(token)
}
