package main

import (
	"flag"
	"log"

	"go-inventory-offline/internal/app"
	"go-inventory-offline/internal/config"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	username := flag.String("user", cfg.Seed.AdminUsername, "account to reset")
	newPassword := flag.String("password", cfg.Seed.AdminPassword, "new password")
	flag.Parse()

	// 2. Setup Database
	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer a.Close()

	if err := a.Initialize(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	// 3. Hash and update
	if err := a.Auth.ResetPassword(*username, *newPassword); err != nil {
		log.Fatalf("❌ Failed to reset password for %s: %v", *username, err)
	}

	log.Printf("✅ Success! Password for %s has been reset", *username)
}
