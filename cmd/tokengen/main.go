// Command tokengen prints a signed access token for local testing. Identity
// is owned by an upstream service in production.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/nekogravitycat/parking-booking-backend/internal/auth"
	"github.com/nekogravitycat/parking-booking-backend/internal/config"
)

func main() {
	userID := flag.String("user", "", "user id placed in the sub claim")
	role := flag.String("role", auth.RoleDriver, "role claim: driver or admin")
	flag.Parse()

	if *userID == "" {
		log.Fatal("-user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTokenTTL).GenerateAccessToken(*userID, *role)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}
	fmt.Println(token)
}
