// Command token mints a bearer token for operators when the admin gate on the
// user routes is enabled.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spec-kit/repair-shop-service/internal/auth"
	"github.com/spec-kit/repair-shop-service/internal/config"
	"github.com/spec-kit/repair-shop-service/internal/domain"
)

func main() {
	subject := flag.String("sub", "", "subject id to embed in the token")
	role := flag.String("role", string(domain.RoleAdmin), "role claim: standard or admin")
	flag.Parse()

	if *subject == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes)
	token, expiresAt, err := tokens.GenerateToken(*subject, domain.Role(*role))
	if err != nil {
		log.Fatalf("failed to mint token: %v", err)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
}
