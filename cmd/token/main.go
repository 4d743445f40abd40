// Package main mints access tokens for local development and smoke tests.
//
//	go run ./cmd/token -sub alice -name "Alice Moyo"
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"procura/internal/config"
	"procura/internal/infrastructure/auth"
)

func main() {
	sub := flag.String("sub", "", "user id placed in the token subject")
	name := flag.String("name", "", "display name")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *sub == "" {
		fmt.Fprintln(os.Stderr, "-sub is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.JWTSecret) < 32 {
		fmt.Fprintln(os.Stderr, "JWT_SECRET must be at least 32 bytes")
		os.Exit(1)
	}

	jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtCfg.AccessTokenTTL = *ttl

	token, expires, err := auth.NewJWTService(jwtCfg).GenerateAccessToken(*sub, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expires.Format(time.RFC3339))
}
