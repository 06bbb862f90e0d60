// cmd/gentoken prints a signed operator JWT for scripts and the till kiosk.
//
//	gentoken -id 1 -user till -role operator
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/config"
	"github.com/ethan0sc4r/gestione-vinicola/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	id := flag.Uint("id", 1, "operator id recorded on ledger rows")
	user := flag.String("user", "till", "username claim")
	role := flag.String("role", middleware.RoleOperator, "operator | admin")
	hours := flag.Int("hours", 0, "lifetime in hours (default JWT_EXPIRATION_HOURS)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}
	if *role != middleware.RoleOperator && *role != middleware.RoleAdmin {
		fmt.Fprintln(os.Stderr, "role must be operator or admin")
		os.Exit(2)
	}
	ttl := cfg.JWTExpirationHours
	if *hours > 0 {
		ttl = *hours
	}

	token, err := signToken(cfg.JWTSecret, uint(*id), *user, *role, time.Duration(ttl)*time.Hour)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func signToken(secret string, id uint, user, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := middleware.JWTClaims{
		OperatorID: id,
		Username:   user,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(id),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
