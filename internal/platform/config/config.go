package config

import (
	"os"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	PostgresDSN string
	SigningKey  string
	TokenTTL    time.Duration
	AuditBuffer int
}

var defaultTokenTTL = 24 * time.Hour

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("TRADEPOST_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	environment := os.Getenv("TRADEPOST_ENV")
	if environment == "" {
		environment = "development"
	}

	tokenTTL := defaultTokenTTL
	if raw := os.Getenv("CAP_TOKEN_TTL"); raw != "" {
		if duration, err := time.ParseDuration(raw); err == nil {
			tokenTTL = duration
		}
	}

	signingKey := os.Getenv("CAP_SIGNING_KEY")
	if signingKey == "" {
		// Development fallback; override in production.
		signingKey = "dev-secret-key-change-in-production"
	}

	auditBuffer := 256
	if os.Getenv("AUDIT_SYNC") == "true" {
		auditBuffer = 0
	}

	return Server{
		Addr:        addr,
		Environment: environment,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		SigningKey:  signingKey,
		TokenTTL:    tokenTTL,
		AuditBuffer: auditBuffer,
	}
}
