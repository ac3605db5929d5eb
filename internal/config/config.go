// Package config loads the server configuration from the environment,
// with an optional local .env file for development.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the deployment configuration for one execution domain.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// DomainID is the execution domain this deployment hosts. Markets
	// whose home domain differs are reached through Peers.
	DomainID string

	// DatabaseURL enables the PostgreSQL store when set; otherwise the
	// in-memory store is used.
	DatabaseURL string

	// RedisURL enables the read-through cache when set (requires
	// DatabaseURL).
	RedisURL string

	// ReadOnly disables the mutation surface: only the query view is
	// routed.
	ReadOnly bool

	// SharedDomain pins every created market to DomainID instead of
	// deriving a fresh domain per market.
	SharedDomain bool

	// DeriveDomains derives a deterministic domain identifier per market
	// instead of pinning markets to DomainID. Ignored when SharedDomain is
	// set.
	DeriveDomains bool

	// Peers maps a remote domain identifier to the base URL of the
	// deployment hosting it, e.g. "dom-b=http://host-b:8080,dom-c=...".
	Peers map[string]string
}

// Load reads configuration from the environment. A missing .env file is
// not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getenv("PORT", "8080"),
		DomainID:      getenv("DOMAIN_ID", "primary"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		ReadOnly:      os.Getenv("READ_ONLY") == "true",
		SharedDomain:  os.Getenv("SHARED_DOMAIN") == "true",
		DeriveDomains: os.Getenv("DERIVE_DOMAINS") == "true",
		Peers:         map[string]string{},
	}

	if peers := os.Getenv("PEER_DOMAINS"); peers != "" {
		for _, pair := range strings.Split(peers, ",") {
			domain, url, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || domain == "" || url == "" {
				return nil, fmt.Errorf("config: malformed PEER_DOMAINS entry %q", pair)
			}
			cfg.Peers[domain] = url
		}
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
