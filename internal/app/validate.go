package app

import (
	"fmt"
	"os"

	"tradepost/pkg/config"
	"tradepost/pkg/httpx"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(cfg *config.Config, dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, TRADEPOST_DB_PATH env, or storage.db_path in config")
	}

	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	switch cfg.Server.Engine {
	case "", httpx.EngineNetHTTP, httpx.EngineFastHTTP:
	default:
		return fmt.Errorf("unknown server.engine %q: use %q or %q", cfg.Server.Engine, httpx.EngineNetHTTP, httpx.EngineFastHTTP)
	}

	if cfg.Security.RateLimit.RPS < 0 || cfg.Security.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must be non-negative")
	}

	return nil
}
