package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type ServiceConfig struct {
	Addr        string
	DatabaseURL string
	AdminToken  string

	// How often the worker re-triggers a simulation window.
	RunEvery time.Duration

	// Optional YAML file overriding the simulator's tuned constants.
	TuningPath string

	// Generate the current week's roster at worker startup.
	StartupGenerate bool
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadServiceFromEnv() (ServiceConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("SPINRANK_ADMIN_ADDR", ":8080")
	}

	cfg := ServiceConfig{
		Addr:            addr,
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AdminToken:      strings.TrimSpace(os.Getenv("SPINRANK_ADMIN_TOKEN")),
		RunEvery:        envDurationDefault("SPINRANK_RUN_EVERY", time.Minute),
		TuningPath:      strings.TrimSpace(os.Getenv("SPINRANK_TUNING_FILE")),
		StartupGenerate: envBoolDefault("SPINRANK_STARTUP_GENERATE", true),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AdminToken == "" {
		return cfg, fmt.Errorf("SPINRANK_ADMIN_TOKEN is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("SPINCTL_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
