package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// parseEnv loads .env when present and fills the tagged struct. Variables
// already in the environment win over the file.
func parseEnv(into any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: ignoring unreadable .env: %v\n", err)
	}

	if err := env.Parse(into); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
