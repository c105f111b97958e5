package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// dotenvPaths lists the .env files consulted by Load, in priority order.
func dotenvPaths() []string {
	return []string{
		".env",
		filepath.Join(filepath.Dir(configFilePath()), ".env"),
	}
}

// loadDotenv loads the first existing .env file. Variables already present in
// the process environment are never overridden.
func loadDotenv(paths []string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not load %s: %v\n", p, err)
			continue
		}
		return
	}
}
