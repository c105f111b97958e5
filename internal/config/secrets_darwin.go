//go:build darwin

package config

import (
	"os"
	"os/exec"
	"path/filepath"
)

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Library", "Application Support", "legitcheck")
	}
	return "legitcheck-data"
}

func secretStoreHint() string {
	return "the macOS Keychain (service " + keychainService + ", account = config key)"
}

// Secrets are generic Keychain passwords whose account is the config key,
// e.g. "llm.api_key".
func secretGet(key string) (string, error) {
	out, err := exec.Command("security", "find-generic-password", "-s", keychainService, "-a", key, "-w").Output()
	return string(out), err
}

func secretSet(key, value string) error {
	return exec.Command("security", "add-generic-password", "-U", "-s", keychainService, "-a", key, "-w", value).Run()
}
