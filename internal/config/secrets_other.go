//go:build !darwin

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "legitcheck-data"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "legitcheck")
}

// secretsFilePath holds a flat map from secret config key to value:
//
//	llm.api_key: sk-ant-...
//	email.api_key: SG....
func secretsFilePath() string {
	return filepath.Join(configDir(), "secrets.yaml")
}

func secretStoreHint() string {
	return secretsFilePath()
}

func readSecrets() (map[string]string, error) {
	data, err := os.ReadFile(secretsFilePath())
	if err != nil {
		return nil, err
	}
	secrets := map[string]string{}
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", secretsFilePath(), err)
	}
	return secrets, nil
}

func secretGet(key string) (string, error) {
	secrets, err := readSecrets()
	if err != nil {
		return "", err
	}
	v, ok := secrets[key]
	if !ok {
		return "", fmt.Errorf("%s not in %s", key, secretsFilePath())
	}
	return v, nil
}

func secretSet(key, value string) error {
	secrets, err := readSecrets()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if secrets == nil {
		secrets = map[string]string{}
	}
	secrets[key] = value

	p := secretsFilePath()
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	data, err := yaml.Marshal(secrets)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}
