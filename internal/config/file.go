package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// configDir is legitcheck's directory under the user config dir:
// $XDG_CONFIG_HOME on Linux, ~/Library/Application Support on macOS.
func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "legitcheck"
	}
	return filepath.Join(dir, "legitcheck")
}

func configFilePath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func newPlatformBackend() ConfigBackend {
	return openYAMLBackend(configFilePath())
}

// yamlBackend keeps settings in a YAML file with one section per key prefix,
// so "research.concurrency" is stored as
//
//	research:
//	  concurrency: 6
type yamlBackend struct {
	path string
	root map[string]any
}

func openYAMLBackend(path string) *yamlBackend {
	b := &yamlBackend{path: path, root: map[string]any{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", path, err)
		}
		return b
	}
	if err := yaml.Unmarshal(data, &b.root); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", path, err)
		b.root = map[string]any{}
	}
	if b.root == nil {
		b.root = map[string]any{}
	}
	return b
}

func (b *yamlBackend) lookup(key string) (any, bool) {
	section, name, nested := strings.Cut(key, ".")
	if !nested {
		v, ok := b.root[key]
		return v, ok
	}
	m, ok := b.root[section].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[name]
	return v, ok && v != nil
}

func (b *yamlBackend) set(key string, v any) error {
	section, name, nested := strings.Cut(key, ".")
	if !nested {
		b.root[key] = v
		return b.save()
	}
	m, ok := b.root[section].(map[string]any)
	if !ok {
		m = map[string]any{}
		b.root[section] = m
	}
	m[name] = v
	return b.save()
}

func (b *yamlBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(b.root)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(b.path, data, 0o600)
}

func (b *yamlBackend) GetString(key string) (string, bool, error) {
	v, ok := b.lookup(key)
	if !ok {
		return "", false, nil
	}
	if s, ok := v.(string); ok {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

func (b *yamlBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.lookup(key)
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt || n > math.MaxInt {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, n)
		}
		return int(n), true, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return i, true, nil
	}
	return 0, true, fmt.Errorf("%s: unexpected %T", key, v)
}

func (b *yamlBackend) SetString(key, val string) error { return b.set(key, val) }

func (b *yamlBackend) SetInt(key string, val int) error { return b.set(key, val) }

// Delete removes key and drops its section once empty.
func (b *yamlBackend) Delete(key string) error {
	section, name, nested := strings.Cut(key, ".")
	if !nested {
		delete(b.root, key)
		return b.save()
	}
	if m, ok := b.root[section].(map[string]any); ok {
		delete(m, name)
		if len(m) == 0 {
			delete(b.root, section)
		}
	}
	return b.save()
}
