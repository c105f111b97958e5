package config

// ConfigBackend is where non-secret settings persist between runs: config.yaml
// in the user config dir. `legitcheck config set|unset` writes through it.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
