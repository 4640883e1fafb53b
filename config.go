package escala

import (
	"time"

	"github.com/escala-app/escala/internal/config"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Filename of the standard configuration file.
const ConfigFile = "escala.yaml"

// ConfigKeyInfo contains metadata about a known configuration key.
type ConfigKeyInfo = config.KeyInfo

// Config is a global koanf instance used to access configuration.
//
// Config is loaded in the following order (later sources override earlier):
// 1. Registered defaults, applied lazily when the App is built
// 2. Auto-discovered escala.yaml (in init())
// 3. Environment variables with ESCALA__ prefix (in init())
// 4. Additional sources loaded via LoadConfigFile() or LoadConfigDefaults()
//
// Environment variable transformation:
//   - ESCALA__API__BASE_URL → api.baseURL
//   - ESCALA__STORAGE__DRIVER → storage.driver
var Config = koanf.New(".")

// Storage drivers understood by storage.driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

func init() {
	registerCoreConfigKeys()

	if cfg := config.SearchForConfig(ConfigFile, "."); cfg != "" {
		if err := Config.Load(file.Provider(cfg), yaml.Parser()); err != nil {
			panic("error loading config: " + err.Error())
		}
	}

	if err := Config.Load(env.Provider(config.EnvPrefix, ".", config.TransformEnv), nil); err != nil {
		panic("error loading env config: " + err.Error())
	}
}

// RegisterConfigKey documents a configuration key so that it gets a default
// and is not reported as unknown.
func RegisterConfigKey(info ConfigKeyInfo) {
	config.RegisterKeys(info)
}

// LoadConfigFile loads additional configuration from a YAML file into the
// global Config instance.
func LoadConfigFile(path string) error {
	if err := Config.Load(file.Provider(path), yaml.Parser()); err != nil {
		return err
	}
	return nil
}

// LoadConfigDefaults loads values into the global Config instance, e.g. from
// command line flags.
func LoadConfigDefaults(values map[string]interface{}) {
	if err := Config.Load(confmap.Provider(values, "."), nil); err != nil {
		panic("error loading config defaults: " + err.Error())
	}
}

// ValidateConfig returns a human readable description of unknown or
// deprecated keys, or "" when the configuration is clean.
func ValidateConfig() string {
	return config.FormatValidationWarnings(config.ValidateKeys(Config))
}

func ConfigString(key string) string {
	return Config.String(key)
}

func ConfigInt(key string) int {
	return Config.Int(key)
}

func ConfigFloat64(key string) float64 {
	return Config.Float64(key)
}

func ConfigBool(key string) bool {
	return Config.Bool(key)
}

// ConfigDuration parses strings like "5m" or "30s".
func ConfigDuration(key string) time.Duration {
	return Config.Duration(key)
}

func registerCoreConfigKeys() {
	config.RegisterKeys(
		ConfigKeyInfo{
			Key:         "api.baseURL",
			Description: "Base URL of the scheduling API",
			Type:        "string",
			Default:     "http://localhost:8081/api",
		},
		ConfigKeyInfo{
			Key:         "api.timeout",
			Description: "Per request timeout",
			Type:        "duration",
			Default:     "15s",
		},
		ConfigKeyInfo{
			Key:         "api.rateLimit",
			Description: "Maximum requests per second, 0 disables limiting",
			Type:        "float",
			Default:     0,
		},
		ConfigKeyInfo{
			Key:         "api.rateBurst",
			Description: "Burst allowed above api.rateLimit",
			Type:        "int",
			Default:     5,
		},
		ConfigKeyInfo{
			Key:         "storage.driver",
			Description: "Token storage backend: memory, sqlite, postgres or badger",
			Type:        "string",
			Default:     DriverSQLite,
		},
		ConfigKeyInfo{
			Key:         "storage.dsn",
			Description: "Data source name for the sqlite and postgres drivers",
			Type:        "string",
			Default:     "escala.db",
		},
		ConfigKeyInfo{
			Key:         "storage.dir",
			Description: "Directory for the badger driver",
			Type:        "string",
			Default:     ".escala",
		},
		ConfigKeyInfo{
			Key:         "storage.tablePrefix",
			Description: "Table prefix for the sql drivers",
			Type:        "string",
			Default:     "escala_",
		},
		ConfigKeyInfo{
			Key:         "logging.mode",
			Description: "Logger mode: dev, prod or nop",
			Type:        "string",
			Default:     "nop",
		},
		ConfigKeyInfo{
			Key:         "session.storageKey",
			Description: "Storage key holding the persisted token",
			Type:        "string",
			Default:     "userToken",
		},
		ConfigKeyInfo{
			Key:         "eventbus.workers",
			Description: "Concurrent event handlers, 0 for unbounded",
			Type:        "int",
			Default:     4,
		},
	)
	config.RegisterDeprecatedKey("api.url", "api.baseURL")
}
