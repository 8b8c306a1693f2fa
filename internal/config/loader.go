package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rpattn/fieldmap/internal/db"
	"github.com/rpattn/fieldmap/internal/domain"
)

// EnvPrefix prefixes environment overrides, e.g. FIELDMAP_DATABASE_HOST.
const EnvPrefix = "FIELDMAP"

// Config is the runtime configuration of the fieldmap binary.
type Config struct {
	Database db.Config      `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type ExecutorConfig struct {
	Concurrency    int  `mapstructure:"concurrency"`
	ValidateOutput bool `mapstructure:"validate_output"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// New returns a viper instance with defaults and environment overrides
// registered. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	defaults := db.DefaultConfig()
	v.SetDefault("database.host", defaults.Host)
	v.SetDefault("database.port", defaults.Port)
	v.SetDefault("database.user", defaults.User)
	v.SetDefault("database.password", defaults.Password)
	v.SetDefault("database.dbname", defaults.DBName)
	v.SetDefault("database.sslmode", defaults.SSLMode)
	v.SetDefault("database.max_conns", defaults.MaxConns)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("executor.concurrency", 4)
	v.SetDefault("executor.validate_output", false)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from path into v. An empty path searches the
// working directory for fieldmap.yaml; a missing file leaves defaults and
// environment values in place.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("fieldmap")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Executor.Concurrency < 1 {
		cfg.Executor.Concurrency = 1
	}
	return cfg, nil
}

// LoadDefinition reads a mapping definition from a YAML or JSON file.
func LoadDefinition(path string) (domain.MappingDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.MappingDefinition{}, fmt.Errorf("failed to read mapping definition: %w", err)
	}
	def, err := ParseDefinition(filepath.Ext(path), data)
	if err != nil {
		return domain.MappingDefinition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// ParseDefinition decodes a definition; ext selects JSON for ".json" and
// YAML otherwise.
func ParseDefinition(ext string, data []byte) (domain.MappingDefinition, error) {
	var def domain.MappingDefinition
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &def); err != nil {
			return domain.MappingDefinition{}, fmt.Errorf("failed to decode json definition: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &def); err != nil {
			return domain.MappingDefinition{}, fmt.Errorf("failed to decode yaml definition: %w", err)
		}
	}
	if strings.TrimSpace(def.Name) == "" {
		return domain.MappingDefinition{}, fmt.Errorf("mapping definition has no name")
	}
	if def.Target.Name == "" {
		def.Target.Name = def.Name
	}
	return def, nil
}
