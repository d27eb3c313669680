package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/realmkeep/realmkeep/pkg/keycloak"
	"github.com/realmkeep/realmkeep/pkg/storage"
	"github.com/realmkeep/realmkeep/pkg/types"
)

const (
	// EnvConfigPath overrides the configuration directory.
	EnvConfigPath = "BACKUP_RESTORE_CONFIG_PATH"
	// EnvServerPort overrides the API listen port.
	EnvServerPort = "BACKUP_RESTORE_SERVER_PORT"

	defaultConfigDir  = "./config"
	defaultServerPort = 8080

	bundleFile = "services.yaml"
)

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port" json:"port"`
}

// Config is the full realmkeep configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server" json:"server"`
	Storage  storage.Config  `yaml:"storage" json:"storage"`
	Keycloak keycloak.Config `yaml:"keycloak" json:"keycloak"`
}

// Load reads configuration from dir. An empty dir falls back to the
// BACKUP_RESTORE_CONFIG_PATH environment variable, then ./config.
//
// services.yaml, when present, is the single source for every section.
// Otherwise each section is read from its own JSON file (keycloak.json,
// storage.json). Environment variables are applied last and win.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = os.Getenv(EnvConfigPath)
	}
	if dir == "" {
		dir = defaultConfigDir
	}

	cfg := &Config{
		Server: ServerConfig{Port: defaultServerPort},
	}

	bundle := filepath.Join(dir, bundleFile)
	if data, err := os.ReadFile(bundle); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", types.ErrConfig, bundle, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: failed to read %s: %v", types.ErrConfig, bundle, err)
	} else {
		if err := loadSection(filepath.Join(dir, "keycloak.json"), &cfg.Keycloak); err != nil {
			return nil, err
		}
		if err := loadSection(filepath.Join(dir, "storage.json"), &cfg.Storage); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// loadSection reads one per-service JSON file; absence is not an error.
func loadSection(path string, out any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %v", types.ErrConfig, path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", types.ErrConfig, path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KEYCLOAK_AUTH_URL"); v != "" {
		cfg.Keycloak.Auth.AuthURL = v
	}
	if v := os.Getenv("KEYCLOAK_REALM"); v != "" {
		cfg.Keycloak.Auth.Realm = v
	}
	if v := os.Getenv("KEYCLOAK_CLIENT_ID"); v != "" {
		cfg.Keycloak.Auth.ClientID = v
	}
	if v := os.Getenv("KEYCLOAK_CLIENT_SECRET"); v != "" {
		cfg.Keycloak.Auth.ClientSecret = v
	}
	if v := os.Getenv("KEYCLOAK_VERIFY_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Keycloak.Auth.VerifySSL = &b
		}
	}
}
