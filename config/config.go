/*
Package config loads the tracker configuration.

SOURCES (later wins):
  1. defaults below
  2. config.yaml (optional; --config path or ./config.yaml)
  3. environment, prefix TOWEL_ (a .env file is loaded first if present)

KEYS:
  port          HTTP port                     8080
  store         sqlite | mongo | memory       sqlite
  sqlite_path   SQLite file                   towels.db
  mongo_uri     MongoDB connection string     mongodb://localhost:27017
  mongo_db      MongoDB database              towels
  log_level     debug | info | warn | error   info
  cors_origins  comma separated origins       http://localhost:5173,http://localhost:8080
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/warp/towel-workflow/logging"
)

const envPrefix = "TOWEL"

// Config keys.
const (
	KeyPort        = "port"
	KeyStore       = "store"
	KeySQLitePath  = "sqlite_path"
	KeyMongoURI    = "mongo_uri"
	KeyMongoDB     = "mongo_db"
	KeyLogLevel    = "log_level"
	KeyCORSOrigins = "cors_origins"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config represents the full application configuration surface.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	MongoDB MongoDBConfig
	Log     LogConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port        int
	CORSOrigins []string
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Kind       string
	SQLitePath string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

type LogConfig struct {
	Level string
}

// Load reads the optional env file and config file, then the environment,
// and returns a validated Config. Missing files are not errors unless
// configFile names one explicitly.
func Load(envFile, configFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// A missing .env is fine; the environment may carry everything.
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyStore, StoreSQLite)
	v.SetDefault(KeySQLitePath, "towels.db")
	v.SetDefault(KeyMongoURI, "mongodb://localhost:27017")
	v.SetDefault(KeyMongoDB, "towels")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyCORSOrigins, "http://localhost:5173,http://localhost:8080")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetInt(KeyPort),
			CORSOrigins: splitList(v.GetStringSlice(KeyCORSOrigins)),
		},
		Store: StoreConfig{
			Kind:       strings.ToLower(strings.TrimSpace(v.GetString(KeyStore))),
			SQLitePath: v.GetString(KeySQLitePath),
		},
		MongoDB: MongoDBConfig{
			URI:    v.GetString(KeyMongoURI),
			DBName: v.GetString(KeyMongoDB),
		},
		Log: LogConfig{
			Level: v.GetString(KeyLogLevel),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("TOWEL_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Store.Kind {
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("TOWEL_SQLITE_PATH must be provided for the sqlite store")
		}
	case StoreMongo:
		switch {
		case c.MongoDB.URI == "":
			return errors.New("TOWEL_MONGO_URI must be provided for the mongo store")
		case c.MongoDB.DBName == "":
			return errors.New("TOWEL_MONGO_DB must be provided for the mongo store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("TOWEL_STORE must be one of %s, %s, %s; got %q", StoreSQLite, StoreMongo, StoreMemory, c.Store.Kind)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("TOWEL_LOG_LEVEL: %w", err)
	}

	return nil
}

// splitList flattens comma separated items; env values arrive as one string.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
