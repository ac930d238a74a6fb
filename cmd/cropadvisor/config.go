package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/cropadvisor/internal/logger"
)

const (
	defaultListenAddr        = "localhost:8000"
	defaultLoggingLevel      = logger.LevelInfo
	defaultEnvironment       = logger.EnvProduction
	defaultMongoURI          = "mongodb://localhost:27017"
	defaultMongoDatabase     = "crop_userdb"
	defaultModelPath         = "model.json"
	defaultAccessCookieName  = "auth_token"
	defaultRefreshCookieName = "refresh_token"
	defaultAccessTTLSeconds  = 3600
	defaultRefreshTTLDays    = 7
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Mongo connection URI and database name
	MongoURI      string
	MongoDatabase string

	// Secret key
	// Access tokens are signed with symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Path to the exported classifier parameters
	ModelPath string

	// Cookie names for both tokens
	AccessCookieName  string
	RefreshCookieName string

	// Token lifetimes
	// Access cookie max age and token payload expiry are driven by the same value
	AccessTTLSeconds int
	RefreshTTLDays   int

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:          defaultLoggingLevel,
		ListenAddr:        defaultListenAddr,
		MongoURI:          defaultMongoURI,
		MongoDatabase:     defaultMongoDatabase,
		ModelPath:         defaultModelPath,
		AccessCookieName:  defaultAccessCookieName,
		RefreshCookieName: defaultRefreshCookieName,
		AccessTTLSeconds:  defaultAccessTTLSeconds,
		RefreshTTLDays:    defaultRefreshTTLDays,
		Environment:       defaultEnvironment,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			parsed, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("expected integer, got %q", value)
			}
			*o = parsed
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":         setString(&c.ListenAddr),
		"MONGO_URI":           setString(&c.MongoURI),
		"MONGO_DATABASE":      setString(&c.MongoDatabase),
		"SECRET_KEY":          setString(&c.SecretKey),
		"MODEL_PATH":          setString(&c.ModelPath),
		"COOKIE_NAME":         setString(&c.AccessCookieName),
		"REFRESH_TOKEN_NAME":  setString(&c.RefreshCookieName),
		"JWT_EXPIRY_SECONDS":  setInt(&c.AccessTTLSeconds),
		"REFRESH_EXPIRY_DAYS": setInt(&c.RefreshTTLDays),
		"LOG_LEVEL":           setString(&c.LogLevel),
		"ENVIRONMENT":         setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("cropadvisor", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.MongoURI, "mongo-uri", "d", c.MongoURI, "Mongo connection URI")
	fs.StringVar(&c.MongoDatabase, "mongo-database", c.MongoDatabase, "Mongo database name")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.ModelPath, "model", "m", c.ModelPath, "Path to classifier model file")
	fs.StringVar(&c.AccessCookieName, "access-cookie", c.AccessCookieName, "Access token cookie name")
	fs.StringVar(&c.RefreshCookieName, "refresh-cookie", c.RefreshCookieName, "Refresh token cookie name")
	fs.IntVar(&c.AccessTTLSeconds, "access-ttl", c.AccessTTLSeconds, "Access token TTL in seconds")
	fs.IntVar(&c.RefreshTTLDays, "refresh-ttl", c.RefreshTTLDays, "Refresh token TTL in days")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (development, production)")

	return fs.Parse(args)
}
