package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ridoystarlord/mongoprov/credential"
	"github.com/ridoystarlord/mongoprov/schema"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys shared by flags, environment variables (MONGOPROV_ prefix, dashes
// become underscores) and the config file.
const (
	KeyConfigFile        = "config"
	KeyEnvFile           = "env-file"
	KeyMongoURI          = "mongo-uri"
	KeyDatabase          = "database"
	KeySchema            = "schema"
	KeyAdminName         = "admin-name"
	KeyAdminPasswordHash = "admin-password-hash"
	KeyAdminPolicy       = "admin-policy"
	KeyStopOnIndexError  = "stop-on-index-error"
	KeyConnectTimeout    = "connect-timeout"
	KeyTimeout           = "timeout"
	KeyLogLevel          = "log-level"
	KeyLogFormat         = "log-format"

	EnvPrefix = "MONGOPROV"
)

const (
	DefaultMongoURI       = "mongodb://localhost:27017"
	DefaultConnectTimeout = 10 * time.Second
)

type Config struct {
	MongoURI          string
	Database          string
	SchemaFile        string
	AdminName         string
	AdminPasswordHash string
	AdminPolicy       string
	StopOnIndexError  bool
	ConnectTimeout    time.Duration
	Timeout           time.Duration
	LogLevel          string
	LogFormat         string
}

// RegisterFlags declares the persistent flags every command understands.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyConfigFile, "", "config file (yaml, json or toml)")
	fs.String(KeyEnvFile, ".env", "dotenv file loaded before reading the environment")
	fs.String(KeyMongoURI, DefaultMongoURI, "MongoDB connection string (env MONGOPROV_MONGO_URI or MONGODB_URI)")
	fs.StringP(KeyDatabase, "d", "", "target database (overrides the schema definition)")
	fs.StringP(KeySchema, "s", "", "schema definition file (built-in definition when empty)")
	fs.String(KeyAdminName, "", "seed admin name (overrides the schema definition)")
	fs.String(KeyAdminPasswordHash, "", "bcrypt hash of the seed admin password (env MONGOPROV_ADMIN_PASSWORD_HASH)")
	fs.String(KeyAdminPolicy, "", "admin bootstrap policy: insert-if-absent or reset-to-single")
	fs.Bool(KeyStopOnIndexError, true, "abort the run at the first index that cannot be created")
	fs.Duration(KeyConnectTimeout, DefaultConnectTimeout, "timeout for connecting to MongoDB")
	fs.Duration(KeyTimeout, 0, "overall run timeout (0 = none)")
	fs.String(KeyLogLevel, "info", "log level (debug, info, warn, error)")
	fs.String(KeyLogFormat, "console", "log format (console, json)")
}

// New returns a viper instance bound to fs and the environment.
func New(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	// Legacy names still set by existing deployments.
	if err := v.BindEnv(KeyMongoURI, EnvPrefix+"_MONGO_URI", "MONGODB_URI"); err != nil {
		return nil, err
	}
	if err := v.BindEnv(KeyAdminPasswordHash, EnvPrefix+"_ADMIN_PASSWORD_HASH", "ADMIN_PASSWORD_HASH"); err != nil {
		return nil, err
	}
	return v, nil
}

// Load reads the optional config file and returns the effective settings.
func Load(v *viper.Viper) (Config, error) {
	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	cfg := Config{
		MongoURI:          strings.TrimSpace(v.GetString(KeyMongoURI)),
		Database:          strings.TrimSpace(v.GetString(KeyDatabase)),
		SchemaFile:        strings.TrimSpace(v.GetString(KeySchema)),
		AdminName:         strings.TrimSpace(v.GetString(KeyAdminName)),
		AdminPasswordHash: strings.TrimSpace(v.GetString(KeyAdminPasswordHash)),
		AdminPolicy:       strings.TrimSpace(v.GetString(KeyAdminPolicy)),
		StopOnIndexError:  v.GetBool(KeyStopOnIndexError),
		ConnectTimeout:    v.GetDuration(KeyConnectTimeout),
		Timeout:           v.GetDuration(KeyTimeout),
		LogLevel:          v.GetString(KeyLogLevel),
		LogFormat:         v.GetString(KeyLogFormat),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that do not depend on the command being run.
func (c Config) Validate() error {
	if c.AdminPolicy != "" {
		if _, err := schema.ParseAdminPolicy(c.AdminPolicy); err != nil {
			return err
		}
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyConnectTimeout, c.ConnectTimeout)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%s cannot be negative, got %s", KeyTimeout, c.Timeout)
	}
	return nil
}

// RequireMongoURI is checked by every command that talks to the database.
func (c Config) RequireMongoURI() error {
	if c.MongoURI == "" {
		return errors.New("MongoDB URI not set (use --mongo-uri, MONGOPROV_MONGO_URI or MONGODB_URI)")
	}
	return nil
}

// RequireAdminHash is checked before provisioning. A value that is not a
// bcrypt hash is refused so a plaintext password never reaches the database.
func (c Config) RequireAdminHash() error {
	if c.AdminPasswordHash == "" {
		return errors.New("admin password hash not set (use --admin-password-hash or MONGOPROV_ADMIN_PASSWORD_HASH; see `mongoprov hash-password`)")
	}
	if err := credential.CheckHash(c.AdminPasswordHash); err != nil {
		return fmt.Errorf("admin password hash rejected: %w", err)
	}
	return nil
}

// Apply overlays the configured overrides onto a loaded definition.
func (c Config) Apply(def *schema.Definition) error {
	if c.Database != "" {
		def.Database = c.Database
	}
	if c.AdminName != "" {
		def.Admin.Name = c.AdminName
	}
	if c.AdminPolicy != "" {
		policy, err := schema.ParseAdminPolicy(c.AdminPolicy)
		if err != nil {
			return err
		}
		def.Admin.Policy = policy
	}
	return nil
}
