package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names the environment variable that points at an optional
// YAML config file.
const ConfigFileEnv = "CONFIG_FILE"

// Load reads configuration from the environment, layered over the file named
// by CONFIG_FILE when it is set.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigFileEnv))
}

// LoadFile reads configuration from path (skipped when empty) and the
// environment. Environment variables win over file values; defaults fill the
// rest. File keys are "<section>.<field>", case-insensitive:
//
//	database:
//	  url: postgres://localhost/sheets
//	  maxConns: 10
//	import:
//	  batchSize: 500
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config load: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := loadStruct(v, reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields. Each tagged field is bound
// to its env vars and default under the key prefix.field.
func loadStruct(v *viper.Viper, val reflect.Value, prefix string) error {
	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := val.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		key := strings.ToLower(field.Name)
		if prefix != "" {
			key = prefix + "." + key
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(v, fieldVal, key); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		envs := []string{key, envName}
		if alt := field.Tag.Get("envAlt"); alt != "" {
			envs = append(envs, alt)
		}
		if err := v.BindEnv(envs...); err != nil {
			return fmt.Errorf("bind %s: %w", envName, err)
		}
		if def, ok := field.Tag.Lookup("default"); ok {
			v.SetDefault(key, def)
		}

		value := lookup(v, key)
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// lookup returns the value at key as a string. Lists from a config file are
// joined with commas so they parse like an env var.
func lookup(v *viper.Viper, key string) string {
	switch raw := v.Get(key).(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, len(raw))
		for i, p := range raw {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(raw, ",")
	default:
		return strings.TrimSpace(v.GetString(key))
	}
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.ConnectRetries < 0 {
		errs = append(errs, "DB_CONNECT_RETRIES must be non-negative")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Import validation
	if c.Import.MaxPayloadSize <= 0 {
		errs = append(errs, "IMPORT_MAX_PAYLOAD_SIZE must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Import.BatchSize <= 0 {
		errs = append(errs, "IMPORT_BATCH_SIZE must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}

	// Query validation
	if c.Query.DefaultPageSize <= 0 {
		errs = append(errs, "QUERY_DEFAULT_PAGE_SIZE must be positive")
	}
	if c.Query.MaxPageSize < c.Query.DefaultPageSize {
		errs = append(errs, fmt.Sprintf("QUERY_MAX_PAGE_SIZE (%d) must be >= QUERY_DEFAULT_PAGE_SIZE (%d)",
			c.Query.MaxPageSize, c.Query.DefaultPageSize))
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.ImportLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_IMPORT must be positive when rate limiting is enabled")
	}

	// Retention validation
	if c.Retention.ProcessingErrorDays <= 0 {
		errs = append(errs, "RETENTION_PROCESSING_ERROR_DAYS must be positive")
	}
	if c.Retention.CheckInterval <= 0 {
		errs = append(errs, "RETENTION_CHECK_INTERVAL must be positive")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Import: {MaxPayloadSize: %d, MaxConcurrent: %d, BatchSize: %d}, ",
		c.Import.MaxPayloadSize, c.Import.MaxConcurrent, c.Import.BatchSize)
	fmt.Fprintf(&b, "Query: {DefaultPageSize: %d, MaxPageSize: %d}, ",
		c.Query.DefaultPageSize, c.Query.MaxPageSize)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {APIKeys: %d configured, RequireAPIKey: %v}, ",
		len(c.Security.APIKeys), c.Security.RequireAPIKey)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
