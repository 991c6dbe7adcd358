package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// loadEnvFiles loads .env files in priority order. Missing files are ignored.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load builds a ScrapeConfig from the YAML file at path (skipped when path
// is empty), fills unset fields from DefaultScrapeConfig and applies
// environment overrides last.
//
// A zero value in the file means "use the default"; per-request parameters
// are the way to ask for zero retries.
func Load(path string) (*ScrapeConfig, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	var cfg ScrapeConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := mergo.Merge(&cfg, DefaultScrapeConfig()); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides sets fields tagged `env:"NAME"` from the environment,
// descending into nested sections. List fields take comma-separated values.
func applyEnvOverrides(cfg *ScrapeConfig) {
	overrideSection(reflect.ValueOf(cfg).Elem())
}

func overrideSection(section reflect.Value) {
	t := section.Type()
	for i := range t.NumField() {
		sf, field := t.Field(i), section.Field(i)
		if !sf.IsExported() {
			continue
		}
		if name, ok := sf.Tag.Lookup("env"); ok {
			if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
				assignEnv(field, raw)
			}
			continue
		}
		if field.Kind() == reflect.Struct {
			overrideSection(field)
		}
	}
}

var durationType = reflect.TypeFor[time.Duration]()

// assignEnv leaves the field untouched when raw does not parse for its type.
func assignEnv(field reflect.Value, raw string) {
	switch {
	case field.Type() == durationType:
		if d, err := time.ParseDuration(raw); err == nil {
			field.SetInt(int64(d))
		}
	case field.Kind() == reflect.String:
		field.SetString(raw)
	case field.Kind() == reflect.Int:
		if n, err := strconv.Atoi(raw); err == nil {
			field.SetInt(int64(n))
		}
	case field.Kind() == reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			field.SetBool(b)
		}
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		var values []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, part)
			}
		}
		if len(values) > 0 {
			field.Set(reflect.ValueOf(values))
		}
	}
}
