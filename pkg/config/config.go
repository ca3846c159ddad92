// Package config reads provider credentials from the environment, optionally
// seeded from a key-value file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ProviderEikon  = "eikon"
	ProviderAlpaca = "alpaca"
)

type EikonConfig struct {
	AppKey string
	URL    string
}

type AlpacaConfig struct {
	APIKey    string
	APISecret string
	DataURL   string
	Symbols   []string
}

type Config struct {
	// File is the key-value file Load read. Empty when none was found.
	File string

	Provider string
	Eikon    EikonConfig
	Alpaca   AlpacaConfig
}

// LoadFile copies the KEY=value pairs of path into the process environment.
// Variables already set keep their value. A missing file is reported with an
// error matching os.ErrNotExist.
func LoadFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Section returns the variables named <NAME>_<KEY> as lower-case keys.
// Section("eikon_api")["apikey"] reads EIKON_API_APIKEY.
func Section(name string) map[string]string {
	prefix := strings.ToUpper(name) + "_"
	section := map[string]string{}

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
			continue
		}
		section[strings.ToLower(strings.TrimPrefix(key, prefix))] = value
	}

	return section
}

// FromEnv builds a Config from the current environment.
func FromEnv() *Config {
	eikon := Section("eikon_api")
	alpaca := Section("alpaca")

	provider := strings.ToLower(strings.TrimSpace(os.Getenv("NEWS_PROVIDER")))
	if provider == "" {
		provider = ProviderEikon
	}

	return &Config{
		Provider: provider,
		Eikon: EikonConfig{
			AppKey: eikon["apikey"],
			URL:    eikon["url"],
		},
		Alpaca: AlpacaConfig{
			APIKey:    alpaca["api_key"],
			APISecret: alpaca["secret_key"],
			DataURL:   alpaca["data_url"],
			Symbols:   splitList(alpaca["news_symbols"]),
		},
	}
}

// Load is LoadFile followed by FromEnv. A missing file is not an error;
// the returned Config then has an empty File.
func Load(path string) (*Config, error) {
	loaded := ""
	if path != "" {
		err := LoadFile(path)
		switch {
		case err == nil:
			loaded = path
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	cfg := FromEnv()
	cfg.File = loaded
	return cfg, nil
}

// Validate checks that the selected provider has credentials.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderEikon:
		if c.Eikon.AppKey == "" {
			return fmt.Errorf("EIKON_API_APIKEY must be set for provider %s", c.Provider)
		}
	case ProviderAlpaca:
		if c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "" {
			return fmt.Errorf("ALPACA_API_KEY and ALPACA_SECRET_KEY must be set for provider %s", c.Provider)
		}
	default:
		return fmt.Errorf("unknown news provider %q (want %s or %s)", c.Provider, ProviderEikon, ProviderAlpaca)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.ToUpper(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
