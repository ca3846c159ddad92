package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSection(t *testing.T) {
	t.Setenv("EIKON_API_APIKEY", "abc")
	t.Setenv("EIKON_API_URL", "http://127.0.0.1:9060")
	t.Setenv("EIKON_APIKEY", "not-in-section")

	section := Section("eikon_api")
	assert.Equal(t, "abc", section["apikey"])
	assert.Equal(t, "http://127.0.0.1:9060", section["url"])
	assert.Len(t, section, 2)
}

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("NEWS_PROVIDER", "")
	t.Setenv("EIKON_API_APIKEY", "key")

	cfg := FromEnv()
	assert.Equal(t, ProviderEikon, cfg.Provider)
	assert.Equal(t, "key", cfg.Eikon.AppKey)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_Alpaca(t *testing.T) {
	t.Setenv("NEWS_PROVIDER", " Alpaca ")
	t.Setenv("ALPACA_API_KEY", "id")
	t.Setenv("ALPACA_SECRET_KEY", "secret")
	t.Setenv("ALPACA_NEWS_SYMBOLS", "weat, corn,,soyb")

	cfg := FromEnv()
	assert.Equal(t, ProviderAlpaca, cfg.Provider)
	assert.Equal(t, []string{"WEAT", "CORN", "SOYB"}, cfg.Alpaca.Symbols)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"eikon without key", Config{Provider: ProviderEikon}},
		{"alpaca without secret", Config{Provider: ProviderAlpaca, Alpaca: AlpacaConfig{APIKey: "id"}}},
		{"unknown provider", Config{Provider: "bloomberg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generic.env")
	require.NoError(t, os.WriteFile(path, []byte("# eikon_api\nEIKON_API_APIKEY=from-file\n"), 0644))

	// registered so the variable godotenv sets is removed afterwards
	t.Setenv("EIKON_API_APIKEY", "")
	require.NoError(t, os.Unsetenv("EIKON_API_APIKEY"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Eikon.AppKey)
	assert.Equal(t, path, cfg.File)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generic.env")
	require.NoError(t, os.WriteFile(path, []byte("EIKON_API_APIKEY=from-file\n"), 0644))
	t.Setenv("EIKON_API_APIKEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Eikon.AppKey)
}

func TestLoad_UnreadableFile(t *testing.T) {
	// a directory exists but cannot be parsed as a key-value file
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("EIKON_API_APIKEY", "x")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "x", cfg.Eikon.AppKey)
	assert.Empty(t, cfg.File)

	assert.ErrorIs(t, LoadFile(filepath.Join(t.TempDir(), "absent.env")), os.ErrNotExist)
}
