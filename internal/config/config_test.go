package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", DefaultConfigFileName)

	cfg, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, filepath.Join(dir, "nested", DefaultDBName), cfg.DBPath)
	assert.Len(t, cfg.SessionSecret, 64)
	assert.Equal(t, "/", cfg.Keys.Search)
	require.NoError(t, cfg.Validate())

	again, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.SessionSecret, again.SessionSecret)
	assert.Equal(t, cfg.DBPath, again.DBPath)
}

func TestFirstLaunchIsQuietAtInfo(t *testing.T) {
	var buf bytes.Buffer
	out, level := log.StandardLogger().Out, log.GetLevel()
	log.SetOutput(&buf)
	log.SetLevel(log.InfoLevel)
	t.Cleanup(func() {
		log.SetOutput(out)
		log.SetLevel(level)
	})

	_, err := LoadOrCreate(filepath.Join(t.TempDir(), DefaultConfigFileName))
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestLoadFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("backend = \"file\"\ndata_dir = \"/srv/notely\"\n\n[keys]\nquit = \"x\"\n"), 0o600))

	cfg, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.Backend)
	assert.Equal(t, "/srv/notely", cfg.DataDir)
	assert.Equal(t, "x", cfg.Keys.Quit)
	assert.Equal(t, "a", cfg.Keys.Add)
	assert.Equal(t, "updatedAt", cfg.DefaultSort)
	assert.NotEmpty(t, cfg.SessionSecret)
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	base := defaultConfig()

	cases := map[string]func(*Config){
		"backend": func(c *Config) { c.Backend = "mongo" },
		"sort":    func(c *Config) { c.DefaultSort = "priority" },
		"order":   func(c *Config) { c.DefaultOrder = "random" },
		"level":   func(c *Config) { c.LogLevel = "chatty" },
		"ttl":     func(c *Config) { c.SessionTTL = "forever" },
		"cost":    func(c *Config) { c.BcryptCost = 99 },
		"locale":  func(c *Config) { c.Locale = "not a locale!" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
	require.NoError(t, base.Validate())
}

func TestInvalidFileIsReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("backend = \"mongo\"\nsession_secret = \"s\"\n"), 0o600))
	_, err := LoadOrCreate(path)
	require.Error(t, err)
}

func TestResolveConfigPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/custom.toml")
	assert.Equal(t, "/tmp/custom.toml", ResolveConfigPath())
}

func TestTokenTTL(t *testing.T) {
	c := defaultConfig()
	assert.Equal(t, "24h0m0s", c.TokenTTL().String())
	c.SessionTTL = ""
	assert.Zero(t, c.TokenTTL())
}
