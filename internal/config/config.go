package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"

	"notely/internal/query"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "notely.db"
	DefaultDataDir        = "data"
	EnvConfigPath         = "NOTELY_CONFIG"
	appDir                = "notely"
)

const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Keymap struct {
	Quit    string `toml:"quit"`
	Add     string `toml:"add"`
	Edit    string `toml:"edit"`
	Up      string `toml:"up"`
	Down    string `toml:"down"`
	Toggle  string `toml:"toggle"`
	Delete  string `toml:"delete"`
	Confirm string `toml:"confirm"`
	Cancel  string `toml:"cancel"`
	Search  string `toml:"search"`
	Tags    string `toml:"tags"`
	Sort    string `toml:"sort"`
	Order   string `toml:"order"`
	Clear   string `toml:"clear"`
	Filter  string `toml:"filter"`
	Switch  string `toml:"switch"`
	Reload  string `toml:"reload"`
}

type Config struct {
	Backend       string `toml:"backend"`
	DBPath        string `toml:"db_path"`
	DataDir       string `toml:"data_dir"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPrefix   string `toml:"redis_prefix"`
	Locale        string `toml:"locale"`
	LogFile       string `toml:"log_file"`
	LogLevel      string `toml:"log_level"`
	SessionSecret string `toml:"session_secret"`
	SessionTTL    string `toml:"session_ttl"`
	BcryptCost    int    `toml:"bcrypt_cost"`
	DefaultSort   string `toml:"default_sort"`
	DefaultOrder  string `toml:"default_order"`
	Keys          Keymap `toml:"keys"`
}

// ResolveConfigPath returns $NOTELY_CONFIG when set, else config.toml under
// the user config directory.
func ResolveConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultConfigFileName
	}
	return filepath.Join(dir, appDir, DefaultConfigFileName)
}

// LoadOrCreate reads the config at path, writing defaults on first launch.
// Relative paths inside the file are resolved against its directory.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		secret, err := newSecret()
		if err != nil {
			return cfg, err
		}
		cfg.SessionSecret = secret
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		log.WithField("path", path).Debug("config created")
		return cfg.resolve(path), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.SessionSecret == "" {
		if cfg.SessionSecret, err = newSecret(); err != nil {
			return cfg, err
		}
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg.resolve(path), nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendFile, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := query.ParseSortKey(c.DefaultSort); err != nil {
		return err
	}
	if _, err := query.ParseOrder(c.DefaultOrder); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Locale != "" {
		if _, err := language.Parse(c.Locale); err != nil {
			return fmt.Errorf("locale %q: %w", c.Locale, err)
		}
	}
	if c.SessionTTL != "" {
		if _, err := time.ParseDuration(c.SessionTTL); err != nil {
			return fmt.Errorf("session_ttl: %w", err)
		}
	}
	if c.BcryptCost != 0 && (c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost) {
		return fmt.Errorf("bcrypt_cost %d out of range", c.BcryptCost)
	}
	return nil
}

// TokenTTL is zero when unset or invalid; callers fall back to their default.
func (c Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 0
	}
	return d
}

func (c *Config) fillDefaults() {
	def := defaultConfig()
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.DefaultSort == "" {
		c.DefaultSort = def.DefaultSort
	}
	if c.DefaultOrder == "" {
		c.DefaultOrder = def.DefaultOrder
	}
	fillKeys(&c.Keys, def.Keys)
}

func (c Config) resolve(path string) Config {
	base := filepath.Dir(path)
	for _, p := range []*string{&c.DBPath, &c.DataDir, &c.LogFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	return c
}

func fillKeys(k *Keymap, def Keymap) {
	pairs := []struct {
		v *string
		d string
	}{
		{&k.Quit, def.Quit}, {&k.Add, def.Add}, {&k.Edit, def.Edit}, {&k.Up, def.Up},
		{&k.Down, def.Down}, {&k.Toggle, def.Toggle}, {&k.Delete, def.Delete},
		{&k.Confirm, def.Confirm}, {&k.Cancel, def.Cancel}, {&k.Search, def.Search},
		{&k.Tags, def.Tags}, {&k.Sort, def.Sort}, {&k.Order, def.Order},
		{&k.Clear, def.Clear}, {&k.Filter, def.Filter}, {&k.Switch, def.Switch},
		{&k.Reload, def.Reload},
	}
	for _, p := range pairs {
		if *p.v == "" {
			*p.v = p.d
		}
	}
}

func write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}

func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func defaultConfig() Config {
	return Config{
		Backend:      BackendSQLite,
		DBPath:       DefaultDBName,
		DataDir:      DefaultDataDir,
		RedisAddr:    "localhost:6379",
		RedisPrefix:  "notely",
		Locale:       "en",
		LogLevel:     "info",
		SessionTTL:   "24h",
		BcryptCost:   bcrypt.DefaultCost,
		DefaultSort:  string(query.SortUpdatedAt),
		DefaultOrder: string(query.Desc),
		Keys: Keymap{
			Quit:    "q",
			Add:     "a",
			Edit:    "e",
			Up:      "k",
			Down:    "j",
			Toggle:  " ",
			Delete:  "d",
			Confirm: "enter",
			Cancel:  "esc",
			Search:  "/",
			Tags:    "t",
			Sort:    "s",
			Order:   "o",
			Clear:   "c",
			Filter:  "f",
			Switch:  "tab",
			Reload:  "r",
		},
	}
}
