// Package app wires the configured backend to the managers.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"notely/internal/account"
	"notely/internal/auth"
	"notely/internal/config"
	"notely/internal/model"
	"notely/internal/notes"
	"notely/internal/query"
	"notely/internal/storage"
	"notely/internal/tasks"
)

type App struct {
	Config  config.Config
	Store   *storage.Store
	Auth    *auth.Gate
	Notes   *notes.Manager
	Tasks   *tasks.Manager
	Account *account.Service
}

func Open(ctx context.Context, cfg config.Config) (*App, error) {
	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := storage.New(backend)
	log.WithFields(log.Fields{"backend": cfg.Backend}).Debug("store opened")
	return &App{
		Config: cfg,
		Store:  store,
		Auth: auth.New(store,
			auth.WithCost(cfg.BcryptCost),
			auth.WithSecret(cfg.SessionSecret),
			auth.WithTokenTTL(cfg.TokenTTL()),
		),
		Notes:   notes.New(store),
		Tasks:   tasks.New(store),
		Account: account.New(store),
	}, nil
}

func OpenBackend(ctx context.Context, cfg config.Config) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendSQLite, "":
		return storage.OpenSQLite(cfg.DBPath)
	case config.BackendFile:
		return storage.OpenFile(cfg.DataDir)
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return storage.NewRedis(client, cfg.RedisPrefix), nil
	case config.BackendMemory:
		return storage.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func (a *App) Close() error {
	return a.Store.Close()
}

// Load fills both managers for userID.
func (a *App) Load(ctx context.Context, userID string) error {
	if _, err := a.Notes.LoadForUser(ctx, userID); err != nil {
		return err
	}
	_, err := a.Tasks.LoadForUser(ctx, userID)
	return err
}

// Resume loads the signed-in user's data. A token, when given, takes the
// place of the stored session.
func (a *App) Resume(ctx context.Context, token string) (model.User, error) {
	var (
		u   model.User
		err error
	)
	if token != "" {
		id, aerr := a.Auth.Authenticate(ctx, token)
		if aerr != nil {
			return model.User{}, aerr
		}
		u, err = a.userByID(ctx, id)
	} else {
		u, err = a.Auth.CurrentUser(ctx)
	}
	if err != nil {
		return model.User{}, err
	}
	return u, a.Load(ctx, u.ID)
}

// WatchPath is the filesystem location of the store, or "" when the backend
// is not file based.
func (a *App) WatchPath() string {
	if l, ok := a.Store.Backend().(storage.Locator); ok {
		return l.Location()
	}
	return ""
}

// DefaultQuery is the view configured in config.toml.
func (a *App) DefaultQuery() query.Query {
	key, _ := query.ParseSortKey(a.Config.DefaultSort)
	order, _ := query.ParseOrder(a.Config.DefaultOrder)
	return query.Query{SortKey: key, Order: order, Locale: a.Config.Locale}
}

func (a *App) userByID(ctx context.Context, id string) (model.User, error) {
	users, err := a.Store.LoadUsers(ctx)
	if err != nil {
		return model.User{}, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, model.ErrInvalidToken
}
