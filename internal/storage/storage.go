package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"notely/internal/model"
)

// Namespaces partition the backend, one record type each.
const (
	NamespaceUsers   = "notes_app_users"
	NamespaceSession = "notes_app_current_user"
	NamespaceNotes   = "notes_app_notes"
	NamespaceTasks   = "notes_app_tasks"
)

var (
	// ErrNoData is returned by a Backend when a namespace has never been written.
	ErrNoData  = errors.New("no data")
	ErrCorrupt = errors.New("corrupt payload")
)

// Backend is a key-value medium holding one serialized payload per namespace.
// A Put must either fully replace the payload or leave the old one in place.
type Backend interface {
	Get(ctx context.Context, namespace string) ([]byte, error)
	Put(ctx context.Context, namespace string, data []byte) error
	Delete(ctx context.Context, namespace string) error
	Close() error
}

// Locator is implemented by backends that live on the local filesystem.
type Locator interface {
	Location() string
}

// Store reads and writes typed record sets. The backend is authoritative;
// callers keep in-memory copies only as caches.
type Store struct {
	backend Backend
}

func New(b Backend) *Store {
	return &Store{backend: b}
}

func (s *Store) Backend() Backend {
	return s.backend
}

func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) LoadUsers(ctx context.Context) ([]model.User, error) {
	return load[model.User](ctx, s.backend, NamespaceUsers)
}

func (s *Store) SaveUsers(ctx context.Context, users []model.User) error {
	return saveAll(ctx, s.backend, NamespaceUsers, users)
}

func (s *Store) LoadNotes(ctx context.Context) ([]model.Note, error) {
	return load[model.Note](ctx, s.backend, NamespaceNotes)
}

func (s *Store) SaveNotes(ctx context.Context, notes []model.Note) error {
	return saveAll(ctx, s.backend, NamespaceNotes, notes)
}

func (s *Store) LoadTasks(ctx context.Context) ([]model.Task, error) {
	return load[model.Task](ctx, s.backend, NamespaceTasks)
}

func (s *Store) SaveTasks(ctx context.Context, tasks []model.Task) error {
	return saveAll(ctx, s.backend, NamespaceTasks, tasks)
}

// LoadSession returns the user of the active session, if any.
func (s *Store) LoadSession(ctx context.Context) (model.User, bool, error) {
	data, err := s.backend.Get(ctx, NamespaceSession)
	if errors.Is(err, ErrNoData) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, err
	}
	var u model.User
	if err := decode(data, &u); err != nil {
		return model.User{}, false, fmt.Errorf("%w: %s: %v", ErrCorrupt, NamespaceSession, err)
	}
	if u.ID == "" {
		return model.User{}, false, nil
	}
	return u, true, nil
}

func (s *Store) SaveSession(ctx context.Context, u model.User) error {
	data, err := encode(u)
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, NamespaceSession, data)
}

func (s *Store) ClearSession(ctx context.Context) error {
	return s.backend.Delete(ctx, NamespaceSession)
}

func load[T any](ctx context.Context, b Backend, namespace string) ([]T, error) {
	data, err := b.Get(ctx, namespace)
	if errors.Is(err, ErrNoData) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	var records []T
	if err := decode(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, namespace, err)
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

func saveAll[T any](ctx context.Context, b Backend, namespace string, records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := encode(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", namespace, err)
	}
	return b.Put(ctx, namespace, data)
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func decode(data []byte, v any) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(data, v)
}
