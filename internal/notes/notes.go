// Package notes owns the active user's notes and keeps them in sync with the
// record store. Every mutation is written through before the cache changes.
package notes

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"notely/internal/model"
	"notely/internal/storage"
)

type Option func(*Manager)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithIDs(next func() string) Option {
	return func(m *Manager) { m.newID = next }
}

type Manager struct {
	store *storage.Store
	now   func() time.Time
	newID func() string

	mu     sync.RWMutex
	userID string
	notes  []model.Note
}

func New(store *storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadForUser replaces the cache with the user's notes from the store.
func (m *Manager) LoadForUser(ctx context.Context, userID string) ([]model.Note, error) {
	all, err := m.store.LoadNotes(ctx)
	if err != nil {
		return nil, err
	}
	own := make([]model.Note, 0, len(all))
	for _, n := range all {
		if n.UserID == userID {
			own = append(own, n)
		}
	}

	m.mu.Lock()
	m.userID = userID
	m.notes = own
	m.mu.Unlock()

	log.WithFields(log.Fields{"user": userID, "count": len(own)}).Debug("notes loaded")
	return slices.Clone(own), nil
}

func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID
}

func (m *Manager) Notes() []model.Note {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.notes)
}

func (m *Manager) Get(id string) (model.Note, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.index(id); i >= 0 {
		return m.notes[i], true
	}
	return model.Note{}, false
}

func (m *Manager) Add(ctx context.Context, userID string, form model.NoteForm) (model.Note, error) {
	if userID == "" {
		return model.Note{}, model.ErrUnauthenticated
	}
	now := m.now().UTC()
	n := model.Note{
		ID:        m.newID(),
		UserID:    userID,
		Title:     strings.TrimSpace(form.Title),
		Content:   form.Content,
		Tags:      model.NormalizeTags(form.Tags),
		Color:     strings.ToLower(strings.TrimSpace(form.Color)),
		IsPinned:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := model.ValidateNote(n); err != nil {
		return model.Note{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.persist(ctx, func(all []model.Note) ([]model.Note, bool) {
		return append(all, n), true
	}); err != nil {
		return model.Note{}, err
	}
	if userID == m.userID {
		m.notes = append([]model.Note{n}, m.notes...)
	}
	log.WithFields(log.Fields{"note": n.ID, "user": userID}).Debug("note added")
	return n, nil
}

// Update merges patch into the note. The note must belong to the loaded user.
func (m *Manager) Update(ctx context.Context, id string, patch model.NotePatch) (model.Note, error) {
	return m.mutate(ctx, id, func(n model.Note) (model.Note, error) {
		n = patch.Apply(n)
		return n, model.ValidateNote(n)
	})
}

func (m *Manager) TogglePin(ctx context.Context, id string) (model.Note, error) {
	return m.mutate(ctx, id, func(n model.Note) (model.Note, error) {
		n.IsPinned = !n.IsPinned
		return n, nil
	})
}

// Delete removes the note if the loaded user owns it. Unknown ids are not an error.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner := m.userID
	if err := m.persist(ctx, func(all []model.Note) ([]model.Note, bool) {
		before := len(all)
		all = slices.DeleteFunc(all, func(n model.Note) bool { return n.ID == id && n.UserID == owner })
		return all, len(all) != before
	}); err != nil {
		return err
	}
	m.notes = slices.DeleteFunc(m.notes, func(n model.Note) bool { return n.ID == id })
	return nil
}

// Clear deletes every note of the loaded user.
func (m *Manager) Clear(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner := m.userID
	removed := 0
	if err := m.persist(ctx, func(all []model.Note) ([]model.Note, bool) {
		before := len(all)
		all = slices.DeleteFunc(all, func(n model.Note) bool { return n.UserID == owner })
		removed = before - len(all)
		return all, removed > 0
	}); err != nil {
		return 0, err
	}
	m.notes = nil
	log.WithFields(log.Fields{"user": owner, "removed": removed}).Info("notes cleared")
	return removed, nil
}

func (m *Manager) mutate(ctx context.Context, id string, change func(model.Note) (model.Note, error)) (model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return model.Note{}, fmt.Errorf("%w: note %s", model.ErrNotFound, id)
	}
	prev := m.notes[i]
	next, err := change(prev)
	if err != nil {
		return model.Note{}, err
	}
	next.ID, next.UserID, next.CreatedAt = prev.ID, prev.UserID, prev.CreatedAt
	next.UpdatedAt = m.bump(prev.UpdatedAt)

	gone := false
	if err := m.persist(ctx, func(all []model.Note) ([]model.Note, bool) {
		for j := range all {
			if all[j].ID == id && all[j].UserID == prev.UserID {
				all[j] = next
				return all, true
			}
		}
		gone = true
		return all, false
	}); err != nil {
		return model.Note{}, err
	}
	if gone {
		// deleted elsewhere since the cache was loaded
		m.notes = slices.Delete(m.notes, i, i+1)
		return model.Note{}, fmt.Errorf("%w: note %s", model.ErrNotFound, id)
	}
	m.notes[i] = next
	log.WithFields(log.Fields{"note": id, "user": prev.UserID}).Debug("note updated")
	return next, nil
}

// persist reloads the authoritative set, applies change and writes it back.
// Nothing is written when change reports no difference.
func (m *Manager) persist(ctx context.Context, change func([]model.Note) ([]model.Note, bool)) error {
	all, err := m.store.LoadNotes(ctx)
	if err != nil {
		return err
	}
	all, changed := change(all)
	if !changed {
		return nil
	}
	if err := m.store.SaveNotes(ctx, all); err != nil {
		log.WithError(err).Warn("saving notes failed")
		return err
	}
	return nil
}

// bump returns a timestamp strictly after prev, normally now.
func (m *Manager) bump(prev time.Time) time.Time {
	now := m.now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}

func (m *Manager) index(id string) int {
	return slices.IndexFunc(m.notes, func(n model.Note) bool { return n.ID == id })
}
