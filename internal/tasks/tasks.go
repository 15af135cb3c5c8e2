package tasks

import (
	"context"
	"fmt"
	"math"
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

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithIDs(next func() string) Option {
	return func(m *Manager) { m.newID = next }
}

// Manager owns the active user's tasks.
type Manager struct {
	store *storage.Store
	now   func() time.Time
	newID func() string

	mu     sync.RWMutex
	userID string
	tasks  []model.Task
}

type Stats struct {
	Total          int
	Completed      int
	Pending        int
	CompletionRate int
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

func (m *Manager) LoadForUser(ctx context.Context, userID string) ([]model.Task, error) {
	all, err := m.store.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}
	own := make([]model.Task, 0, len(all))
	for _, t := range all {
		if t.UserID == userID {
			own = append(own, t)
		}
	}

	m.mu.Lock()
	m.userID = userID
	m.tasks = own
	m.mu.Unlock()

	log.WithFields(log.Fields{"user": userID, "count": len(own)}).Debug("tasks loaded")
	return slices.Clone(own), nil
}

func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID
}

func (m *Manager) Tasks() []model.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.tasks)
}

func (m *Manager) Get(id string) (model.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.index(id); i >= 0 {
		return m.tasks[i], true
	}
	return model.Task{}, false
}

func (m *Manager) Add(ctx context.Context, userID string, form model.TaskForm) (model.Task, error) {
	if userID == "" {
		return model.Task{}, model.ErrUnauthenticated
	}
	priority := form.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	now := m.now().UTC()
	t := model.Task{
		ID:           m.newID(),
		UserID:       userID,
		Title:        strings.TrimSpace(form.Title),
		Description:  strings.TrimSpace(form.Description),
		Priority:     priority,
		Tags:         model.NormalizeTags(form.Tags),
		LinkedNoteID: strings.TrimSpace(form.LinkedNoteID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if form.DueDate != nil {
		due := form.DueDate.UTC()
		t.DueDate = &due
	}
	if err := model.ValidateTask(t); err != nil {
		return model.Task{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.persist(ctx, func(all []model.Task) ([]model.Task, bool) {
		return append(all, t), true
	}); err != nil {
		return model.Task{}, err
	}
	if userID == m.userID {
		m.tasks = append([]model.Task{t}, m.tasks...)
	}
	log.WithFields(log.Fields{"task": t.ID, "user": userID}).Debug("task added")
	return t, nil
}

func (m *Manager) Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	return m.mutate(ctx, id, func(t model.Task) (model.Task, error) {
		t = patch.Apply(t)
		return t, model.ValidateTask(t)
	})
}

func (m *Manager) ToggleCompletion(ctx context.Context, id string) (model.Task, error) {
	return m.mutate(ctx, id, func(t model.Task) (model.Task, error) {
		t.Completed = !t.Completed
		return t, nil
	})
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner := m.userID
	if err := m.persist(ctx, func(all []model.Task) ([]model.Task, bool) {
		before := len(all)
		all = slices.DeleteFunc(all, func(t model.Task) bool { return t.ID == id && t.UserID == owner })
		return all, len(all) != before
	}); err != nil {
		return err
	}
	m.tasks = slices.DeleteFunc(m.tasks, func(t model.Task) bool { return t.ID == id })
	return nil
}

func (m *Manager) Clear(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner := m.userID
	removed := 0
	if err := m.persist(ctx, func(all []model.Task) ([]model.Task, bool) {
		before := len(all)
		all = slices.DeleteFunc(all, func(t model.Task) bool { return t.UserID == owner })
		removed = before - len(all)
		return all, removed > 0
	}); err != nil {
		return 0, err
	}
	m.tasks = nil
	log.WithFields(log.Fields{"user": owner, "removed": removed}).Info("tasks cleared")
	return removed, nil
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return StatsOf(m.tasks)
}

func StatsOf(tasks []model.Task) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		}
	}
	s.Pending = s.Total - s.Completed
	if s.Total > 0 {
		s.CompletionRate = int(math.Round(float64(s.Completed) / float64(s.Total) * 100))
	}
	return s
}

// ResolveLinkedNote finds the note a task points at. Dangling links resolve
// to no note.
func ResolveLinkedNote(t model.Task, notes []model.Note) (model.Note, bool) {
	if t.LinkedNoteID == "" {
		return model.Note{}, false
	}
	for _, n := range notes {
		if n.ID == t.LinkedNoteID && n.UserID == t.UserID {
			return n, true
		}
	}
	return model.Note{}, false
}

func (m *Manager) mutate(ctx context.Context, id string, change func(model.Task) (model.Task, error)) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return model.Task{}, fmt.Errorf("%w: task %s", model.ErrNotFound, id)
	}
	prev := m.tasks[i]
	next, err := change(prev)
	if err != nil {
		return model.Task{}, err
	}
	next.ID, next.UserID, next.CreatedAt = prev.ID, prev.UserID, prev.CreatedAt
	next.UpdatedAt = m.bump(prev.UpdatedAt)

	gone := false
	if err := m.persist(ctx, func(all []model.Task) ([]model.Task, bool) {
		for j := range all {
			if all[j].ID == id && all[j].UserID == prev.UserID {
				all[j] = next
				return all, true
			}
		}
		gone = true
		return all, false
	}); err != nil {
		return model.Task{}, err
	}
	if gone {
		// deleted elsewhere since the cache was loaded
		m.tasks = slices.Delete(m.tasks, i, i+1)
		return model.Task{}, fmt.Errorf("%w: task %s", model.ErrNotFound, id)
	}
	m.tasks[i] = next
	log.WithFields(log.Fields{"task": id, "user": prev.UserID}).Debug("task updated")
	return next, nil
}

func (m *Manager) persist(ctx context.Context, change func([]model.Task) ([]model.Task, bool)) error {
	all, err := m.store.LoadTasks(ctx)
	if err != nil {
		return err
	}
	all, changed := change(all)
	if !changed {
		return nil
	}
	if err := m.store.SaveTasks(ctx, all); err != nil {
		log.WithError(err).Warn("saving tasks failed")
		return err
	}
	return nil
}

func (m *Manager) bump(prev time.Time) time.Time {
	now := m.now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}

func (m *Manager) index(id string) int {
	return slices.IndexFunc(m.tasks, func(t model.Task) bool { return t.ID == id })
}
