// Package account moves a user's data in and out of the store: backup
// documents in JSON or YAML, bulk deletion and the profile summary.
package account

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"notely/internal/model"
	"notely/internal/storage"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(v string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(v))); f {
	case FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", model.ErrValidation, v)
}

// DetectFormat picks the format from a file extension, defaulting to JSON.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Document is the backup layout. ExportDate is an RFC 3339 string.
type Document struct {
	User       model.User   `json:"user" yaml:"user"`
	Notes      []model.Note `json:"notes" yaml:"notes"`
	Tasks      []model.Task `json:"tasks" yaml:"tasks"`
	ExportDate string       `json:"exportDate" yaml:"exportDate"`
}

type Report struct {
	NotesInserted int
	NotesUpdated  int
	TasksInserted int
	TasksUpdated  int
}

func (r Report) String() string {
	return fmt.Sprintf("notes: %d new, %d updated; tasks: %d new, %d updated",
		r.NotesInserted, r.NotesUpdated, r.TasksInserted, r.TasksUpdated)
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDs(next func() string) Option {
	return func(s *Service) { s.newID = next }
}

type Service struct {
	store *storage.Store
	now   func() time.Time
	newID func() string
}

func New(store *storage.Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Export(ctx context.Context, userID string, format Format) ([]byte, error) {
	if userID == "" {
		return nil, model.ErrUnauthenticated
	}
	users, err := s.store.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(users, func(u model.User) bool { return u.ID == userID })
	if i < 0 {
		return nil, fmt.Errorf("%w: user %s", model.ErrNotFound, userID)
	}
	notes, err := s.store.LoadNotes(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}
	doc := Document{
		User:       users[i].Public(),
		Notes:      ownedBy(notes, userID, func(n model.Note) string { return n.UserID }),
		Tasks:      ownedBy(tasks, userID, func(t model.Task) string { return t.UserID }),
		ExportDate: s.now().UTC().Format(time.RFC3339),
	}
	log.WithFields(log.Fields{"user": userID, "notes": len(doc.Notes), "tasks": len(doc.Tasks)}).Info("export")

	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatJSON, "":
		return json.MarshalIndent(doc, "", "  ")
	}
	return nil, fmt.Errorf("%w: unknown format %q", model.ErrValidation, format)
}

// Import validates the whole document before writing anything, then upserts
// its notes and tasks by id under userID. Ownership recorded in the document
// is ignored. Ids already used by another user are replaced by an id derived
// from the user and the original id.
func (s *Service) Import(ctx context.Context, userID string, data []byte, format Format) (Report, error) {
	if userID == "" {
		return Report{}, model.ErrUnauthenticated
	}
	doc, err := decode(data, format)
	if err != nil {
		return Report{}, err
	}
	now := s.now().UTC()
	incomingNotes, err := s.prepareNotes(doc.Notes, userID, now)
	if err != nil {
		return Report{}, err
	}
	incomingTasks, err := s.prepareTasks(doc.Tasks, userID, now)
	if err != nil {
		return Report{}, err
	}

	var rep Report
	if len(incomingNotes) > 0 {
		notes, err := s.store.LoadNotes(ctx)
		if err != nil {
			return Report{}, err
		}
		notes, rep.NotesInserted, rep.NotesUpdated = upsert(notes, incomingNotes, userID, noteKey)
		if err := s.store.SaveNotes(ctx, notes); err != nil {
			return Report{}, err
		}
	}
	if len(incomingTasks) > 0 {
		tasks, err := s.store.LoadTasks(ctx)
		if err != nil {
			return rep, err
		}
		tasks, rep.TasksInserted, rep.TasksUpdated = upsert(tasks, incomingTasks, userID, taskKey)
		if err := s.store.SaveTasks(ctx, tasks); err != nil {
			return rep, err
		}
	}
	log.WithFields(log.Fields{"user": userID, "report": rep.String()}).Info("import")
	return rep, nil
}

// Wipe deletes every note and task owned by userID. Users and the session
// are untouched.
func (s *Service) Wipe(ctx context.Context, userID string) (notesRemoved, tasksRemoved int, err error) {
	if userID == "" {
		return 0, 0, model.ErrUnauthenticated
	}
	notes, err := s.store.LoadNotes(ctx)
	if err != nil {
		return 0, 0, err
	}
	before := len(notes)
	notes = slices.DeleteFunc(notes, func(n model.Note) bool { return n.UserID == userID })
	if notesRemoved = before - len(notes); notesRemoved > 0 {
		if err := s.store.SaveNotes(ctx, notes); err != nil {
			return 0, 0, err
		}
	}

	tasks, err := s.store.LoadTasks(ctx)
	if err != nil {
		return notesRemoved, 0, err
	}
	before = len(tasks)
	tasks = slices.DeleteFunc(tasks, func(t model.Task) bool { return t.UserID == userID })
	if tasksRemoved = before - len(tasks); tasksRemoved > 0 {
		if err := s.store.SaveTasks(ctx, tasks); err != nil {
			return notesRemoved, 0, err
		}
	}
	log.WithFields(log.Fields{"user": userID, "notes": notesRemoved, "tasks": tasksRemoved}).Warn("user data wiped")
	return notesRemoved, tasksRemoved, nil
}

// BackupName suggests a file name for an export.
func BackupName(username string, now time.Time, format Format) string {
	if format == "" {
		format = FormatJSON
	}
	return fmt.Sprintf("notely-backup-%s-%s.%s", username, now.UTC().Format(time.DateOnly), format)
}

func decode(data []byte, format Format) (Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON, "":
		err = json.Unmarshal(data, &doc)
	default:
		return Document{}, fmt.Errorf("%w: unknown format %q", model.ErrValidation, format)
	}
	if err != nil {
		return Document{}, fmt.Errorf("%w: unreadable backup: %v", model.ErrValidation, err)
	}
	return doc, nil
}

func (s *Service) prepareNotes(in []model.Note, userID string, now time.Time) ([]model.Note, error) {
	out := make([]model.Note, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, n := range in {
		n.UserID = userID
		n.ID = strings.TrimSpace(n.ID)
		if n.ID == "" {
			n.ID = s.newID()
		}
		if _, dup := seen[n.ID]; dup {
			return nil, fmt.Errorf("%w: note %d: duplicate id %s", model.ErrValidation, i, n.ID)
		}
		seen[n.ID] = struct{}{}
		n.Title = strings.TrimSpace(n.Title)
		n.Color = strings.ToLower(strings.TrimSpace(n.Color))
		n.Tags = model.NormalizeTags(n.Tags)
		n.CreatedAt, n.UpdatedAt = fillTimes(n.CreatedAt, n.UpdatedAt, now)
		if err := model.ValidateNote(n); err != nil {
			return nil, fmt.Errorf("note %d: %w", i, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Service) prepareTasks(in []model.Task, userID string, now time.Time) ([]model.Task, error) {
	out := make([]model.Task, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, t := range in {
		t.UserID = userID
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			t.ID = s.newID()
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("%w: task %d: duplicate id %s", model.ErrValidation, i, t.ID)
		}
		seen[t.ID] = struct{}{}
		t.Title = strings.TrimSpace(t.Title)
		t.Tags = model.NormalizeTags(t.Tags)
		if p, ok := model.ParsePriority(string(t.Priority)); ok {
			t.Priority = p
		}
		if t.DueDate != nil {
			due := t.DueDate.UTC()
			t.DueDate = &due
		}
		t.CreatedAt, t.UpdatedAt = fillTimes(t.CreatedAt, t.UpdatedAt, now)
		if err := model.ValidateTask(t); err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func fillTimes(created, updated, now time.Time) (time.Time, time.Time) {
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() || updated.Before(created) {
		updated = created
	}
	return created.UTC(), updated.UTC()
}

type keyFunc[T any] func(*T) (id *string, owner string)

func noteKey(n *model.Note) (*string, string) { return &n.ID, n.UserID }
func taskKey(t *model.Task) (*string, string) { return &t.ID, t.UserID }

func upsert[T any](existing, incoming []T, userID string, key keyFunc[T]) ([]T, int, int) {
	pos := make(map[string]int, len(existing))
	for i := range existing {
		id, _ := key(&existing[i])
		pos[*id] = i
	}
	inserted, updated := 0, 0
	for _, rec := range incoming {
		id, _ := key(&rec)
		for {
			i, ok := pos[*id]
			if !ok {
				pos[*id] = len(existing)
				existing = append(existing, rec)
				inserted++
				break
			}
			if _, owner := key(&existing[i]); owner == userID {
				existing[i] = rec
				updated++
				break
			}
			*id = rekey(userID, *id)
		}
	}
	return existing, inserted, updated
}

// rekey derives the id a foreign record takes under userID. The result is
// stable, so importing the same backup again updates instead of duplicating.
func rekey(userID, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(userID+":"+id)).String()
}

func ownedBy[T any](items []T, userID string, owner func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if owner(it) == userID {
			out = append(out, it)
		}
	}
	return out
}
