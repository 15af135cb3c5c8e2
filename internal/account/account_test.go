package account

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notely/internal/model"
	"notely/internal/storage"
)

var now = time.Date(2025, 7, 10, 15, 0, 0, 0, time.UTC)

func fixture(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	ctx := context.Background()
	store := storage.New(storage.NewMemory())
	require.NoError(t, store.SaveUsers(ctx, []model.User{
		{ID: "u1", Username: "ana", PasswordHash: "$2a$hash", Token: "recovery", CreatedAt: now.AddDate(0, -1, 0)},
		{ID: "u2", Username: "bo"},
	}))
	require.NoError(t, store.SaveNotes(ctx, []model.Note{
		{ID: "n1", UserID: "u1", Title: "existing", CreatedAt: now, UpdatedAt: now},
		{ID: "n9", UserID: "u2", Title: "foreign", CreatedAt: now, UpdatedAt: now},
	}))
	require.NoError(t, store.SaveTasks(ctx, []model.Task{
		{ID: "t1", UserID: "u1", Title: "task", Priority: model.PriorityLow, CreatedAt: now, UpdatedAt: now},
	}))
	n := 0
	svc := New(store, WithClock(func() time.Time { return now }), WithIDs(func() string {
		n++
		return fmt.Sprintf("fresh%d", n)
	}))
	return svc, store
}

func TestExportJSON(t *testing.T) {
	svc, _ := fixture(t)
	data, err := svc.Export(context.Background(), "u1", FormatJSON)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "ana", doc.User.Username)
	assert.Empty(t, doc.User.PasswordHash)
	assert.Empty(t, doc.User.Token)
	require.Len(t, doc.Notes, 1)
	assert.Equal(t, "n1", doc.Notes[0].ID)
	require.Len(t, doc.Tasks, 1)
	assert.Equal(t, "2025-07-10T15:00:00Z", doc.ExportDate)
	assert.NotContains(t, string(data), "recovery")

	_, err = svc.Export(context.Background(), "", FormatJSON)
	require.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestYAMLRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, store := fixture(t)
	data, err := svc.Export(ctx, "u1", FormatYAML)
	require.NoError(t, err)

	_, _, err = svc.Wipe(ctx, "u1")
	require.NoError(t, err)

	rep, err := svc.Import(ctx, "u1", data, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Report{NotesInserted: 1, TasksInserted: 1}, rep)

	notes, err := store.LoadNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.True(t, notes[1].UpdatedAt.Equal(now))
}

func TestImportUpsertCounts(t *testing.T) {
	ctx := context.Background()
	svc, store := fixture(t)
	before, err := store.LoadNotes(ctx)
	require.NoError(t, err)

	doc := `{"notes":[
		{"id":"n1","userId":"someone","title":"overwritten"},
		{"id":"n2","title":"brand new","tags":["x","x"]}
	]}`
	rep, err := svc.Import(ctx, "u1", []byte(doc), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.NotesInserted)
	assert.Equal(t, 1, rep.NotesUpdated)

	after, err := store.LoadNotes(ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(before)+1)
	assert.Equal(t, "overwritten", after[0].Title)
	assert.Equal(t, "u1", after[0].UserID)
	assert.Equal(t, []string{"x"}, after[2].Tags)
	assert.Equal(t, "u1", after[2].UserID)
}

func TestImportRekeysForeignIDs(t *testing.T) {
	ctx := context.Background()
	svc, store := fixture(t)
	doc := []byte(`{"notes":[{"id":"n9","title":"mine now"}]}`)

	rep, err := svc.Import(ctx, "u1", doc, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, Report{NotesInserted: 1}, rep)

	notes, err := store.LoadNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, "foreign", notes[1].Title)
	assert.Equal(t, "u2", notes[1].UserID)
	assert.Equal(t, rekey("u1", "n9"), notes[2].ID)
	assert.NotEqual(t, "n9", notes[2].ID)
	assert.Equal(t, "u1", notes[2].UserID)

	rep, err = svc.Import(ctx, "u1", doc, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, Report{NotesUpdated: 1}, rep)

	again, err := store.LoadNotes(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 3)
	assert.Equal(t, notes[2].ID, again[2].ID)
}

func TestRekeyIsStablePerUser(t *testing.T) {
	assert.Equal(t, rekey("u1", "n9"), rekey("u1", "n9"))
	assert.NotEqual(t, rekey("u1", "n9"), rekey("u3", "n9"))
}

func TestImportRejectsInvalidDocumentWithoutWriting(t *testing.T) {
	ctx := context.Background()
	svc, store := fixture(t)

	cases := map[string]string{
		"garbage":      `not json`,
		"empty note":   `{"notes":[{"id":"a","title":"ok"},{"id":"b"}]}`,
		"bad priority": `{"tasks":[{"id":"x","title":"t","priority":"urgent"}]}`,
		"duplicate id": `{"notes":[{"id":"a","title":"1"},{"id":"a","title":"2"}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Import(ctx, "u1", []byte(doc), FormatJSON)
			require.ErrorIs(t, err, model.ErrValidation)
		})
	}

	notes, err := store.LoadNotes(ctx)
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestWipeKeepsOtherUsers(t *testing.T) {
	ctx := context.Background()
	svc, store := fixture(t)

	nRemoved, tRemoved, err := svc.Wipe(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, nRemoved)
	assert.Equal(t, 1, tRemoved)

	notes, err := store.LoadNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "u2", notes[0].UserID)
	users, err := store.LoadUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestFormats(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("backup.YML"))
	assert.Equal(t, FormatYAML, DetectFormat("/tmp/x.yaml"))
	assert.Equal(t, FormatJSON, DetectFormat("backup.json"))
	assert.Equal(t, FormatJSON, DetectFormat("backup"))

	f, err := ParseFormat("yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	_, err = ParseFormat("xml")
	require.ErrorIs(t, err, model.ErrValidation)

	assert.Equal(t, "notely-backup-ana-2025-07-10.json", BackupName("ana", now, ""))
}

func TestSummarize(t *testing.T) {
	u := model.User{Username: "ana", CreatedAt: now.AddDate(-1, 0, 0)}
	notes := []model.Note{
		{Tags: []string{"work", "ideas"}, CreatedAt: now.AddDate(0, 0, -1), UpdatedAt: now.Add(-time.Hour)},
		{Tags: []string{"work"}, CreatedAt: now.AddDate(0, 0, -30), UpdatedAt: now.AddDate(0, 0, -30)},
		{Tags: []string{"a", "b", "c", "d"}, CreatedAt: now.AddDate(0, 0, -8), UpdatedAt: now.AddDate(0, 0, -8)},
	}
	ts := []model.Task{
		{Completed: true, CreatedAt: now.AddDate(0, 0, -2), UpdatedAt: now.Add(-time.Minute)},
		{CreatedAt: now.AddDate(0, 0, -10), UpdatedAt: now.AddDate(0, 0, -10)},
	}

	s := Summarize(u, notes, ts, now)
	assert.Equal(t, 3, s.TotalNotes)
	assert.Equal(t, 2, s.TotalTasks)
	assert.Equal(t, 1, s.CompletedTasks)
	assert.Equal(t, 1, s.PendingTasks)
	assert.Equal(t, 1, s.RecentNotes)
	assert.Equal(t, 1, s.RecentTasks)
	assert.Equal(t, 50, s.ProductivityScore)
	assert.Equal(t, now.Add(-time.Minute), s.LastActivity)
	require.Len(t, s.TopTags, 5)
	assert.Equal(t, TagCount{Tag: "work", Count: 2}, s.TopTags[0])
	assert.Equal(t, "a", s.TopTags[1].Tag)

	empty := Summarize(u, nil, nil, now)
	assert.True(t, empty.LastActivity.IsZero())
	assert.Zero(t, empty.ProductivityScore)
}

func achieved(s Summary) map[string]bool {
	out := make(map[string]bool, len(s.Achievements))
	for _, a := range s.Achievements {
		out[a.Title] = a.Achieved
	}
	return out
}

func TestAchievementThresholds(t *testing.T) {
	u := model.User{Username: "ana"}
	old := now.AddDate(0, 0, -30)

	none := achieved(Summarize(u, nil, nil, now))
	assert.Len(t, none, 5)
	for title, ok := range none {
		assert.False(t, ok, title)
	}

	notes := make([]model.Note, 9)
	for i := range notes {
		notes[i] = model.Note{Tags: []string{fmt.Sprintf("t%d", i%4)}, CreatedAt: old, UpdatedAt: old}
	}
	ts := make([]model.Task, 4)
	for i := range ts {
		ts[i] = model.Task{Completed: true, CreatedAt: old, UpdatedAt: old}
	}
	got := achieved(Summarize(u, notes, ts, now))
	assert.True(t, got["First step"])
	assert.False(t, got["Organizer"])
	assert.False(t, got["Productive"])
	assert.False(t, got["Consistent"])
	assert.False(t, got["Tag master"])

	notes = append(notes, model.Note{Tags: []string{"t4"}, CreatedAt: now.AddDate(0, 0, -1), UpdatedAt: now})
	ts = append(ts, model.Task{Completed: true, CreatedAt: old, UpdatedAt: old})
	got = achieved(Summarize(u, notes, ts, now))
	assert.True(t, got["Organizer"])
	assert.True(t, got["Productive"])
	assert.True(t, got["Consistent"])
	assert.True(t, got["Tag master"])
}
