package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"notely/internal/app"
	"notely/internal/config"
	"notely/internal/model"
	"notely/internal/query"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enter  = tea.KeyMsg{Type: tea.KeyEnter}
	esc    = tea.KeyMsg{Type: tea.KeyEsc}
	tabKey = tea.KeyMsg{Type: tea.KeyTab}
	ctrlS  = tea.KeyMsg{Type: tea.KeyCtrlS}
	space  = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

func newTestModel(t *testing.T) (Model, *app.App) {
	t.Helper()
	ctx := context.Background()
	cfg := config.Config{
		Backend:      config.BackendMemory,
		BcryptCost:   bcrypt.MinCost,
		DefaultSort:  "updatedAt",
		DefaultOrder: "desc",
		Keys: config.Keymap{
			Quit: "q", Add: "a", Edit: "e", Up: "k", Down: "j", Toggle: " ", Delete: "d",
			Confirm: "enter", Cancel: "esc", Search: "/", Tags: "t", Sort: "s", Order: "o",
			Clear: "c", Filter: "f", Switch: "tab", Reload: "r",
		},
	}
	a, err := app.Open(ctx, cfg)
	require.NoError(t, err)
	u, err := a.Auth.Register(ctx, "ana", "pw")
	require.NoError(t, err)
	require.NoError(t, a.Load(ctx, u.ID))
	return New(ctx, a, u), a
}

func send(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m = send(m, runes(string(r)))
	}
	return m
}

func TestAddNoteThroughForm(t *testing.T) {
	m, a := newTestModel(t)

	m = send(m, runes("a"))
	require.Equal(t, modeForm, m.mode)
	m = typeText(m, "Groceries")
	m = send(m, enter)
	m = typeText(m, "milk")
	m = send(m, enter)
	m = typeText(m, "eggs")
	m = send(m, tabKey)
	m = typeText(m, "home, shop")
	m = send(m, enter)
	m = typeText(m, "green")
	m = send(m, enter)

	assert.Equal(t, modeList, m.mode)
	assert.True(t, m.status.OK, m.status.Message)
	notes := a.Notes.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, "Groceries", notes[0].Title)
	assert.Equal(t, "milk\neggs", notes[0].Content)
	assert.Equal(t, []string{"home", "shop"}, notes[0].Tags)
	assert.Equal(t, "green", notes[0].Color)
	assert.Contains(t, m.View(), "Groceries")
}

func TestFormValidationKeepsForm(t *testing.T) {
	m, a := newTestModel(t)
	m = send(m, runes("a"), enter, tabKey, enter)
	m = typeText(m, "teal")
	m = send(m, enter)

	assert.Equal(t, modeForm, m.mode)
	assert.False(t, m.status.OK)
	assert.Empty(t, a.Notes.Notes())

	m = send(m, esc)
	assert.Equal(t, modeList, m.mode)
	assert.Nil(t, m.form)
}

func TestTogglePinAndDelete(t *testing.T) {
	ctx := context.Background()
	m, a := newTestModel(t)
	_, err := a.Notes.Add(ctx, m.user.ID, model.NoteForm{Title: "first"})
	require.NoError(t, err)
	_, err = a.Notes.Add(ctx, m.user.ID, model.NoteForm{Title: "second"})
	require.NoError(t, err)
	m = send(m, runes("r"))
	require.Len(t, m.nview, 2)

	m = send(m, runes("j"), space)
	pinned := m.nview[0].ID
	got, ok := a.Notes.Get(pinned)
	require.True(t, ok)
	assert.True(t, got.IsPinned)
	assert.Equal(t, 0, m.cursor)

	m = send(m, runes("d"))
	require.True(t, m.confirmDel)
	m = send(m, runes("n"))
	assert.False(t, m.confirmDel)
	assert.Len(t, a.Notes.Notes(), 2)

	m = send(m, runes("d"), runes("y"))
	notes := a.Notes.Notes()
	require.Len(t, notes, 1)
	assert.NotEqual(t, pinned, notes[0].ID)
}

func TestSearchAndClear(t *testing.T) {
	ctx := context.Background()
	m, a := newTestModel(t)
	_, err := a.Notes.Add(ctx, m.user.ID, model.NoteForm{Title: "Weekly", Content: "Team meeting notes"})
	require.NoError(t, err)
	_, err = a.Notes.Add(ctx, m.user.ID, model.NoteForm{Title: "Groceries"})
	require.NoError(t, err)
	m = send(m, runes("r"))

	m = send(m, runes("/"))
	m = typeText(m, "meet")
	m = send(m, enter)
	require.Len(t, m.nview, 1)
	assert.Equal(t, "Weekly", m.nview[0].Title)

	m = send(m, runes("c"))
	assert.Len(t, m.nview, 2)
	assert.Empty(t, m.noteQ.Search)

	m = send(m, runes("/"))
	m = typeText(m, "zzz")
	m = send(m, esc)
	assert.Len(t, m.nview, 2)
}

func TestTagPicker(t *testing.T) {
	ctx := context.Background()
	m, a := newTestModel(t)
	_, err := a.Notes.Add(ctx, m.user.ID, model.NoteForm{Title: "a", Tags: []string{"work"}})
	require.NoError(t, err)
	_, err = a.Notes.Add(ctx, m.user.ID, model.NoteForm{Title: "b", Tags: []string{"home"}})
	require.NoError(t, err)
	m = send(m, runes("r"))

	m = send(m, runes("t"))
	require.Equal(t, modeTags, m.mode)
	m = send(m, runes("j"), space, enter)
	assert.Equal(t, []string{"work"}, m.noteQ.Tags)
	require.Len(t, m.nview, 1)
	assert.Equal(t, "a", m.nview[0].Title)
}

func TestSortAndOrderKeys(t *testing.T) {
	m, _ := newTestModel(t)
	m = send(m, runes("s"))
	assert.Equal(t, query.SortTitle, m.noteQ.SortKey)
	m = send(m, runes("o"))
	assert.Equal(t, query.Asc, m.noteQ.Order)
	assert.Equal(t, query.Desc, m.taskQ.Order)
}

func TestTasksTab(t *testing.T) {
	ctx := context.Background()
	m, a := newTestModel(t)
	note, err := a.Notes.Add(ctx, m.user.ID, model.NoteForm{Title: "Roadmap"})
	require.NoError(t, err)

	m = send(m, tabKey, runes("a"))
	require.Equal(t, tabTasks, m.form.kind)
	m = typeText(m, "Write report")
	m = send(m, enter, tabKey)
	m.input.SetValue("")
	m = typeText(m, "high")
	m = send(m, enter)
	m = typeText(m, "2025-09-01")
	m = send(m, enter, enter)
	m = typeText(m, "roadmap")
	m = send(m, enter)

	require.True(t, m.status.OK, m.status.Message)
	ts := a.Tasks.Tasks()
	require.Len(t, ts, 1)
	assert.Equal(t, model.PriorityHigh, ts[0].Priority)
	assert.Equal(t, "2025-09-01", formatDate(ts[0].DueDate))
	assert.Equal(t, note.ID, ts[0].LinkedNoteID)

	m = send(m, space)
	got, _ := a.Tasks.Get(ts[0].ID)
	assert.True(t, got.Completed)

	m = send(m, runes("f"))
	assert.Equal(t, query.StatusPending, m.taskQ.Status)
	assert.Empty(t, m.tview)
	assert.Contains(t, m.View(), "status: pending")
}

func TestExternalChangeReloads(t *testing.T) {
	ctx := context.Background()
	m, a := newTestModel(t)
	_, err := a.Store.LoadNotes(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Store.SaveNotes(ctx, []model.Note{{ID: "x", UserID: m.user.ID, Title: "from elsewhere"}}))

	next, cmd := m.Update(storeChangedMsg{})
	m = next.(Model)
	assert.Nil(t, cmd)
	require.Len(t, m.nview, 1)
	assert.Equal(t, "from elsewhere", m.nview[0].Title)
	assert.Equal(t, "Reloaded after external change", m.status.Message)
}

func TestOwnWriteKeepsStatus(t *testing.T) {
	m, _ := newTestModel(t)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	m = send(m, runes("a"))
	m = typeText(m, "Groceries")
	m = send(m, ctrlS)
	require.Equal(t, "Saved", m.status.Message)

	clock = clock.Add(100 * time.Millisecond)
	m = send(m, storeChangedMsg{})
	assert.Equal(t, "Saved", m.status.Message)
	assert.Len(t, m.nview, 1)

	clock = clock.Add(time.Minute)
	m = send(m, storeChangedMsg{})
	assert.Equal(t, "Reloaded after external change", m.status.Message)
}

func TestEditKeepsMultilineContent(t *testing.T) {
	ctx := context.Background()
	m, a := newTestModel(t)
	content := "line1\nline2\n\tindented"
	n, err := a.Notes.Add(ctx, m.user.ID, model.NoteForm{Title: "multi", Content: content})
	require.NoError(t, err)
	m = send(m, runes("r"))

	m = send(m, runes("e"))
	require.Equal(t, modeForm, m.mode)
	m = send(m, enter)
	require.True(t, m.form.multiline())
	m = send(m, tabKey, enter, enter)

	require.Equal(t, modeList, m.mode, m.status.Message)
	got, ok := a.Notes.Get(n.ID)
	require.True(t, ok)
	assert.Equal(t, content, got.Content)
	assert.Equal(t, n.UpdatedAt, got.UpdatedAt)

	m = send(m, runes("e"), enter)
	m = typeText(m, "x")
	m = send(m, enter)
	m = typeText(m, "line4")
	m = send(m, ctrlS)

	require.Equal(t, modeList, m.mode, m.status.Message)
	got, _ = a.Notes.Get(n.ID)
	assert.True(t, strings.HasPrefix(got.Content, "line1\nline2\n"))
	assert.True(t, strings.HasSuffix(got.Content, "x\nline4"))
	assert.Equal(t, "multi", got.Title)
}

func TestClampCursor(t *testing.T) {
	assert.Equal(t, 0, clampCursor(5, 0))
	assert.Equal(t, 0, clampCursor(-1, 3))
	assert.Equal(t, 2, clampCursor(9, 3))
	assert.Equal(t, 1, clampCursor(1, 3))
	assert.Equal(t, 2, wrapIndex(-1, 3))
}
