package ui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"notely/internal/app"
	"notely/internal/config"
	"notely/internal/model"
	"notely/internal/notes"
	"notely/internal/query"
	"notely/internal/tasks"
)

type tab int

const (
	tabNotes tab = iota
	tabTasks
)

type mode int

const (
	modeList mode = iota
	modeForm
	modeSearch
	modeTags
)

// storeChangedMsg reports a write to the store, possibly by another process.
type storeChangedMsg struct{}

// ownWriteWindow is how long after a local write a store change is taken to
// be the echo of that write.
const ownWriteWindow = time.Second

type Model struct {
	ctx   context.Context
	notes *notes.Manager
	tasks *tasks.Manager
	user  model.User
	keys  config.Keymap

	tab    tab
	mode   mode
	noteQ  query.Query
	taskQ  query.TaskQuery
	nview  []model.Note
	tview  []model.Task
	cursor int

	input      textinput.Model
	area       textarea.Model
	areaBase   string
	form       *formState
	prevSearch string
	tagCursor  int
	confirmDel bool
	pendingDel string
	status     model.Result

	changes   <-chan struct{}
	now       func() time.Time
	lastWrite time.Time
	width     int
}

// New builds the model for a signed-in user whose collections are already
// loaded into a's managers.
func New(ctx context.Context, a *app.App, user model.User) Model {
	ti := textinput.New()
	ti.CharLimit = model.MaxContentLength
	ti.Width = 40

	ta := textarea.New()
	ta.CharLimit = model.MaxContentLength
	ta.MaxHeight = 0
	ta.ShowLineNumbers = false
	ta.SetWidth(60)
	ta.SetHeight(6)

	noteQ := a.DefaultQuery()
	m := Model{
		ctx:    ctx,
		notes:  a.Notes,
		tasks:  a.Tasks,
		user:   user,
		keys:   a.Config.Keys,
		noteQ:  noteQ,
		taskQ:  query.TaskQuery{Query: noteQ, Status: query.StatusAll},
		input:  ti,
		area:   ta,
		now:    time.Now,
		mode:   modeList,
		status: model.Result{OK: true, Message: fmt.Sprintf("Signed in as %s. Press '%s' to add.", user.Username, a.Config.Keys.Add)},
	}
	m.refresh("")
	return m
}

// WithChanges makes the model reload whenever ch fires.
func (m Model) WithChanges(ch <-chan struct{}) Model {
	m.changes = ch
	return m
}

func Run(ctx context.Context, a *app.App, user model.User, changes <-chan struct{}) error {
	program := tea.NewProgram(New(ctx, a, user).WithChanges(changes), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return waitForChange(m.changes)
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch {
		case m.confirmDel:
			return m.updateDeleteConfirm(msg.String())
		case m.mode == modeForm:
			return m.updateFormMode(msg.String(), msg)
		case m.mode == modeSearch:
			return m.updateSearchMode(msg.String(), msg)
		case m.mode == modeTags:
			return m.updateTagMode(msg.String())
		}
		return m.updateListMode(msg.String())
	case storeChangedMsg:
		if m.now().Sub(m.lastWrite) < ownWriteWindow {
			m.reload("")
		} else {
			m.reload("Reloaded after external change")
		}
		return m, waitForChange(m.changes)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-10, 10)
		m.area.SetWidth(max(msg.Width-10, 20))
	}
	return m, nil
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	n := m.viewLen()
	switch key {
	case m.keys.Quit:
		return m, tea.Quit
	case m.keys.Down, "down":
		m.cursor = clampCursor(m.cursor+1, n)
	case m.keys.Up, "up":
		m.cursor = clampCursor(m.cursor-1, n)
	case m.keys.Switch:
		if m.tab == tabNotes {
			m.tab = tabTasks
		} else {
			m.tab = tabNotes
		}
		m.cursor = 0
		m.refresh("")
	case m.keys.Add:
		return m.startForm(nil)
	case m.keys.Edit:
		if n == 0 {
			m.status = model.Result{Message: "Nothing to edit"}
			return m, nil
		}
		id := m.selectedID()
		return m.startForm(&id)
	case m.keys.Toggle:
		if n == 0 {
			return m, nil
		}
		m.toggleSelected()
	case m.keys.Delete:
		if n == 0 {
			return m, nil
		}
		m.confirmDel = true
		m.pendingDel = m.selectedID()
		m.status = model.Result{OK: true, Message: fmt.Sprintf("Delete %q? y/n", m.selectedTitle())}
	case m.keys.Search:
		m.mode = modeSearch
		m.prevSearch = m.active().Search
		m.input.SetValue(m.prevSearch)
		m.input.Placeholder = "search"
		m.input.CursorEnd()
		cmd := m.input.Focus()
		return m, cmd
	case m.keys.Tags:
		if len(m.availableTags()) == 0 {
			m.status = model.Result{Message: "No tags yet"}
			return m, nil
		}
		m.mode = modeTags
		m.tagCursor = 0
	case m.keys.Sort:
		q := m.active()
		q.SortKey = query.NextSortKey(q.SortKey)
		m.refresh(m.selectedID())
		m.status = model.Result{OK: true, Message: "Sorted by " + string(q.SortKey)}
	case m.keys.Order:
		q := m.active()
		q.Order = q.Order.Toggle()
		m.refresh(m.selectedID())
		m.status = model.Result{OK: true, Message: "Order " + string(q.Order)}
	case m.keys.Filter:
		if m.tab != tabTasks {
			return m, nil
		}
		m.taskQ.Status = nextStatus(m.taskQ.Status)
		m.refresh(m.selectedID())
		m.status = model.Result{OK: true, Message: "Showing " + string(m.taskQ.Status) + " tasks"}
	case m.keys.Clear:
		q := m.active()
		q.Search = ""
		q.Tags = nil
		if m.tab == tabTasks {
			m.taskQ.Status = query.StatusAll
			m.taskQ.Priority = ""
		}
		m.refresh(m.selectedID())
		m.status = model.Result{OK: true, Message: "Filters cleared"}
	case m.keys.Reload:
		m.reload("Reloaded")
	}
	return m, nil
}

func (m Model) updateSearchMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.keys.Cancel, "esc":
		m.active().Search = m.prevSearch
		m.leaveInput()
		m.refresh(m.selectedID())
		return m, nil
	case m.keys.Confirm, "enter":
		m.leaveInput()
		m.status = model.Result{OK: true, Message: fmt.Sprintf("%d matching", m.viewLen())}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.active().Search = m.input.Value()
	m.cursor = 0
	m.refresh("")
	return m, cmd
}

func (m Model) updateTagMode(key string) (tea.Model, tea.Cmd) {
	tags := m.availableTags()
	switch key {
	case m.keys.Cancel, "esc", m.keys.Confirm, "enter", m.keys.Tags:
		m.mode = modeList
		m.status = model.Result{OK: true, Message: fmt.Sprintf("%d matching", m.viewLen())}
	case m.keys.Down, "down":
		m.tagCursor = clampCursor(m.tagCursor+1, len(tags))
	case m.keys.Up, "up":
		m.tagCursor = clampCursor(m.tagCursor-1, len(tags))
	case m.keys.Toggle, "x":
		if len(tags) == 0 {
			return m, nil
		}
		q := m.active()
		q.Tags = query.ToggleTag(q.Tags, tags[clampCursor(m.tagCursor, len(tags))])
		m.cursor = 0
		m.refresh("")
	}
	return m, nil
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", "esc":
		m.status = model.Result{OK: true, Message: "Delete cancelled"}
	case "y", "Y":
		var err error
		if m.tab == tabNotes {
			err = m.notes.Delete(m.ctx, m.pendingDel)
		} else {
			err = m.tasks.Delete(m.ctx, m.pendingDel)
		}
		m.lastWrite = m.now()
		m.status = model.Outcome(err, "Deleted")
		m.refresh("")
	default:
		return m, nil
	}
	m.confirmDel = false
	m.pendingDel = ""
	return m, nil
}

func (m *Model) toggleSelected() {
	id := m.selectedID()
	m.lastWrite = m.now()
	if m.tab == tabNotes {
		n, err := m.notes.TogglePin(m.ctx, id)
		msg := "Unpinned"
		if n.IsPinned {
			msg = "Pinned"
		}
		m.status = model.Outcome(err, msg)
	} else {
		t, err := m.tasks.ToggleCompletion(m.ctx, id)
		m.status = model.Outcome(err, "Marked "+humanDone(t.Completed))
	}
	m.refresh(id)
}

func (m *Model) reload(msg string) {
	id := m.selectedID()
	var err error
	if _, err = m.notes.LoadForUser(m.ctx, m.user.ID); err == nil {
		_, err = m.tasks.LoadForUser(m.ctx, m.user.ID)
	}
	if err != nil {
		log.WithError(err).Warn("reload failed")
	}
	// an empty msg keeps the current status unless the reload failed
	if err != nil || msg != "" {
		m.status = model.Outcome(err, msg)
	}
	m.refresh(id)
}

// refresh recomputes the visible list. When keep names a record still
// visible, the cursor follows it.
func (m *Model) refresh(keep string) {
	m.nview = query.Notes(m.notes.Notes(), m.noteQ)
	m.tview = query.Tasks(m.tasks.Tasks(), m.taskQ)
	if keep != "" {
		var i int
		if m.tab == tabNotes {
			i = slices.IndexFunc(m.nview, func(n model.Note) bool { return n.ID == keep })
		} else {
			i = slices.IndexFunc(m.tview, func(t model.Task) bool { return t.ID == keep })
		}
		if i >= 0 {
			m.cursor = i
		}
	}
	m.cursor = clampCursor(m.cursor, m.viewLen())
}

func (m *Model) active() *query.Query {
	if m.tab == tabTasks {
		return &m.taskQ.Query
	}
	return &m.noteQ
}

func (m *Model) leaveInput() {
	m.mode = modeList
	m.input.SetValue("")
	m.input.Blur()
	m.area.Reset()
	m.area.Blur()
}

func (m Model) availableTags() []string {
	if m.tab == tabTasks {
		return query.AllTaskTags(m.tasks.Tasks())
	}
	return query.AllTags(m.notes.Notes())
}

func (m Model) viewLen() int {
	if m.tab == tabTasks {
		return len(m.tview)
	}
	return len(m.nview)
}

func (m Model) selectedID() string {
	if m.viewLen() == 0 {
		return ""
	}
	i := clampCursor(m.cursor, m.viewLen())
	if m.tab == tabTasks {
		return m.tview[i].ID
	}
	return m.nview[i].ID
}

func (m Model) selectedTitle() string {
	if m.viewLen() == 0 {
		return ""
	}
	i := clampCursor(m.cursor, m.viewLen())
	if m.tab == tabTasks {
		return m.tview[i].Title
	}
	return noteHeading(m.nview[i])
}

func nextStatus(s query.Status) query.Status {
	switch s {
	case query.StatusAll, "":
		return query.StatusPending
	case query.StatusPending:
		return query.StatusCompleted
	default:
		return query.StatusAll
	}
}

func noteHeading(n model.Note) string {
	if strings.TrimSpace(n.Title) != "" {
		return n.Title
	}
	line, _, _ := strings.Cut(n.Content, "\n")
	return truncate(line, 40)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}

func humanDone(done bool) string {
	if done {
		return "done"
	}
	return "pending"
}
