package ui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"notely/internal/model"
	"notely/internal/tasks"
)

const dateLayout = "2006-01-02"

// formState holds an add or edit form. id and orig are empty when adding.
type formState struct {
	kind   tab
	id     string
	values []string
	orig   []string
	index  int
}

func noteFields() []string {
	return []string{"title", "content", "tags (comma separated)", "color"}
}

func taskFields() []string {
	return []string{"title", "description", "priority (low/medium/high)", "due date (YYYY-MM-DD)", "tags (comma separated)", "linked note (title or id)"}
}

func (fs formState) fields() []string {
	if fs.kind == tabTasks {
		return taskFields()
	}
	return noteFields()
}

func (fs formState) currentLabel() string {
	return fs.fields()[fs.index]
}

func (fs formState) currentValue() string {
	return fs.values[fs.index]
}

func (fs *formState) setCurrentValue(v string) {
	fs.values[fs.index] = v
}

// multiline reports whether the current field is note content or task
// description, which are edited in the textarea.
func (fs formState) multiline() bool {
	return fs.index == 1
}

// changed reports whether field i differs from the record being edited.
func (fs formState) changed(i int) bool {
	return fs.orig == nil || fs.values[i] != fs.orig[i]
}

func (m Model) startForm(id *string) (tea.Model, tea.Cmd) {
	fs := &formState{kind: m.tab}
	switch {
	case id == nil && m.tab == tabNotes:
		fs.values = make([]string, len(noteFields()))
	case id == nil:
		fs.values = make([]string, len(taskFields()))
		fs.values[2] = string(model.PriorityMedium)
	case m.tab == tabNotes:
		n, ok := m.notes.Get(*id)
		if !ok {
			m.status = model.Result{Message: "Note no longer exists"}
			return m, nil
		}
		fs.id = n.ID
		fs.values = []string{n.Title, n.Content, strings.Join(n.Tags, ", "), n.Color}
	default:
		t, ok := m.tasks.Get(*id)
		if !ok {
			m.status = model.Result{Message: "Task no longer exists"}
			return m, nil
		}
		fs.id = t.ID
		linked := ""
		if n, ok := tasks.ResolveLinkedNote(t, m.notes.Notes()); ok {
			linked = noteHeading(n)
		} else if t.LinkedNoteID != "" {
			linked = t.LinkedNoteID
		}
		fs.values = []string{t.Title, t.Description, string(t.Priority), formatDate(t.DueDate), strings.Join(t.Tags, ", "), linked}
	}
	if fs.id != "" {
		fs.orig = slices.Clone(fs.values)
	}
	m.form = fs
	m.mode = modeForm
	cmd := m.loadField()
	return m, cmd
}

func (m Model) updateFormMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	multi := m.form.multiline()
	switch {
	case key == m.keys.Cancel || key == "esc":
		m.form = nil
		m.leaveInput()
		m.status = model.Result{OK: true, Message: "Edit cancelled"}
		return m, nil
	case key == "tab" || (key == "down" && !multi):
		cmd := m.moveField(1)
		return m, cmd
	case key == "shift+tab" || (key == "up" && !multi):
		cmd := m.moveField(-1)
		return m, cmd
	case key == "ctrl+s":
		m.form.setCurrentValue(m.fieldValue())
		return m.saveForm()
	case !multi && (key == m.keys.Confirm || key == "enter"):
		m.form.setCurrentValue(m.fieldValue())
		if m.form.index >= len(m.form.values)-1 {
			return m.saveForm()
		}
		cmd := m.moveField(1)
		return m, cmd
	}
	var cmd tea.Cmd
	if multi {
		m.area, cmd = m.area.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) moveField(delta int) tea.Cmd {
	m.form.setCurrentValue(m.fieldValue())
	m.form.index = wrapIndex(m.form.index+delta, len(m.form.values))
	return m.loadField()
}

// fieldValue returns the edited value of the current field. An untouched
// textarea yields the stored value, since the textarea normalizes tabs.
func (m Model) fieldValue() string {
	if m.form.multiline() {
		if v := m.area.Value(); v != m.areaBase {
			return v
		}
		return m.form.currentValue()
	}
	return m.input.Value()
}

// loadField puts the current field's value into the matching editor and
// focuses it.
func (m *Model) loadField() tea.Cmd {
	m.status = m.formPrompt()
	v := m.form.currentValue()
	if m.form.multiline() {
		m.input.Blur()
		m.area.SetValue(v)
		m.areaBase = m.area.Value()
		m.area.Placeholder = m.form.currentLabel()
		return m.area.Focus()
	}
	m.area.Blur()
	m.input.SetValue(v)
	m.input.Placeholder = m.form.currentLabel()
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m Model) saveForm() (tea.Model, tea.Cmd) {
	fs := m.form
	var (
		id  string
		err error
	)
	if fs.kind == tabNotes {
		id, err = m.saveNote(fs)
	} else {
		id, err = m.saveTask(fs)
	}
	if err != nil {
		m.status = model.Outcome(err, "")
		return m, nil
	}
	m.form = nil
	m.leaveInput()
	m.lastWrite = m.now()
	m.status = model.Outcome(nil, "Saved")
	m.refresh(id)
	return m, nil
}

// saveNote adds the note, or on edit writes back only the fields the user
// changed so untouched content is never rewritten by the editor.
func (m Model) saveNote(fs *formState) (string, error) {
	v := fs.values
	tags := model.SplitTags(v[2])
	if fs.id == "" {
		n, err := m.notes.Add(m.ctx, m.user.ID, model.NoteForm{Title: v[0], Content: v[1], Tags: tags, Color: v[3]})
		return n.ID, err
	}
	var patch model.NotePatch
	if fs.changed(0) {
		patch.Title = &v[0]
	}
	if fs.changed(1) {
		patch.Content = &v[1]
	}
	if fs.changed(2) {
		patch.Tags = &tags
	}
	if fs.changed(3) {
		patch.Color = &v[3]
	}
	if patch.Empty() {
		return fs.id, nil
	}
	n, err := m.notes.Update(m.ctx, fs.id, patch)
	return n.ID, err
}

func (m Model) saveTask(fs *formState) (string, error) {
	v := fs.values
	priority, ok := model.ParsePriority(v[2])
	if !ok {
		return "", fmt.Errorf("%w: priority must be low, medium or high", model.ErrValidation)
	}
	due, err := parseDate(v[3])
	if err != nil {
		return "", fmt.Errorf("%w: due date: %v", model.ErrValidation, err)
	}
	tags := model.SplitTags(v[4])

	if fs.id == "" {
		t, err := m.tasks.Add(m.ctx, m.user.ID, model.TaskForm{
			Title: v[0], Description: v[1], Priority: priority, DueDate: due, Tags: tags, LinkedNoteID: m.resolveNoteRef(v[5]),
		})
		return t.ID, err
	}
	var patch model.TaskPatch
	if fs.changed(0) {
		patch.Title = &v[0]
	}
	if fs.changed(1) {
		patch.Description = &v[1]
	}
	if fs.changed(2) {
		patch.Priority = &priority
	}
	if fs.changed(3) {
		patch.DueDate = due
		patch.ClearDueDate = due == nil
	}
	if fs.changed(4) {
		patch.Tags = &tags
	}
	if fs.changed(5) {
		linked := m.resolveNoteRef(v[5])
		patch.LinkedNoteID = &linked
	}
	if patch.Empty() {
		return fs.id, nil
	}
	t, err := m.tasks.Update(m.ctx, fs.id, patch)
	return t.ID, err
}

// resolveNoteRef maps a typed note reference to an id. Titles match case
// insensitively; anything else is kept as typed.
func (m Model) resolveNoteRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	for _, n := range m.notes.Notes() {
		if n.ID == ref || strings.EqualFold(noteHeading(n), ref) {
			return n.ID
		}
	}
	return ref
}

func (m Model) formPrompt() model.Result {
	if m.form == nil {
		return model.Result{}
	}
	verb := "New"
	if m.form.id != "" {
		verb = "Editing"
	}
	kind := "note"
	if m.form.kind == tabTasks {
		kind = "task"
	}
	advance := "Enter to advance"
	if m.form.multiline() {
		advance = "Enter for a new line, Tab to advance"
	}
	return model.Result{OK: true, Message: fmt.Sprintf("%s %s: %s (field %d of %d). %s, ctrl+s to save, Esc to cancel.",
		verb, kind, m.form.currentLabel(), m.form.index+1, len(m.form.values), advance)}
}

func parseDate(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}
