package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"notely/internal/config"
	"notely/internal/model"
	"notely/internal/tasks"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	activeTab     = lipgloss.NewStyle().Bold(true).Underline(true)
	inactiveTab   = lipgloss.NewStyle().Faint(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	doneStyle     = lipgloss.NewStyle().Strikethrough(true).Faint(true)
	tagStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)

	noteColors = map[string]lipgloss.Color{
		"yellow": lipgloss.Color("3"),
		"green":  lipgloss.Color("2"),
		"blue":   lipgloss.Color("4"),
		"purple": lipgloss.Color("5"),
		"pink":   lipgloss.Color("13"),
		"orange": lipgloss.Color("208"),
	}
	priorityColors = map[model.Priority]lipgloss.Color{
		model.PriorityLow:    lipgloss.Color("8"),
		model.PriorityMedium: lipgloss.Color("3"),
		model.PriorityHigh:   lipgloss.Color("1"),
	}
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("notely"))
	b.WriteString("  ")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.renderQuery()))
	b.WriteString("\n\n")

	switch {
	case m.mode == modeTags:
		b.WriteString(m.renderTagPicker())
	case m.viewLen() == 0:
		b.WriteString(fmt.Sprintf("Nothing here. Press '%s' to add one.", m.keys.Add))
		b.WriteString("\n")
	case m.tab == tabNotes:
		b.WriteString(m.renderNoteList())
	default:
		b.WriteString(m.renderTaskList())
	}

	b.WriteString("---\n")
	switch m.mode {
	case modeForm:
		b.WriteString(m.renderFormBox())
		b.WriteString("\n")
		if m.form != nil && m.form.multiline() {
			b.WriteString(m.area.View())
		} else {
			b.WriteString(m.input.View())
		}
	case modeSearch:
		b.WriteString("Search: ")
		b.WriteString(m.input.View())
	default:
		b.WriteString(m.renderDetail())
	}

	b.WriteString("\n\n")
	b.WriteString(renderStatus(m.status))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(renderHelp(m.keys)))
	return b.String()
}

func (m Model) renderTabs() string {
	ns, ts := fmt.Sprintf("Notes (%d)", len(m.notes.Notes())), fmt.Sprintf("Tasks (%d)", len(m.tasks.Tasks()))
	if m.tab == tabNotes {
		return activeTab.Render(ns) + "  " + inactiveTab.Render(ts)
	}
	return inactiveTab.Render(ns) + "  " + activeTab.Render(ts)
}

func (m Model) renderQuery() string {
	q := m.noteQ
	if m.tab == tabTasks {
		q = m.taskQ.Query
	}
	parts := []string{fmt.Sprintf("sort: %s %s", q.SortKey, q.Order)}
	if q.Search != "" {
		parts = append(parts, fmt.Sprintf("search: %q", q.Search))
	}
	if len(q.Tags) > 0 {
		parts = append(parts, "tags: "+strings.Join(q.Tags, "+"))
	}
	if m.tab == tabTasks && m.taskQ.Status != "" {
		parts = append(parts, "status: "+string(m.taskQ.Status))
	}
	return strings.Join(parts, " • ")
}

func (m Model) renderNoteList() string {
	var b strings.Builder
	for i, n := range m.nview {
		pin := "  "
		if n.IsPinned {
			pin = "★ "
		}
		swatch := " "
		if c, ok := noteColors[n.Color]; ok {
			swatch = lipgloss.NewStyle().Foreground(c).Render("■")
		}
		line := fmt.Sprintf("%s%s %s", pin, swatch, noteHeading(n))
		if len(n.Tags) > 0 {
			line += " " + tagStyle.Render("#"+strings.Join(n.Tags, " #"))
		}
		b.WriteString(m.cursorLine(i, line))
	}
	return b.String()
}

func (m Model) renderTaskList() string {
	var b strings.Builder
	for i, t := range m.tview {
		checkbox := "[ ]"
		title := t.Title
		if t.Completed {
			checkbox = "[x]"
			title = doneStyle.Render(title)
		}
		prio := lipgloss.NewStyle().Foreground(priorityColors[t.Priority]).Render(string(t.Priority))
		line := fmt.Sprintf("%s %s %s", checkbox, title, prio)
		if t.DueDate != nil {
			line += " due:" + formatDate(t.DueDate)
		}
		if len(t.Tags) > 0 {
			line += " " + tagStyle.Render("#"+strings.Join(t.Tags, " #"))
		}
		b.WriteString(m.cursorLine(i, line))
	}
	return b.String()
}

func (m Model) cursorLine(i int, line string) string {
	if i == m.cursor && m.mode == modeList {
		return selectedStyle.Render(">") + " " + line + "\n"
	}
	return "  " + line + "\n"
}

func (m Model) renderTagPicker() string {
	tags := m.availableTags()
	selected := m.active().Tags
	var b strings.Builder
	b.WriteString("Filter by tags (all selected must match)\n")
	for i, t := range tags {
		box := "[ ]"
		if model.HasTag(selected, t) {
			box = "[x]"
		}
		prefix := " "
		if i == m.tagCursor {
			prefix = ">"
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n", prefix, box, t))
	}
	return b.String()
}

func (m Model) renderFormBox() string {
	if m.form == nil {
		return ""
	}
	var b strings.Builder
	for i, name := range m.form.fields() {
		prefix := " "
		if i == m.form.index {
			prefix = ">"
		}
		val := m.form.values[i]
		if strings.TrimSpace(val) == "" {
			val = "(empty)"
		}
		b.WriteString(fmt.Sprintf("%s %-28s : %s\n", prefix, name, truncate(strings.ReplaceAll(val, "\n", " "), 60)))
	}
	return b.String()
}

func (m Model) renderDetail() string {
	if m.viewLen() == 0 {
		return "Nothing selected"
	}
	i := clampCursor(m.cursor, m.viewLen())
	var b strings.Builder
	if m.tab == tabNotes {
		n := m.nview[i]
		b.WriteString(fmt.Sprintf("Title   : %s\n", emptyPlaceholder(n.Title)))
		b.WriteString(fmt.Sprintf("Color   : %s\n", emptyPlaceholder(n.Color)))
		b.WriteString(fmt.Sprintf("Tags    : %s\n", emptyPlaceholder(strings.Join(n.Tags, ", "))))
		b.WriteString(fmt.Sprintf("Updated : %s\n", n.UpdatedAt.Local().Format("2006-01-02 15:04")))
		b.WriteString("\n")
		b.WriteString(n.Content)
		return b.String()
	}
	t := m.tview[i]
	b.WriteString(fmt.Sprintf("Title       : %s\n", t.Title))
	b.WriteString(fmt.Sprintf("Status      : %s\n", humanDone(t.Completed)))
	b.WriteString(fmt.Sprintf("Priority    : %s\n", t.Priority))
	b.WriteString(fmt.Sprintf("Due         : %s\n", emptyPlaceholder(formatDate(t.DueDate))))
	b.WriteString(fmt.Sprintf("Tags        : %s\n", emptyPlaceholder(strings.Join(t.Tags, ", "))))
	if n, ok := tasks.ResolveLinkedNote(t, m.notes.Notes()); ok {
		b.WriteString(fmt.Sprintf("Linked note : %s\n", noteHeading(n)))
	}
	if t.Description != "" {
		b.WriteString("\n")
		b.WriteString(t.Description)
	}
	return b.String()
}

func renderStatus(r model.Result) string {
	if r.Message == "" {
		return ""
	}
	if r.OK {
		return okStyle.Render(r.Message)
	}
	return errStyle.Render(r.Message)
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s add • %s edit • space pin/done • %s delete • %s search • %s tags • %s sort • %s order • %s status • %s clear • %s switch • %s quit",
		k.Up, k.Down, k.Add, k.Edit, k.Delete, k.Search, k.Tags, k.Sort, k.Order, k.Filter, k.Clear, k.Switch, k.Quit)
}

func emptyPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(empty)"
	}
	return v
}
