package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type NoteForm struct {
	Title   string
	Content string
	Tags    []string
	Color   string
}

// NotePatch carries the fields of an edit. Nil fields are left untouched.
type NotePatch struct {
	Title   *string
	Content *string
	Tags    *[]string
	Color   *string
}

func (p NotePatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Tags == nil && p.Color == nil
}

// Apply merges p into n field by field.
func (p NotePatch) Apply(n Note) Note {
	if p.Title != nil {
		n.Title = strings.TrimSpace(*p.Title)
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Tags != nil {
		n.Tags = NormalizeTags(*p.Tags)
	}
	if p.Color != nil {
		n.Color = strings.ToLower(strings.TrimSpace(*p.Color))
	}
	return n
}

type TaskForm struct {
	Title        string
	Description  string
	Priority     Priority
	DueDate      *time.Time
	Tags         []string
	LinkedNoteID string
}

type TaskPatch struct {
	Title        *string
	Description  *string
	Completed    *bool
	Priority     *Priority
	DueDate      *time.Time
	ClearDueDate bool
	Tags         *[]string
	LinkedNoteID *string
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil && p.Priority == nil &&
		p.DueDate == nil && !p.ClearDueDate && p.Tags == nil && p.LinkedNoteID == nil
}

func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		due := p.DueDate.UTC()
		t.DueDate = &due
	}
	if p.Tags != nil {
		t.Tags = NormalizeTags(*p.Tags)
	}
	if p.LinkedNoteID != nil {
		t.LinkedNoteID = strings.TrimSpace(*p.LinkedNoteID)
	}
	return t
}

type ProfilePatch struct {
	Username *string
	Password *string
}

func ValidateNote(n Note) error {
	if strings.TrimSpace(n.Title) == "" && strings.TrimSpace(n.Content) == "" {
		return fmt.Errorf("%w: note needs a title or content", ErrValidation)
	}
	if utf8.RuneCountInString(n.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title longer than %d characters", ErrValidation, MaxTitleLength)
	}
	if utf8.RuneCountInString(n.Content) > MaxContentLength {
		return fmt.Errorf("%w: content longer than %d characters", ErrValidation, MaxContentLength)
	}
	if !ValidColor(n.Color) {
		return fmt.Errorf("%w: unknown color %q", ErrValidation, n.Color)
	}
	return nil
}

func ValidateTask(t Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: task title is required", ErrValidation)
	}
	if utf8.RuneCountInString(t.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title longer than %d characters", ErrValidation, MaxTitleLength)
	}
	if utf8.RuneCountInString(t.Description) > MaxContentLength {
		return fmt.Errorf("%w: description longer than %d characters", ErrValidation, MaxContentLength)
	}
	if _, ok := ParsePriority(string(t.Priority)); !ok {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, t.Priority)
	}
	return nil
}
