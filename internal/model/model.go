package model

import (
	"slices"
	"strings"
	"time"
)

const (
	MaxTitleLength   = 100
	MaxContentLength = 10000
)

type User struct {
	ID           string    `json:"id" yaml:"id"`
	Username     string    `json:"username" yaml:"username"`
	PasswordHash string    `json:"passwordHash,omitempty" yaml:"passwordHash,omitempty"`
	Token        string    `json:"token,omitempty" yaml:"token,omitempty"`
	CreatedAt    time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Public returns a copy of u without credentials.
func (u User) Public() User {
	u.PasswordHash = ""
	u.Token = ""
	return u
}

type Note struct {
	ID        string    `json:"id" yaml:"id"`
	UserID    string    `json:"userId" yaml:"userId"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	Tags      []string  `json:"tags" yaml:"tags"`
	IsPinned  bool      `json:"isPinned" yaml:"isPinned"`
	Color     string    `json:"color,omitempty" yaml:"color,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func ParsePriority(v string) (Priority, bool) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(v))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	case "":
		return PriorityMedium, true
	}
	return "", false
}

type Task struct {
	ID           string     `json:"id" yaml:"id"`
	UserID       string     `json:"userId" yaml:"userId"`
	Title        string     `json:"title" yaml:"title"`
	Description  string     `json:"description,omitempty" yaml:"description,omitempty"`
	Completed    bool       `json:"completed" yaml:"completed"`
	Priority     Priority   `json:"priority,omitempty" yaml:"priority,omitempty"`
	DueDate      *time.Time `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
	Tags         []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	LinkedNoteID string     `json:"linkedNoteId,omitempty" yaml:"linkedNoteId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt" yaml:"updatedAt"`
}

// Palette lists the accepted note colors. The empty string is the default.
var Palette = []string{"yellow", "green", "blue", "purple", "pink", "orange"}

func ValidColor(c string) bool {
	return c == "" || slices.Contains(Palette, c)
}

// NormalizeTags trims, drops empties and removes duplicates while keeping
// the first occurrence of each tag in place.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SplitTags parses a comma separated tag list as typed by a user.
func SplitTags(v string) []string {
	return NormalizeTags(strings.Split(v, ","))
}

func HasTag(tags []string, tag string) bool {
	return slices.Contains(tags, tag)
}
