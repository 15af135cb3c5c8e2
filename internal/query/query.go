// Package query derives the ordered, filtered views shown to the user from a
// user's notes and tasks. Every function is pure: inputs are never modified.
package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"notely/internal/model"
)

type SortKey string

const (
	SortCreatedAt SortKey = "createdAt"
	SortUpdatedAt SortKey = "updatedAt"
	SortTitle     SortKey = "title"
)

type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

type Status string

const (
	StatusAll       Status = "all"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Query describes a derived view. The zero value sorts by updatedAt desc.
type Query struct {
	Search  string
	Tags    []string
	SortKey SortKey
	Order   Order
	// Locale is a BCP 47 tag used for title comparison; empty means root collation.
	Locale string
}

type TaskQuery struct {
	Query
	Status   Status
	Priority model.Priority
}

func ParseSortKey(v string) (SortKey, error) {
	switch k := SortKey(strings.TrimSpace(v)); k {
	case SortCreatedAt, SortUpdatedAt, SortTitle:
		return k, nil
	case "":
		return SortUpdatedAt, nil
	}
	return "", fmt.Errorf("%w: unknown sort key %q", model.ErrValidation, v)
}

func ParseOrder(v string) (Order, error) {
	switch o := Order(strings.ToLower(strings.TrimSpace(v))); o {
	case Asc, Desc:
		return o, nil
	case "":
		return Desc, nil
	}
	return "", fmt.Errorf("%w: unknown sort order %q", model.ErrValidation, v)
}

func ParseStatus(v string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(v))); s {
	case StatusAll, StatusPending, StatusCompleted:
		return s, nil
	case "":
		return StatusAll, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", model.ErrValidation, v)
}

// NextSortKey cycles createdAt -> updatedAt -> title.
func NextSortKey(k SortKey) SortKey {
	switch k {
	case SortCreatedAt:
		return SortUpdatedAt
	case SortUpdatedAt:
		return SortTitle
	default:
		return SortCreatedAt
	}
}

func (o Order) Toggle() Order {
	if o == Asc {
		return Desc
	}
	return Asc
}

// Notes filters and sorts notes, then moves pinned notes ahead of unpinned
// ones. The pin pass runs after the sort so each group keeps the requested order.
func Notes(items []model.Note, q Query) []model.Note {
	term := strings.ToLower(q.Search)
	out := make([]model.Note, 0, len(items))
	for _, n := range items {
		if term != "" && !matchesAny(term, n.Tags, n.Title, n.Content) {
			continue
		}
		if !hasAllTags(n.Tags, q.Tags) {
			continue
		}
		out = append(out, n)
	}

	sortBy(out, q, func(n model.Note) (string, time.Time, time.Time) {
		return n.Title, n.CreatedAt, n.UpdatedAt
	})

	pinned := make([]model.Note, 0, len(out))
	unpinned := make([]model.Note, 0, len(out))
	for _, n := range out {
		if n.IsPinned {
			pinned = append(pinned, n)
		} else {
			unpinned = append(unpinned, n)
		}
	}
	return append(pinned, unpinned...)
}

func Tasks(items []model.Task, q TaskQuery) []model.Task {
	term := strings.ToLower(q.Search)
	out := make([]model.Task, 0, len(items))
	for _, t := range items {
		if term != "" && !matchesAny(term, t.Tags, t.Title, t.Description) {
			continue
		}
		if !hasAllTags(t.Tags, q.Tags) {
			continue
		}
		switch q.Status {
		case StatusPending:
			if t.Completed {
				continue
			}
		case StatusCompleted:
			if !t.Completed {
				continue
			}
		}
		if q.Priority != "" && t.Priority != q.Priority {
			continue
		}
		out = append(out, t)
	}

	sortBy(out, q.Query, func(t model.Task) (string, time.Time, time.Time) {
		return t.Title, t.CreatedAt, t.UpdatedAt
	})
	return out
}

// AllTags is the sorted, deduplicated union of the notes' tags.
func AllTags(notes []model.Note) []string {
	set := make(map[string]struct{})
	for _, n := range notes {
		for _, t := range n.Tags {
			set[t] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func AllTaskTags(tasks []model.Task) []string {
	set := make(map[string]struct{})
	for _, t := range tasks {
		for _, tag := range t.Tags {
			set[tag] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// ToggleTag adds tag to the selection or removes it when already selected.
func ToggleTag(selected []string, tag string) []string {
	if i := slices.Index(selected, tag); i >= 0 {
		return slices.Delete(slices.Clone(selected), i, i+1)
	}
	return append(slices.Clone(selected), tag)
}

func matchesAny(term string, tags []string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return false
}

func hasAllTags(tags, selected []string) bool {
	for _, want := range selected {
		if !slices.Contains(tags, want) {
			return false
		}
	}
	return true
}

func sortBy[T any](items []T, q Query, keys func(T) (string, time.Time, time.Time)) {
	var compare func(a, b T) int
	switch q.SortKey {
	case SortTitle:
		col := collate.New(localeTag(q.Locale))
		compare = func(a, b T) int {
			ta, _, _ := keys(a)
			tb, _, _ := keys(b)
			return col.CompareString(ta, tb)
		}
	case SortCreatedAt:
		compare = func(a, b T) int {
			_, ca, _ := keys(a)
			_, cb, _ := keys(b)
			return ca.Compare(cb)
		}
	default:
		compare = func(a, b T) int {
			_, _, ua := keys(a)
			_, _, ub := keys(b)
			return ua.Compare(ub)
		}
	}
	if q.Order == Asc {
		slices.SortStableFunc(items, compare)
		return
	}
	slices.SortStableFunc(items, func(a, b T) int { return -compare(a, b) })
}

func localeTag(v string) language.Tag {
	if v == "" {
		return language.Und
	}
	tag, err := language.Parse(v)
	if err != nil {
		return language.Und
	}
	return tag
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.SortFunc(out, cmp.Compare[string])
	return out
}
