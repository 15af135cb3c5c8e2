package account

import (
	"cmp"
	"slices"
	"time"

	"notely/internal/model"
	"notely/internal/tasks"
)

const (
	recentWindow = 7 * 24 * time.Hour
	topTagLimit  = 5
)

// Achievement is a milestone shown on the profile overview.
type Achievement struct {
	Title       string
	Description string
	Achieved    bool
}

type TagCount struct {
	Tag   string
	Count int
}

// Summary is the profile overview of one user.
type Summary struct {
	Username          string
	JoinDate          time.Time
	TotalNotes        int
	TotalTasks        int
	CompletedTasks    int
	PendingTasks      int
	RecentNotes       int
	RecentTasks       int
	ProductivityScore int
	TopTags           []TagCount
	// LastActivity is zero when the user has nothing stored.
	LastActivity time.Time
	Achievements []Achievement
}

// Summarize computes the overview from the user's notes and tasks. Records are
// recent when created within the last seven days before now.
func Summarize(u model.User, notes []model.Note, ts []model.Task, now time.Time) Summary {
	stats := tasks.StatsOf(ts)
	s := Summary{
		Username:          u.Username,
		JoinDate:          u.CreatedAt,
		TotalNotes:        len(notes),
		TotalTasks:        stats.Total,
		CompletedTasks:    stats.Completed,
		PendingTasks:      stats.Pending,
		ProductivityScore: stats.CompletionRate,
	}
	since := now.Add(-recentWindow)

	counts := map[string]int{}
	for _, n := range notes {
		if n.CreatedAt.After(since) {
			s.RecentNotes++
		}
		if n.UpdatedAt.After(s.LastActivity) {
			s.LastActivity = n.UpdatedAt
		}
		for _, tag := range n.Tags {
			counts[tag]++
		}
	}
	for _, t := range ts {
		if t.CreatedAt.After(since) {
			s.RecentTasks++
		}
		if t.UpdatedAt.After(s.LastActivity) {
			s.LastActivity = t.UpdatedAt
		}
	}

	for tag, c := range counts {
		s.TopTags = append(s.TopTags, TagCount{Tag: tag, Count: c})
	}
	slices.SortFunc(s.TopTags, func(a, b TagCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Tag, b.Tag)
	})
	if len(s.TopTags) > topTagLimit {
		s.TopTags = s.TopTags[:topTagLimit]
	}
	s.Achievements = achievements(s, len(counts))
	return s
}

func achievements(s Summary, distinctTags int) []Achievement {
	return []Achievement{
		{Title: "First step", Description: "Created a first note", Achieved: s.TotalNotes > 0},
		{Title: "Organizer", Description: "Created 10 notes", Achieved: s.TotalNotes >= 10},
		{Title: "Productive", Description: "Completed 5 tasks", Achieved: s.CompletedTasks >= 5},
		{Title: "Consistent", Description: "Active in the last 7 days", Achieved: s.RecentNotes > 0 || s.RecentTasks > 0},
		{Title: "Tag master", Description: "Used 5 different tags", Achieved: distinctTags >= 5},
	}
}
