package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"notely/internal/model"
	"notely/internal/query"
)

var (
	noteTitle   string
	noteContent string
	noteTags    string
	noteColor   string

	listSearch string
	listTags   []string
	listSort   string
	listOrder  string
	listJSON   bool
)

var noteCmd = &cobra.Command{
	Use:     "note",
	Aliases: []string{"notes", "n"},
	Short:   "Manage notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a note",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := currentUser(cmd)
		if err != nil {
			return err
		}
		n, err := application.Notes.Add(cmd.Context(), u.ID, model.NoteForm{
			Title:   noteTitle,
			Content: noteContent,
			Tags:    model.SplitTags(noteTags),
			Color:   noteColor,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created note %s\n", n.ID)
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List notes, pinned first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := currentUser(cmd); err != nil {
			return err
		}
		q, err := listQuery()
		if err != nil {
			return err
		}
		view := query.Notes(application.Notes.Notes(), q)
		out := cmd.OutOrStdout()
		if listJSON {
			return printJSON(out, view)
		}
		rows := make([][]string, 0, len(view))
		for _, n := range view {
			pin := ""
			if n.IsPinned {
				pin = "★"
			}
			rows = append(rows, []string{
				shortID(n.ID), pin, oneLine(heading(n), 40), strings.Join(n.Tags, ", "), n.Color,
				n.UpdatedAt.Local().Format("2006-01-02 15:04"),
			})
		}
		printTable(out, []string{"ID", "", "TITLE", "TAGS", "COLOR", "UPDATED"}, rows)
		return nil
	},
}

var noteShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := findNote(cmd, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n\n%s\n", heading(n), n.Content)
		if len(n.Tags) > 0 {
			fmt.Fprintf(out, "\ntags: %s\n", strings.Join(n.Tags, ", "))
		}
		return nil
	},
}

var noteEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := findNote(cmd, args[0])
		if err != nil {
			return err
		}
		var patch model.NotePatch
		flags := cmd.Flags()
		if flags.Changed("title") {
			patch.Title = &noteTitle
		}
		if flags.Changed("content") {
			patch.Content = &noteContent
		}
		if flags.Changed("tags") {
			tags := model.SplitTags(noteTags)
			patch.Tags = &tags
		}
		if flags.Changed("color") {
			patch.Color = &noteColor
		}
		if patch.Empty() {
			return fmt.Errorf("%w: nothing to change", model.ErrValidation)
		}
		if _, err := application.Notes.Update(cmd.Context(), n.ID, patch); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated note %s\n", n.ID)
		return nil
	},
}

var notePinCmd = &cobra.Command{
	Use:   "pin <id>",
	Short: "Toggle the pinned flag of a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := findNote(cmd, args[0])
		if err != nil {
			return err
		}
		if n, err = application.Notes.TogglePin(cmd.Context(), n.ID); err != nil {
			return err
		}
		state := "Unpinned"
		if n.IsPinned {
			state = "Pinned"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %q\n", state, heading(n))
		return nil
	},
}

var noteRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a note",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := findNote(cmd, args[0])
		if errors.Is(err, model.ErrNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "No note matches %q, nothing deleted\n", args[0])
			return nil
		}
		if err != nil {
			return err
		}
		if err := application.Notes.Delete(cmd.Context(), n.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", heading(n))
		return nil
	},
}

var noteTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the tags used by your notes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := currentUser(cmd); err != nil {
			return err
		}
		for _, t := range query.AllTags(application.Notes.Notes()) {
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
		return nil
	},
}

func findNote(cmd *cobra.Command, arg string) (model.Note, error) {
	if _, err := currentUser(cmd); err != nil {
		return model.Note{}, err
	}
	all := application.Notes.Notes()
	ids := make([]string, len(all))
	for i, n := range all {
		ids[i] = n.ID
	}
	id, err := resolveID(arg, ids)
	if err != nil {
		return model.Note{}, err
	}
	n, _ := application.Notes.Get(id)
	return n, nil
}

func heading(n model.Note) string {
	if strings.TrimSpace(n.Title) != "" {
		return n.Title
	}
	line, _, _ := strings.Cut(n.Content, "\n")
	return line
}

// listQuery builds the shared part of a list query from flags and config.
func listQuery() (query.Query, error) {
	q := application.DefaultQuery()
	q.Search = listSearch
	q.Tags = model.NormalizeTags(listTags)
	if listSort != "" {
		k, err := query.ParseSortKey(listSort)
		if err != nil {
			return q, err
		}
		q.SortKey = k
	}
	if listOrder != "" {
		o, err := query.ParseOrder(listOrder)
		if err != nil {
			return q, err
		}
		q.Order = o
	}
	return q, nil
}

func addListFlags(c *cobra.Command) {
	c.Flags().StringVarP(&listSearch, "search", "s", "", "Case-insensitive search term")
	c.Flags().StringSliceVarP(&listTags, "tag", "t", nil, "Only show items carrying every given tag")
	c.Flags().StringVar(&listSort, "sort", "", "Sort key: createdAt, updatedAt or title")
	c.Flags().StringVar(&listOrder, "order", "", "Sort order: asc or desc")
	c.Flags().BoolVar(&listJSON, "json", false, "Print JSON instead of a table")
}

func addNoteFields(c *cobra.Command) {
	c.Flags().StringVar(&noteTitle, "title", "", "Note title")
	c.Flags().StringVar(&noteContent, "content", "", "Note body")
	c.Flags().StringVar(&noteTags, "tags", "", "Comma separated tags")
	c.Flags().StringVar(&noteColor, "color", "", "One of: "+strings.Join(model.Palette, ", "))
}

func init() {
	addNoteFields(noteAddCmd)
	addNoteFields(noteEditCmd)
	addListFlags(noteListCmd)

	noteCmd.AddCommand(noteAddCmd, noteListCmd, noteShowCmd, noteEditCmd, notePinCmd, noteRmCmd, noteTagsCmd)
	rootCmd.AddCommand(noteCmd)
}
