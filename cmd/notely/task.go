package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"notely/internal/model"
	"notely/internal/query"
	"notely/internal/tasks"
)

const dateLayout = "2006-01-02"

var (
	taskTitle       string
	taskDescription string
	taskPriority    string
	taskDue         string
	taskTags        string
	taskNote        string
	taskClearDue    bool

	listStatus   string
	listPriority string
)

var taskCmd = &cobra.Command{
	Use:     "task",
	Aliases: []string{"tasks", "t"},
	Short:   "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a task",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := currentUser(cmd)
		if err != nil {
			return err
		}
		form := model.TaskForm{
			Title:       taskTitle,
			Description: taskDescription,
			Tags:        model.SplitTags(taskTags),
		}
		p, ok := model.ParsePriority(taskPriority)
		if !ok {
			return fmt.Errorf("%w: unknown priority %q", model.ErrValidation, taskPriority)
		}
		form.Priority = p
		if form.DueDate, err = parseDue(taskDue); err != nil {
			return err
		}
		if form.LinkedNoteID, err = linkedNoteID(taskNote); err != nil {
			return err
		}
		t, err := application.Tasks.Add(cmd.Context(), u.ID, form)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created task %s\n", t.ID)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := currentUser(cmd); err != nil {
			return err
		}
		base, err := listQuery()
		if err != nil {
			return err
		}
		q := query.TaskQuery{Query: base, Status: query.StatusAll}
		if q.Status, err = query.ParseStatus(listStatus); err != nil {
			return err
		}
		if listPriority != "" {
			p, ok := model.ParsePriority(listPriority)
			if !ok {
				return fmt.Errorf("%w: unknown priority %q", model.ErrValidation, listPriority)
			}
			q.Priority = p
		}
		view := query.Tasks(application.Tasks.Tasks(), q)
		out := cmd.OutOrStdout()
		if listJSON {
			return printJSON(out, view)
		}
		notes := application.Notes.Notes()
		rows := make([][]string, 0, len(view))
		for _, t := range view {
			done := "[ ]"
			if t.Completed {
				done = "[x]"
			}
			due := ""
			if t.DueDate != nil {
				due = t.DueDate.Format(dateLayout)
			}
			linked := ""
			if n, ok := tasks.ResolveLinkedNote(t, notes); ok {
				linked = oneLine(heading(n), 20)
			}
			rows = append(rows, []string{
				shortID(t.ID), done, oneLine(t.Title, 40), string(t.Priority), due,
				strings.Join(t.Tags, ", "), linked,
			})
		}
		printTable(out, []string{"ID", "", "TITLE", "PRIORITY", "DUE", "TAGS", "NOTE"}, rows)
		s := tasks.StatsOf(view)
		fmt.Fprintf(out, "%d shown, %d done, %d pending\n", s.Total, s.Completed, s.Pending)
		return nil
	},
}

var taskEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := findTask(cmd, args[0])
		if err != nil {
			return err
		}
		var patch model.TaskPatch
		flags := cmd.Flags()
		if flags.Changed("title") {
			patch.Title = &taskTitle
		}
		if flags.Changed("description") {
			patch.Description = &taskDescription
		}
		if flags.Changed("priority") {
			p, ok := model.ParsePriority(taskPriority)
			if !ok {
				return fmt.Errorf("%w: unknown priority %q", model.ErrValidation, taskPriority)
			}
			patch.Priority = &p
		}
		if flags.Changed("due") {
			if patch.DueDate, err = parseDue(taskDue); err != nil {
				return err
			}
			patch.ClearDueDate = patch.DueDate == nil
		}
		if taskClearDue {
			patch.ClearDueDate = true
		}
		if flags.Changed("tags") {
			tags := model.SplitTags(taskTags)
			patch.Tags = &tags
		}
		if flags.Changed("note") {
			id, err := linkedNoteID(taskNote)
			if err != nil {
				return err
			}
			patch.LinkedNoteID = &id
		}
		if patch.Empty() {
			return fmt.Errorf("%w: nothing to change", model.ErrValidation)
		}
		if _, err := application.Tasks.Update(cmd.Context(), t.ID, patch); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s\n", t.ID)
		return nil
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Toggle the completion of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := findTask(cmd, args[0])
		if err != nil {
			return err
		}
		if t, err = application.Tasks.ToggleCompletion(cmd.Context(), t.ID); err != nil {
			return err
		}
		state := "pending"
		if t.Completed {
			state = "done"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked %q %s\n", t.Title, state)
		return nil
	},
}

var taskRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := findTask(cmd, args[0])
		if errors.Is(err, model.ErrNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "No task matches %q, nothing deleted\n", args[0])
			return nil
		}
		if err != nil {
			return err
		}
		if err := application.Tasks.Delete(cmd.Context(), t.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", t.Title)
		return nil
	},
}

func findTask(cmd *cobra.Command, arg string) (model.Task, error) {
	if _, err := currentUser(cmd); err != nil {
		return model.Task{}, err
	}
	all := application.Tasks.Tasks()
	ids := make([]string, len(all))
	for i, t := range all {
		ids[i] = t.ID
	}
	id, err := resolveID(arg, ids)
	if err != nil {
		return model.Task{}, err
	}
	t, _ := application.Tasks.Get(id)
	return t, nil
}

// parseDue reads a YYYY-MM-DD date. An empty value means no due date.
func parseDue(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("%w: due date must look like 2025-01-31", model.ErrValidation)
	}
	return &d, nil
}

// linkedNoteID resolves a note reference given by id, id prefix or exact title.
func linkedNoteID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	all := application.Notes.Notes()
	ids := make([]string, len(all))
	for i, n := range all {
		if strings.EqualFold(n.Title, ref) {
			return n.ID, nil
		}
		ids[i] = n.ID
	}
	return resolveID(ref, ids)
}

func addTaskFields(c *cobra.Command) {
	c.Flags().StringVar(&taskTitle, "title", "", "Task title")
	c.Flags().StringVar(&taskDescription, "description", "", "Longer description")
	c.Flags().StringVarP(&taskPriority, "priority", "p", "", "low, medium or high (default medium)")
	c.Flags().StringVar(&taskDue, "due", "", "Due date as YYYY-MM-DD")
	c.Flags().StringVar(&taskTags, "tags", "", "Comma separated tags")
	c.Flags().StringVar(&taskNote, "note", "", "Linked note id or title")
}

func init() {
	addTaskFields(taskAddCmd)
	addTaskFields(taskEditCmd)
	taskEditCmd.Flags().BoolVar(&taskClearDue, "clear-due", false, "Remove the due date")

	addListFlags(taskListCmd)
	taskListCmd.Flags().StringVar(&listStatus, "status", "all", "all, pending or completed")
	taskListCmd.Flags().StringVar(&listPriority, "priority", "", "Only show tasks with this priority")

	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskEditCmd, taskDoneCmd, taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}
