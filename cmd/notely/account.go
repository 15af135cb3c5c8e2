package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"notely/internal/account"
	"notely/internal/model"
)

var (
	exportFormat string
	exportOut    string
	importFormat string
	wipeYes      bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show an overview of your notes and tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := currentUser(cmd)
		if err != nil {
			return err
		}
		s := account.Summarize(u, application.Notes.Notes(), application.Tasks.Tasks(), time.Now())
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s, member since %s\n\n", s.Username, s.JoinDate.Local().Format(dateLayout))
		fmt.Fprintf(out, "Notes:        %d (%d this week)\n", s.TotalNotes, s.RecentNotes)
		fmt.Fprintf(out, "Tasks:        %d (%d this week)\n", s.TotalTasks, s.RecentTasks)
		fmt.Fprintf(out, "Completed:    %d\n", s.CompletedTasks)
		fmt.Fprintf(out, "Pending:      %d\n", s.PendingTasks)
		fmt.Fprintf(out, "Productivity: %d%%\n", s.ProductivityScore)
		if !s.LastActivity.IsZero() {
			fmt.Fprintf(out, "Last active:  %s\n", s.LastActivity.Local().Format("2006-01-02 15:04"))
		}
		if len(s.TopTags) > 0 {
			tags := make([]string, len(s.TopTags))
			for i, tc := range s.TopTags {
				tags[i] = fmt.Sprintf("%s (%d)", tc.Tag, tc.Count)
			}
			fmt.Fprintf(out, "Top tags:     %s\n", strings.Join(tags, ", "))
		}
		fmt.Fprintln(out, "\nAchievements:")
		for _, a := range s.Achievements {
			mark := "[ ]"
			if a.Achieved {
				mark = "[x]"
			}
			fmt.Fprintf(out, "  %s %s: %s\n", mark, a.Title, a.Description)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write your notes and tasks to a backup file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := currentUser(cmd)
		if err != nil {
			return err
		}
		format, err := account.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		data, err := application.Account.Export(cmd.Context(), u.ID, format)
		if err != nil {
			return err
		}
		if exportOut == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		path := exportOut
		if path == "" {
			path = account.BackupName(u.Username, time.Now(), format)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge a backup file into your account (use - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := currentUser(cmd)
		if err != nil {
			return err
		}
		format := account.DetectFormat(args[0])
		if importFormat != "" {
			if format, err = account.ParseFormat(importFormat); err != nil {
				return err
			}
		}
		var data []byte
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("read backup: %w", err)
		}
		rep, err := application.Account.Import(cmd.Context(), u.ID, data, format)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", rep)
		return nil
	},
}

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all of your notes and tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !wipeYes {
			return fmt.Errorf("%w: this deletes every note and task you own, pass --yes to confirm", model.ErrValidation)
		}
		u, err := currentUser(cmd)
		if err != nil {
			return err
		}
		notesRemoved, tasksRemoved, err := application.Account.Wipe(cmd.Context(), u.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d notes and %d tasks\n", notesRemoved, tasksRemoved)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "json or yaml")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file, - for stdout (default notely-backup-<user>-<date>.<format>)")
	importCmd.Flags().StringVarP(&importFormat, "format", "f", "", "json or yaml (default from the file extension)")
	wipeCmd.Flags().BoolVar(&wipeYes, "yes", false, "Confirm the deletion")

	rootCmd.AddCommand(statsCmd, exportCmd, importCmd, wipeCmd)
}
