package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"notely/internal/model"
)

var (
	authUsername string
	authPassword string
	newUsername  string
	newPassword  string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := passwordFrom(cmd, authPassword)
		if err != nil {
			return err
		}
		u, err := application.Auth.Register(cmd.Context(), authUsername, pw)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Welcome, %s.\n", u.Username)
		fmt.Fprintf(out, "Recovery token: %s\n", u.Token)
		fmt.Fprintln(out, "Keep it safe: it signs you in without a password and changes on every login.")
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with username and password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := passwordFrom(cmd, authPassword)
		if err != nil {
			return err
		}
		u, err := application.Auth.Login(cmd.Context(), authUsername, pw)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\nNew recovery token: %s\n", u.Username, u.Token)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Auth.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := currentUser(cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s), member since %s\n", u.Username, u.ID, u.CreatedAt.Local().Format("2006-01-02"))
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover <token>",
	Short: "Sign in with a recovery token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := application.Auth.Recover(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", u.Username)
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Change username or password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch model.ProfilePatch
		if cmd.Flags().Changed("username") {
			patch.Username = &newUsername
		}
		if cmd.Flags().Changed("password") {
			patch.Password = &newPassword
		}
		if patch.Username == nil && patch.Password == nil {
			return fmt.Errorf("%w: nothing to change, pass --username or --password", model.ErrValidation)
		}
		u, err := application.Auth.UpdateProfile(cmd.Context(), patch)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Profile updated for %s.\n", u.Username)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a session token for scripts (use with --token or NOTELY_TOKEN)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := currentUser(cmd)
		if err != nil {
			return err
		}
		tok, err := application.Auth.IssueToken(u)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

// passwordFrom returns the flag value, or the first line of stdin.
func passwordFrom(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringVarP(&authUsername, "username", "u", "", "Username")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "Password (read from stdin when omitted)")
		c.MarkFlagRequired("username")
	}
	profileCmd.Flags().StringVar(&newUsername, "username", "", "New username")
	profileCmd.Flags().StringVar(&newPassword, "password", "", "New password")

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd, recoverCmd, profileCmd, tokenCmd)
}
