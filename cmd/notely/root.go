package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"notely/internal/app"
	"notely/internal/config"
	"notely/internal/logging"
	"notely/internal/model"
	"notely/internal/ui"
	"notely/internal/watch"
)

var (
	configPath string
	token      string
	verbose    bool
	ephemeral  bool

	application *app.App
	logCloser   io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "notely",
	Short: "Personal notes and tasks in the terminal",
	Long: `notely keeps notes and tasks for several local accounts.
Run without a subcommand to open the interactive view.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return shutdown()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		user, err := application.Resume(ctx, token)
		if errors.Is(err, model.ErrUnauthenticated) {
			return fmt.Errorf("not signed in: run `notely login` or `notely register` first")
		}
		if err != nil {
			return err
		}

		var changes <-chan struct{}
		if path := application.WatchPath(); path != "" {
			w, err := watch.New(path, watch.DefaultDebounce)
			if err != nil {
				log.WithError(err).Warn("change watcher disabled")
			} else {
				watchCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				go func() {
					if err := w.Run(watchCtx); err != nil {
						log.WithError(err).Warn("change watcher stopped")
					}
				}()
				changes = w.Changed()
			}
		}
		return ui.Run(ctx, application, user, changes)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		_ = shutdown()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func shutdown() error {
	var err error
	if application != nil {
		err = application.Close()
		application = nil
	}
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
	return err
}

// currentUser resolves the signed-in user, honouring --token.
func currentUser(cmd *cobra.Command) (model.User, error) {
	u, err := application.Resume(cmd.Context(), token)
	if errors.Is(err, model.ErrUnauthenticated) {
		return model.User{}, fmt.Errorf("not signed in: run `notely login` first")
	}
	return u, err
}

// rootPreRun is attached in init: referencing rootCmd from its own
// initializer would be an initialization cycle.
func rootPreRun(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		configPath = config.ResolveConfigPath()
	}
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if ephemeral {
		cfg.Backend = config.BackendMemory
	}

	opts := logging.Options{File: cfg.LogFile, Level: cfg.LogLevel, Verbose: verbose}
	if logCloser, err = logging.Setup(opts); err != nil {
		return err
	}
	if cmd == rootCmd && cfg.LogFile == "" {
		// the interactive view owns the terminal
		logging.Discard()
	}

	application, err = app.Open(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = rootPreRun
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default: $NOTELY_CONFIG or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("NOTELY_TOKEN"), "Session token from `notely token`")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep everything in memory for this run")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}
