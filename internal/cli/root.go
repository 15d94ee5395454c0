// Package cli provides the command-line interface for jchat.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jchatbot/jchat/internal/config"
	"github.com/jchatbot/jchat/internal/session"
	"github.com/jchatbot/jchat/internal/store"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and backing store
	cfg         config.Config
	st          store.Store
	closeStore  func() error
	logger      *slog.Logger
	closeLogger func() error
	sessions    *session.Manager
)

// rootCmd represents the base command. Without a subcommand it opens the
// interactive chat.
var rootCmd = &cobra.Command{
	Use:   "jchat",
	Short: "Terminal chat client for the jchat relay server",
	Long: `JChat is a terminal AI chatbot. It keeps your conversation on disk with a
rolling five-day session window, replays the assistant's responses with a
typing animation, and talks to an LLM through the jchat-server relay.

Run without arguments to start chatting.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		// The TUI owns the terminal, so all commands log to file only.
		logger, closeLogger = config.SetupFileLogger(cfg.LogFile, level)

		var err error
		st, closeStore, err = openStore(cfg, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		sessions = session.NewManager(st, logger)
		sessions.PurgeExpired()

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeStore != nil {
			if err := closeStore(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
			}
		}
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

// openStore opens the configured store backend. The file store is the
// default; memory is for throwaway sessions, surreal for sharing one chat
// profile across machines.
func openStore(cfg config.Config, logger *slog.Logger) (store.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemory(), noop, nil

	case "surreal":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s, err := store.NewSurreal(ctx, store.SurrealConfig{
			URL:       cfg.SurrealURL,
			Namespace: cfg.SurrealNamespace,
			Database:  cfg.SurrealDatabase,
			Username:  cfg.SurrealUser,
			Password:  cfg.SurrealPass,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return s.Close(context.Background()) }, nil

	default:
		s, err := store.NewFile(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(statsCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
