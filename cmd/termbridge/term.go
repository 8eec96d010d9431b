package main

import (
	"context"
	"os"

	"github.com/sandevgo/termbridge/internal/config"
	"github.com/sandevgo/termbridge/internal/storage/sqlite"
	"github.com/sandevgo/termbridge/internal/terminal"
	"github.com/sandevgo/termbridge/pkg/log"
	"github.com/spf13/cobra"
)

var noColor bool

var termCmd = &cobra.Command{
	Use:           "term",
	Short:         "Run the interactive terminal loop",
	Long:          `Reads commands from stdin and answers on stdout, framed by the prompt sentinel. This is the child process the bridge supervises; it also works standalone.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Setup logger. Logging goes to stderr; stdout belongs to the
		// framing protocol.
		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}
		appCfg := config.NewAppConfig(ctx)

		events, cleanup := openEvents(ctx, appCfg)
		defer cleanup()

		registry := terminal.NewRegistry()
		builtins := terminal.NewBuiltins(events, appCfg.Session)
		registry.Install(ctx, builtins.Provider(registry), terminal.PingProvider())

		loop := terminal.NewLoop(terminal.LoopConfig{
			Prompt:  appCfg.Prompt,
			Session: appCfg.Session,
			NoColor: noColor || os.Getenv("NO_COLOR") != "",
			In:      os.Stdin,
			Out:     os.Stdout,
		}, registry, events)

		return loop.Run(ctx)
	},
}

// openEvents wires the sqlite event log. A database failure degrades to
// a no-op log: the terminal keeps answering, /history and /summarize
// just come up empty.
func openEvents(ctx context.Context, cfg *config.AppConfig) (terminal.EventLog, func()) {
	logger := log.FromCtx(ctx)

	db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
	if err != nil {
		logger.Warn().Err(err).Msg("event log unavailable, running without history")
		return terminal.NopEvents(), func() {}
	}

	repo := sqlite.NewEventsRepo(db)
	if _, err := repo.Prune(ctx, cfg.LogRetention); err != nil {
		logger.Warn().Err(err).Msg("failed to prune old events")
	}

	return repo, func() { _ = db.Close() }
}

func init() {
	termCmd.Flags().BoolVar(&noColor, "no-color", false, "disable styled output")
	rootCmd.AddCommand(termCmd)
}
