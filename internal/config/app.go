package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/sandevgo/termbridge/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"TB_RUNTIME_PATH" envDefault:".termbridge"`

	// Session names this process in the event log. The supervisor sets
	// it when spawning a child; a terminal run by hand stays "local".
	Session string `env:"TB_SESSION" envDefault:"local"`

	// Prompt is the framing sentinel the terminal emits when it is
	// ready for the next command. Always written at start of line.
	Prompt string `env:"TB_PROMPT" envDefault:">> "`

	// ChildCommand overrides the process the supervisor spawns. Empty
	// means re-exec the current binary with the `term` subcommand.
	ChildCommand string   `env:"TB_CHILD_CMD"`
	ChildArgs    []string `env:"TB_CHILD_ARGS" envSeparator:" "`

	// RunTimeout bounds a single command/response cycle against the
	// child. Zero disables the bound.
	RunTimeout time.Duration `env:"TB_RUN_TIMEOUT" envDefault:"60s"`

	// Transport flags
	EnableHTTP     bool `env:"ENABLE_HTTP" envDefault:"true"`
	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"false"`

	// Event log retention, enforced by the terminal at startup.
	LogRetention time.Duration `env:"TB_LOG_RETENTION" envDefault:"720h"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	// Relative runtime paths anchor to the home directory, matching
	// GetRuntimePath for callers that run before config parsing.
	if !filepath.IsAbs(c.RuntimePath) {
		home, _ := os.UserHomeDir()
		c.RuntimePath = filepath.Join(home, c.RuntimePath)
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "termbridge.db")
}

func (c AppConfig) GetUploadPath() string {
	return filepath.Join(c.RuntimePath, "upload")
}
