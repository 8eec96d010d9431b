package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sandevgo/termbridge/internal/bridge"
	"github.com/sandevgo/termbridge/internal/core"
	"github.com/sandevgo/termbridge/internal/storage/sqlite"
	"github.com/sandevgo/termbridge/pkg/log"
)

// LoopConfig wires one terminal loop instance.
type LoopConfig struct {
	Prompt  string
	Session string

	// NoColor makes the loop print plain text only. The supervisor
	// always drives its child with NoColor set so framing sees the
	// canonical payload, never ANSI sequences.
	NoColor bool

	In  io.Reader
	Out io.Writer
}

// Loop is the child-process side of the bridge: read a line, resolve it
// against the registry, execute, write the response followed by the
// sentinel prompt.
type Loop struct {
	cfg      LoopConfig
	registry *Registry
	events   EventLog
	framer   *bridge.Framer
}

func NewLoop(cfg LoopConfig, registry *Registry, events EventLog) *Loop {
	if events == nil {
		events = NopEvents()
	}
	return &Loop{
		cfg:      cfg,
		registry: registry,
		events:   events,
		framer:   bridge.NewFramer(cfg.Prompt),
	}
}

// Run drives the loop until stdin closes or an exit command arrives.
// Closed stdin is the normal shutdown path, not an error.
func (l *Loop) Run(ctx context.Context) error {
	l.record(ctx, sqlite.KindSessionStart, "")
	defer l.record(ctx, sqlite.KindSessionEnd, "")

	l.banner()
	l.prompt()

	scanner := bufio.NewScanner(l.cfg.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			l.prompt()
			continue
		}

		// exit and quit terminate without a response frame. The
		// supervisor treats process exit as the valid response.
		if isExit(line) {
			return nil
		}

		l.record(ctx, sqlite.KindUser, line)
		reply := l.execute(ctx, line)
		l.record(ctx, sqlite.KindReply, reply.Plain)

		if !reply.Silent {
			l.write(reply)
		}
		l.prompt()
	}
	return scanner.Err()
}

func (l *Loop) execute(ctx context.Context, line string) core.Reply {
	cmd, ok := l.registry.Resolve(line)
	if !ok {
		// no match falls back to echoing the input unchanged
		return core.NewReply(line)
	}

	reply, err := cmd.Handler(ctx, line)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("command", cmd.Name).Msg("command failed")
		text := "error: " + err.Error()
		return core.Reply{Plain: text, Rendered: errStyle.Render(text)}
	}
	return reply
}

func (l *Loop) banner() {
	title := fmt.Sprintf("%s %s", core.Name, core.Version)
	if !l.cfg.NoColor {
		title = bannerStyle.Render(title)
	}
	fmt.Fprintf(l.cfg.Out, "%s\ntype /help for commands, exit to leave\n", title)
}

// write emits the reply line by line, stuffing lines that would collide
// with the sentinel.
func (l *Loop) write(reply core.Reply) {
	text := reply.Rendered
	if l.cfg.NoColor {
		text = reply.Plain
	}
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintln(l.cfg.Out, l.framer.Stuff(line))
	}
}

// prompt emits the sentinel at start of line with no trailing newline.
func (l *Loop) prompt() {
	fmt.Fprint(l.cfg.Out, l.framer.Prompt())
}

func (l *Loop) record(ctx context.Context, kind, content string) {
	if err := l.events.Append(ctx, l.cfg.Session, kind, content); err != nil {
		log.FromCtx(ctx).Debug().Err(err).Str("kind", kind).Msg("event log append failed")
	}
}

func isExit(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit":
		return true
	}
	return false
}
