package terminal

import (
	"context"
	"sort"
	"strings"

	"github.com/sandevgo/termbridge/internal/core"
	"github.com/sandevgo/termbridge/pkg/log"
)

// Registry maps a command token to its handler. It is owned by the
// loop's goroutine and never shared, so access is unsynchronized.
type Registry struct {
	commands map[string]core.Command
}

func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]core.Command),
	}
}

// Register inserts or overwrites. A later registration for the same
// name wins, so a provider may deliberately shadow a core command.
// Empty names are ignored; the handler is not invoked.
func (r *Registry) Register(cmd core.Command) {
	if cmd.Name == "" {
		return
	}
	r.commands[cmd.Name] = cmd
}

// Resolve splits the input on the first whitespace run and looks up the
// leading token. The caller falls back to the echo handler when there
// is no match.
func (r *Registry) Resolve(line string) (core.Command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return core.Command{}, false
	}
	cmd, ok := r.commands[fields[0]]
	return cmd, ok
}

// List returns every command sorted by name, for deterministic help
// output.
func (r *Registry) List() []core.Command {
	res := make([]core.Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		res = append(res, cmd)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Completions returns the names matching prefix, sorted; these feed tab
// completion in interactive front ends.
func (r *Registry) Completions(prefix string) []string {
	var names []string
	for name := range r.commands {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Install runs each provider in order and registers what it returns. A
// failing provider is logged and skipped: the terminal starts without
// its commands rather than not at all.
func (r *Registry) Install(ctx context.Context, providers ...core.Provider) {
	for _, provider := range providers {
		cmds, err := provider()
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("command provider failed, skipping")
			continue
		}
		for _, cmd := range cmds {
			r.Register(cmd)
		}
	}
}
