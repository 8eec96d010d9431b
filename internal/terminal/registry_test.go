package terminal

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/sandevgo/termbridge/internal/core"
)

func replyWith(text string) core.Handler {
	return func(ctx context.Context, line string) (core.Reply, error) {
		return core.NewReply(text), nil
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register(core.Command{Name: "/status", Description: "status", Handler: replyWith("ok")})
	reg.Register(core.Command{Name: "/help", Description: "help", Handler: replyWith("help")})
	reg.Install(context.Background(), PingProvider())

	tests := []struct {
		name     string
		line     string
		wantName string
		wantOK   bool
	}{
		{name: "exact match", line: "/status", wantName: "/status", wantOK: true},
		{name: "plugin command with args", line: "/ping extra args", wantName: "/ping", wantOK: true},
		{name: "leading whitespace", line: "  /help  ", wantName: "/help", wantOK: true},
		{name: "unknown command", line: "/unknown", wantOK: false},
		{name: "empty line", line: "", wantOK: false},
		{name: "blank line", line: "   ", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := reg.Resolve(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if ok && cmd.Name != tt.wantName {
				t.Errorf("Resolve(%q) = %q, want %q", tt.line, cmd.Name, tt.wantName)
			}
		})
	}
}

func TestRegistry_LaterRegistrationShadows(t *testing.T) {
	reg := NewRegistry()
	reg.Register(core.Command{Name: "/ping", Description: "core", Handler: replyWith("core")})
	reg.Register(core.Command{Name: "/ping", Description: "plugin", Handler: replyWith("plugin")})

	cmd, ok := reg.Resolve("/ping")
	if !ok {
		t.Fatal("expected /ping to resolve")
	}
	reply, err := cmd.Handler(context.Background(), "/ping")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Plain != "plugin" {
		t.Errorf("shadowed handler returned %q, want %q", reply.Plain, "plugin")
	}
	if got := len(reg.List()); got != 1 {
		t.Errorf("List() has %d entries, want 1", got)
	}
}

func TestRegistry_RegisterIgnoresEmptyName(t *testing.T) {
	reg := NewRegistry()
	reg.Register(core.Command{Name: "", Handler: replyWith("x")})

	if got := len(reg.List()); got != 0 {
		t.Errorf("List() has %d entries, want 0", got)
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(core.Command{Name: "/time", Handler: replyWith("")})
	reg.Register(core.Command{Name: "/help", Handler: replyWith("")})
	reg.Register(core.Command{Name: "echo", Handler: replyWith("")})

	var names []string
	for _, cmd := range reg.List() {
		names = append(names, cmd.Name)
	}
	want := []string{"/help", "/time", "echo"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("List() order = %v, want %v", names, want)
	}
}

func TestRegistry_Completions(t *testing.T) {
	reg := NewRegistry()
	reg.Register(core.Command{Name: "/status", Handler: replyWith("")})
	reg.Register(core.Command{Name: "/summarize", Handler: replyWith("")})
	reg.Register(core.Command{Name: "/time", Handler: replyWith("")})

	tests := []struct {
		prefix string
		want   []string
	}{
		{prefix: "/s", want: []string{"/status", "/summarize"}},
		{prefix: "/t", want: []string{"/time"}},
		{prefix: "/", want: []string{"/status", "/summarize", "/time"}},
		{prefix: "/x", want: nil},
	}

	for _, tt := range tests {
		if got := reg.Completions(tt.prefix); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Completions(%q) = %v, want %v", tt.prefix, got, tt.want)
		}
	}
}

// A provider that fails is skipped; the others still install.
func TestRegistry_InstallSkipsFailingProvider(t *testing.T) {
	broken := func() ([]core.Command, error) {
		return nil, errors.New("import failed")
	}

	reg := NewRegistry()
	reg.Install(context.Background(), broken, PingProvider())

	if _, ok := reg.Resolve("/ping"); !ok {
		t.Error("expected /ping from the healthy provider")
	}
	if got := len(reg.List()); got != 1 {
		t.Errorf("List() has %d entries, want 1", got)
	}
}
