package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/inbucket/html2text"
	"github.com/sandevgo/termbridge/internal/core"
	"github.com/sandevgo/termbridge/pkg/retry"
)

const (
	// defaultRunTimeout bounds the /run builtin's nested subprocess.
	// The loop keeps responding either way: expiry produces an
	// ordinary reply, never a protocol-level stall.
	defaultRunTimeout = 10 * time.Second

	defaultSummarizeLimit = 5
	defaultHistoryLimit   = 10

	maxFetchSize        = 1 << 20 // 1MB
	defaultFetchTimeout = 15 * time.Second
)

// Builtins holds the dependencies of the core command set.
type Builtins struct {
	events     EventLog
	session    string
	runTimeout time.Duration
	fetcher    *http.Client
	retrier    *retry.Retrier
}

func NewBuiltins(events EventLog, session string) *Builtins {
	return &Builtins{
		events:     events,
		session:    session,
		runTimeout: defaultRunTimeout,
		fetcher:    &http.Client{Timeout: defaultFetchTimeout},
		retrier:    retry.NewDefaultRetrier(),
	}
}

// Provider returns the core command set. The help command closes over
// the registry so it reflects provider commands installed after it.
func (b *Builtins) Provider(reg *Registry) core.Provider {
	return func() ([]core.Command, error) {
		return []core.Command{
			{Name: "echo", Description: "echo arguments back", Handler: b.echo},
			{Name: "/status", Description: "basic system metrics", Handler: b.status},
			{Name: "/time", Description: "current UTC time", Handler: b.timeNow},
			{Name: "/run", Description: "run a shell command (10s bound)", Handler: b.run},
			{Name: "/summarize", Description: "last event log lines: /summarize [term [limit]]", Handler: b.summarize},
			{Name: "/history", Description: "recent commands in this session", Handler: b.history},
			{Name: "/fetch", Description: "fetch a URL as text", Handler: b.fetch},
			{Name: "/help", Description: "list available commands", Handler: b.helpFor(reg)},
		}, nil
	}
}

func (b *Builtins) echo(ctx context.Context, line string) (core.Reply, error) {
	return core.NewReply(rest(line)), nil
}

func (b *Builtins) status(ctx context.Context, line string) (core.Reply, error) {
	text := fmt.Sprintf("CPU cores: %d\nUptime: %s\nIP: %s", runtime.NumCPU(), uptime(), firstIP())
	return core.Reply{Plain: text, Rendered: okStyle.Render(text)}, nil
}

func (b *Builtins) timeNow(ctx context.Context, line string) (core.Reply, error) {
	return core.NewReply(time.Now().UTC().Format(time.RFC3339)), nil
}

func (b *Builtins) run(ctx context.Context, line string) (core.Reply, error) {
	shellCmd := strings.TrimSpace(rest(line))
	if shellCmd == "" {
		return core.NewReply("usage: /run <command>"), nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.runTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", shellCmd)
	// WaitDelay releases the output pipes even when a grandchild keeps
	// them open after the shell is killed.
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.NewReply(fmt.Sprintf("command timed out after %s", b.runTimeout)), nil
	}
	if err != nil {
		if text == "" {
			text = err.Error()
		}
		return core.Reply{Plain: text, Rendered: errStyle.Render(text)}, nil
	}
	return core.NewReply(text), nil
}

func (b *Builtins) summarize(ctx context.Context, line string) (core.Reply, error) {
	parts := strings.Fields(rest(line))

	limit := defaultSummarizeLimit
	if len(parts) > 0 {
		if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			limit = n
			parts = parts[:len(parts)-1]
		}
	}
	term := strings.Join(parts, " ")

	lines, err := b.events.Recent(ctx, term, limit)
	if err != nil {
		return core.Reply{}, fmt.Errorf("failed to read event log: %w", err)
	}
	if len(lines) == 0 {
		return core.NewReply("no matches"), nil
	}
	return core.NewReply(strings.Join(lines, "\n")), nil
}

func (b *Builtins) history(ctx context.Context, line string) (core.Reply, error) {
	limit := defaultHistoryLimit
	if arg := strings.TrimSpace(rest(line)); arg != "" {
		if n, err := strconv.Atoi(arg); err == nil {
			limit = n
		}
	}

	lines, err := b.events.Commands(ctx, b.session, limit)
	if err != nil {
		return core.Reply{}, fmt.Errorf("failed to read history: %w", err)
	}
	if len(lines) == 0 {
		return core.NewReply("no history"), nil
	}
	return core.NewReply(strings.Join(lines, "\n")), nil
}

func (b *Builtins) fetch(ctx context.Context, line string) (core.Reply, error) {
	url := strings.TrimSpace(rest(line))
	if url == "" {
		return core.NewReply("usage: /fetch <url>"), nil
	}

	var body string
	err := b.retrier.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", core.UserAgent)

		resp, err := b.fetcher.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch url: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		}

		body, err = html2text.FromReader(io.LimitReader(resp.Body, maxFetchSize), html2text.Options{
			OmitLinks:    false,
			PrettyTables: true,
		})
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		return nil
	})
	if err != nil {
		text := err.Error()
		return core.Reply{Plain: text, Rendered: errStyle.Render(text)}, nil
	}
	return core.NewReply(strings.TrimSpace(body)), nil
}

func (b *Builtins) helpFor(reg *Registry) core.Handler {
	return func(ctx context.Context, line string) (core.Reply, error) {
		var sb strings.Builder
		sb.WriteString("Commands:")
		for _, cmd := range reg.List() {
			sb.WriteString(fmt.Sprintf("\n  %s - %s", cmd.Name, cmd.Description))
		}
		return core.NewReply(sb.String()), nil
	}
}

// rest returns everything after the command token.
func rest(line string) string {
	line = strings.TrimSpace(line)
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return line[i+1:]
	}
	return ""
}

func uptime() string {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return "unknown"
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "unknown"
	}
	return fields[0] + "s"
}

// firstIP returns the first non-loopback IP address, or "unknown".
func firstIP() string {
	if conn, err := net.Dial("udp", "8.8.8.8:80"); err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			return addr.IP.String()
		}
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "unknown"
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}
	return "unknown"
}
