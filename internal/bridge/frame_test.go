package bridge

import (
	"bufio"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

func TestFramer_ReadFrame(t *testing.T) {
	tests := []struct {
		name    string
		prompt  string
		input   string
		want    string
		wantErr error
	}{
		{
			name:   "simple frame",
			prompt: ">> ",
			input:  "hello\n>> ",
			want:   "hello\n",
		},
		{
			name:   "banner only",
			prompt: ">> ",
			input:  ">> ",
			want:   "",
		},
		{
			name:   "multi line payload",
			prompt: ">> ",
			input:  "one\ntwo\nthree\n>> ",
			want:   "one\ntwo\nthree\n",
		},
		{
			name:   "stuffed sentinel line unstuffed",
			prompt: ">> ",
			input:  "a\n>>> b\n>> ",
			want:   "a\n>> b\n",
		},
		{
			name:   "stuffed triple chevron line unstuffed",
			prompt: ">> ",
			input:  ">>>> x\n>> ",
			want:   ">>> x\n",
		},
		{
			name:   "sentinel bytes mid line are payload",
			prompt: ">> ",
			input:  "x>> y\nok\n>> ",
			want:   "x>> y\nok\n",
		},
		{
			name:    "stream closed before sentinel",
			prompt:  ">> ",
			input:   "partial output\n",
			want:    "partial output\n",
			wantErr: ErrStreamClosed,
		},
		{
			name:    "empty stream",
			prompt:  ">> ",
			input:   "",
			want:    "",
			wantErr: ErrStreamClosed,
		},
		{
			name:   "custom prompt",
			prompt: "$ ",
			input:  "done\n$ ",
			want:   "done\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(tt.prompt)
			got, err := f.ReadFrame(bufio.NewReader(strings.NewReader(tt.input)))

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("payload = %q, want %q", got, tt.want)
			}
		})
	}
}

// The child's output is not line-buffered: the sentinel may arrive one
// byte at a time and framing must still fire exactly once.
func TestFramer_ReadFrame_ByteAtATime(t *testing.T) {
	f := NewFramer(">> ")
	r := bufio.NewReader(iotest.OneByteReader(strings.NewReader("slow output\n>> ")))

	got, err := f.ReadFrame(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "slow output\n" {
		t.Errorf("payload = %q, want %q", got, "slow output\n")
	}
}

func TestFramer_ReadFrame_SentinelNeverInPayload(t *testing.T) {
	f := NewFramer(">> ")
	r := bufio.NewReader(strings.NewReader("echo hello\n>> "))

	got, err := f.ReadFrame(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, ">> ") {
		t.Errorf("payload %q contains the sentinel", got)
	}
}

func TestFramer_Stuff(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{name: "prompt prefixed line", line: ">> hi", want: ">>> hi"},
		{name: "bare prefix", line: ">>x", want: ">>>x"},
		{name: "already chevroned", line: ">>> x", want: ">>>> x"},
		{name: "plain line", line: "plain", want: "plain"},
		{name: "single chevron", line: "> x", want: "> x"},
		{name: "empty line", line: "", want: ""},
	}

	f := NewFramer(">> ")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Stuff(tt.line); got != tt.want {
				t.Errorf("Stuff(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

// Stuff followed by a framed read must round-trip every line unchanged.
func TestFramer_StuffRoundTrip(t *testing.T) {
	lines := []string{">> fake prompt", ">>> deep", "normal", ">>tight", "> single"}

	f := NewFramer(">> ")
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(f.Stuff(line))
		sb.WriteByte('\n')
	}
	sb.WriteString(">> ")

	got, err := f.ReadFrame(bufio.NewReader(strings.NewReader(sb.String())))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := strings.Join(lines, "\n") + "\n"
	if got != want {
		t.Errorf("round trip = %q, want %q", got, want)
	}
}
