package bridge

import (
	"bufio"
	"bytes"
	"strings"
)

// Framer implements the prompt-framing protocol shared by the terminal
// loop (writer side) and the supervisor (reader side). A response frame
// is everything up to the sentinel prompt, which the terminal only emits
// at start of line when it is ready for the next command.
//
// Payload lines that could collide with the sentinel are stuffed: the
// terminal prepends one extra copy of the prompt's first byte to any
// line beginning with the prompt's command prefix, and ReadFrame strips
// it back out. Framing therefore never misfires on payload content.
type Framer struct {
	prompt []byte

	// stuffPrefix is the prompt minus trailing spaces (">>" for the
	// default ">> " prompt). Lines starting with it get stuffed.
	stuffPrefix string
}

func NewFramer(prompt string) *Framer {
	return &Framer{
		prompt:      []byte(prompt),
		stuffPrefix: strings.TrimRight(prompt, " "),
	}
}

func (f *Framer) Prompt() string {
	return string(f.prompt)
}

// Stuff escapes one payload line before it is written to the stream.
func (f *Framer) Stuff(line string) string {
	if f.stuffPrefix != "" && strings.HasPrefix(line, f.stuffPrefix) {
		return string(f.prompt[0]) + line
	}
	return line
}

func (f *Framer) unstuff(line string) string {
	if f.stuffPrefix == "" {
		return line
	}
	if strings.HasPrefix(line, string(f.prompt[0])+f.stuffPrefix) {
		return line[1:]
	}
	return line
}

// ReadFrame accumulates bytes until the buffer's trailing slice equals
// the sentinel at start of line, then returns the payload with the
// sentinel discarded and stuffing reversed. The read is byte-by-byte:
// the child's output is not assumed to be line-buffered, and the
// sentinel may arrive in any number of chunks.
//
// When the stream ends before a sentinel is seen, whatever partial
// payload accumulated is returned together with ErrStreamClosed.
func (f *Framer) ReadFrame(br *bufio.Reader) (string, error) {
	var buf []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			return f.payload(buf), ErrStreamClosed
		}
		buf = append(buf, b)
		if f.sentinelAt(buf) {
			return f.payload(buf[:len(buf)-len(f.prompt)]), nil
		}
	}
}

// sentinelAt reports whether buf ends with the sentinel positioned at
// the start of a line.
func (f *Framer) sentinelAt(buf []byte) bool {
	if !bytes.HasSuffix(buf, f.prompt) {
		return false
	}
	if len(buf) == len(f.prompt) {
		return true
	}
	return buf[len(buf)-len(f.prompt)-1] == '\n'
}

func (f *Framer) payload(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	lines := strings.Split(string(buf), "\n")
	for i, line := range lines {
		lines[i] = f.unstuff(line)
	}
	return strings.Join(lines, "\n")
}
