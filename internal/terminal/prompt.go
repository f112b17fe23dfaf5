// Package terminal asks the operator to approve a tool call.
//
// The prompt is written to and read from the controlling terminal
// (/dev/tty), not stdin/stdout, which may carry hook payloads or a proxied
// protocol stream.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const ttyPath = "/dev/tty"

// ErrNoTerminal is returned when no controlling terminal can be opened.
var ErrNoTerminal = errors.New("no interactive terminal")

// Request describes the call awaiting confirmation.
type Request struct {
	ToolName string
	Args     string
	Reason   string
}

// Prompter asks yes/no questions, defaulting to no.
type Prompter struct {
	in  io.Reader
	out io.Writer
}

// New returns a Prompter bound to the controlling terminal.
func New() *Prompter {
	return &Prompter{}
}

// NewWithIO returns a Prompter using the given streams (for testing). A
// Confirm cancelled while waiting closes in unless it takes read deadlines.
func NewWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

// Interactive reports whether a human can be asked.
func (p *Prompter) Interactive() bool {
	if p.in != nil {
		return true
	}
	f, err := os.OpenFile(ttyPath, os.O_RDWR, 0)
	if err != nil {
		return false
	}
	defer f.Close()
	return term.IsTerminal(int(f.Fd()))
}

// Confirm shows req and waits for an answer. Only "y" or "yes" approve;
// anything else, including end of input, denies. The wait is unbounded
// unless ctx is cancelled first.
func (p *Prompter) Confirm(ctx context.Context, req Request) (bool, error) {
	in, out := p.in, p.out
	if in == nil {
		f, err := os.OpenFile(ttyPath, os.O_RDWR, 0)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrNoTerminal, err)
		}
		defer f.Close()
		in, out = f, f
	}
	if out == nil {
		out = io.Discard
	}

	fmt.Fprintln(out, render(out, req))
	fmt.Fprint(out, "Allow this action? [y/N] ")

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(in).ReadString('\n')
		answer <- line
	}()

	select {
	case <-ctx.Done():
		interrupt(in)
		fmt.Fprintln(out)
		return false, ctx.Err()
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			fmt.Fprintln(out, "Approved.")
			return true, nil
		default:
			fmt.Fprintln(out, "Denied.")
			return false, nil
		}
	}
}

func render(out io.Writer, req Request) string {
	r := lipgloss.NewRenderer(out)
	title := r.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	label := r.NewStyle().Faint(true)
	box := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("214")).
		Padding(0, 1)

	lines := []string{
		title.Render("mayi: approval required"),
		label.Render("tool:   ") + req.ToolName,
	}
	if req.Args != "" {
		lines = append(lines, label.Render("args:   ")+truncate(req.Args, 400))
	}
	if req.Reason != "" {
		lines = append(lines, label.Render("reason: ")+req.Reason)
	}
	return box.Render(strings.Join(lines, "\n"))
}

// interrupt unblocks a read pending on in: through a read deadline when in
// supports one, otherwise by closing it.
func interrupt(in io.Reader) {
	if d, ok := in.(interface{ SetReadDeadline(time.Time) error }); ok {
		if err := d.SetReadDeadline(time.Now()); err == nil {
			return
		}
	}
	if c, ok := in.(io.Closer); ok {
		c.Close()
	}
}

// truncate shortens s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
