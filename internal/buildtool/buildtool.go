// Package buildtool wraps invocation of the external build tool that
// drives target queries and artifact generation. It is a narrow command
// interface: it knows nothing about targets, source databases, or build
// maps beyond passing their JSON through unchanged.
package buildtool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
)

// Options carries the mode and isolation-prefix knobs forwarded unchanged
// to every query/build invocation.
type Options struct {
	Mode            string
	IsolationPrefix string
}

// Tool wraps one external build tool binary.
type Tool struct {
	Command   string
	TailLines int
}

// New constructs a Tool. tailLines bounds how many trailing lines of
// stderr are retained and surfaced on failure; 0 selects a sane default.
func New(command string, tailLines int) *Tool {
	if tailLines <= 0 {
		tailLines = 200
	}
	return &Tool{Command: command, TailLines: tailLines}
}

// Query issues a "query" invocation: it resolves target patterns to
// concrete targets or attribute bags, returning the tool's raw JSON.
func (t *Tool) Query(ctx context.Context, args []string, opts Options) ([]byte, error) {
	return t.run(ctx, "query", args, opts)
}

// Build issues a "build" invocation: it forces artifact generation and
// returns JSON describing per-target source-database file locations.
func (t *Tool) Build(ctx context.Context, args []string, opts Options) ([]byte, error) {
	return t.run(ctx, "build", args, opts)
}

func (t *Tool) run(ctx context.Context, family string, args []string, opts Options) ([]byte, error) {
	fullArgs := make([]string, 0, len(args)+4)
	fullArgs = append(fullArgs, family)
	fullArgs = append(fullArgs, args...)
	if opts.Mode != "" {
		fullArgs = append(fullArgs, "--mode", opts.Mode)
	}
	if opts.IsolationPrefix != "" {
		fullArgs = append(fullArgs, "--isolation-prefix", opts.IsolationPrefix)
	}

	cmd := exec.CommandContext(ctx, t.Command, fullArgs...)
	var stdout bytes.Buffer
	tail := newTailBuffer(t.TailLines)
	cmd.Stdout = &stdout
	cmd.Stderr = tail

	if err := cmd.Run(); err != nil {
		return nil, t.wrapRunError(fullArgs, err, tail.Lines())
	}
	return stdout.Bytes(), nil
}

func (t *Tool) wrapRunError(args []string, err error, logs []string) error {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		rep := buildtrackerrors.New(buildtrackerrors.TUL003,
			fmt.Sprintf("build tool %q could not be started: %v", t.Command, execErr.Err))
		rep.Data = map[string]any{
			"command": t.Command,
			"args":    args,
			"logs":    logs,
		}
		return buildtrackerrors.WrapReport(rep)
	}

	var exitErr *exec.ExitError
	code := -1
	signaled := false
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			signaled = true
		} else {
			code = exitErr.ExitCode()
		}
	}

	data := map[string]any{
		"command": t.Command,
		"args":    args,
		"logs":    logs,
	}

	if signaled {
		rep := buildtrackerrors.New(buildtrackerrors.TUL002,
			fmt.Sprintf("build tool %q was terminated by a signal", t.Command))
		rep.Data = data
		return buildtrackerrors.WrapReport(rep)
	}

	data["exit_code"] = code
	rep := buildtrackerrors.New(buildtrackerrors.TUL001,
		fmt.Sprintf("build tool %q exited with status %d", t.Command, code))
	rep.Data = data
	return buildtrackerrors.WrapReport(rep)
}

// tailBuffer is an io.Writer that retains only the last n lines written to
// it, for bounded diagnostic capture on tool failure.
type tailBuffer struct {
	max   int
	lines []string
	buf   bytes.Buffer
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n, _ := b.buf.Write(p)
	for {
		line, err := b.buf.ReadString('\n')
		if err != nil {
			// Put back the partial line for the next Write call.
			b.buf.Reset()
			b.buf.WriteString(line)
			break
		}
		b.appendLine(strings.TrimSuffix(line, "\n"))
	}
	return n, nil
}

func (b *tailBuffer) appendLine(line string) {
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

// Lines returns the retained tail, including any unterminated final line.
func (b *tailBuffer) Lines() []string {
	if b.buf.Len() == 0 {
		return b.lines
	}
	return append(append([]string{}, b.lines...), b.buf.String())
}
