// Package shell implements an interactive query REPL over a module
// tracker and its indexed build map: lookup_qualifier, lookup_artifact
// and show_code for diagnosing a build, plus set_override/reset_override
// for staging unsaved editor-buffer content against an attached overlay.
package shell

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"

	"github.com/sunholo/buildtrack/internal/buildmap"
	"github.com/sunholo/buildtrack/internal/builder"
	"github.com/sunholo/buildtrack/internal/modpath"
	"github.com/sunholo/buildtrack/internal/moduletracker"
	"github.com/sunholo/buildtrack/internal/overlay"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	dim   = color.New(color.Faint).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
)

// Tracker is the subset of a module tracker the shell queries. An
// *overlay.Overlay satisfies this too, so the shell can serve
// show_code reads against unsaved overlay content without the caller
// needing a separate code path.
type Tracker interface {
	LookUpQualifier(q string) moduletracker.LookupResult
	CodeOfModulePath(mp modpath.ModulePath, absPath string) (string, error)
}

// Shell is an interactive query REPL.
type Shell struct {
	Tracker      Tracker
	Overlay      *overlay.Overlay // optional; enables set_override/reset_override
	Index        *buildmap.Indexed
	SourceRoot   string
	ArtifactRoot string
	HistoryFile  string
	Out          io.Writer
}

// New constructs a Shell over tracker/idx with the default history-file
// location.
func New(tracker Tracker, idx *buildmap.Indexed, sourceRoot, artifactRoot string) *Shell {
	return &Shell{
		Tracker:      tracker,
		Index:        idx,
		SourceRoot:   sourceRoot,
		ArtifactRoot: artifactRoot,
		HistoryFile:  filepath.Join(os.TempDir(), ".buildtrack_history"),
		Out:          os.Stdout,
	}
}

// Run drives the interactive prompt until the user quits or EOF/Ctrl-D.
func (s *Shell) Run() error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(s.HistoryFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}

	fmt.Fprintln(s.Out, dim("commands: lookup_qualifier <q>, lookup_artifact <path>, show_code <q>, set_override <path> <code...>, reset_override <path>, :quit"))

	for {
		input, err := line.Prompt(cyan("buildtrack> "))
		if err != nil {
			break
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if input == ":quit" || input == ":q" {
			break
		}
		s.Handle(input)
	}

	if f, err := os.Create(s.HistoryFile); err == nil {
		_, _ = line.WriteHistory(f)
		f.Close()
	}
	return nil
}

// Handle executes one command line, writing its result to s.Out. It is
// exported directly so tests can drive the shell without a terminal.
func (s *Shell) Handle(input string) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "lookup_qualifier":
		if len(fields) != 2 {
			fmt.Fprintln(s.Out, red("usage: lookup_qualifier <qualifier>"))
			return
		}
		s.lookupQualifier(fields[1])

	case "lookup_artifact":
		if len(fields) != 2 {
			fmt.Fprintln(s.Out, red("usage: lookup_artifact <absolute-source-path>"))
			return
		}
		s.lookupArtifact(fields[1])

	case "show_code":
		if len(fields) != 2 {
			fmt.Fprintln(s.Out, red("usage: show_code <qualifier>"))
			return
		}
		s.showCode(fields[1])

	case "set_override":
		if len(fields) < 3 {
			fmt.Fprintln(s.Out, red("usage: set_override <artifact-path> <code...>"))
			return
		}
		s.setOverride(fields[1], strings.Join(fields[2:], " "))

	case "reset_override":
		if len(fields) != 2 {
			fmt.Fprintln(s.Out, red("usage: reset_override <artifact-path>"))
			return
		}
		s.setOverrideChange(fields[1], overlay.Change{Kind: overlay.ResetCode})

	default:
		fmt.Fprintf(s.Out, "%s unknown command: %s\n", red("error"), fields[0])
	}
}

func (s *Shell) lookupQualifier(q string) {
	res := s.Tracker.LookUpQualifier(q)
	switch res.Kind {
	case moduletracker.LookupExplicit:
		fmt.Fprintf(s.Out, "%s %s -> %s\n", green("explicit"), q, describe(*res.Explicit))
	case moduletracker.LookupImplicit:
		fmt.Fprintf(s.Out, "%s %s (namespace package)\n", green("implicit"), q)
	default:
		fmt.Fprintf(s.Out, "%s %s\n", red("not found"), q)
	}
}

func (s *Shell) showCode(q string) {
	res := s.Tracker.LookUpQualifier(q)
	if res.Kind != moduletracker.LookupExplicit {
		fmt.Fprintf(s.Out, "%s %s has no source to show\n", red("error"), q)
		return
	}
	absPath := filepath.Join(s.SourceRoot, res.Explicit.Raw.RelPath)
	code, err := s.Tracker.CodeOfModulePath(*res.Explicit, absPath)
	if err != nil {
		fmt.Fprintf(s.Out, "%s %v\n", red("error"), err)
		return
	}
	fmt.Fprintln(s.Out, code)
}

func (s *Shell) setOverride(artifactPath, content string) {
	s.setOverrideChange(artifactPath, overlay.Change{Kind: overlay.NewCode, Content: content})
}

func (s *Shell) setOverrideChange(artifactPath string, change overlay.Change) {
	if s.Overlay == nil {
		fmt.Fprintln(s.Out, red("no overlay attached to this session"))
		return
	}
	updates, err := s.Overlay.UpdateOverlaidCode([]overlay.ArtifactChange{{ArtifactPath: artifactPath, Change: change}})
	if err != nil {
		fmt.Fprintf(s.Out, "%s %v\n", red("error"), err)
		return
	}
	for _, u := range updates {
		fmt.Fprintf(s.Out, "%s %s\n", green("overlaid"), u.Qualifier)
	}
}

func (s *Shell) lookupArtifact(sourcePath string) {
	artifactPath, ok := builder.ArtifactPathForSource(s.Index, s.SourceRoot, s.ArtifactRoot, sourcePath)
	if !ok {
		fmt.Fprintln(s.Out, red("no artifact owns that source path"))
		return
	}
	fmt.Fprintln(s.Out, green(artifactPath))
}

func describe(mp modpath.ModulePath) string {
	if mp.IsStub {
		return mp.Raw.RelPath + " (stub)"
	}
	return mp.Raw.RelPath
}
