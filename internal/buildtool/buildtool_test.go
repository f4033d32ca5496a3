package buildtool

import (
	"context"
	"testing"

	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
)

func TestQuerySuccess(t *testing.T) {
	tool := New("echo", 10)
	out, err := tool.Query(context.Background(), []string{"hello"}, Options{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if string(out) != "query hello\n" {
		t.Errorf("output = %q, want %q", out, "query hello\n")
	}
}

func TestQueryForwardsModeAndIsolationPrefix(t *testing.T) {
	tool := New("echo", 10)
	out, err := tool.Query(context.Background(), []string{"//pkg:all"}, Options{Mode: "opt", IsolationPrefix: "lsp"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	want := "query //pkg:all --mode opt --isolation-prefix lsp\n"
	if string(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestCommandNotFound(t *testing.T) {
	tool := New("definitely-not-a-real-build-tool-binary", 10)
	_, err := tool.Query(context.Background(), nil, Options{})
	if err == nil {
		t.Fatal("expected an error for a nonexistent command")
	}
	rep, ok := buildtrackerrors.AsReport(err)
	if !ok {
		t.Fatalf("expected a structured Report, got %v", err)
	}
	if rep.Code != buildtrackerrors.TUL003 {
		t.Errorf("Code = %s, want %s", rep.Code, buildtrackerrors.TUL003)
	}
}

func TestNonZeroExit(t *testing.T) {
	tool := New("false", 10)
	_, err := tool.Build(context.Background(), nil, Options{})
	if err == nil {
		t.Fatal("expected an error for a non-zero exit")
	}
	rep, ok := buildtrackerrors.AsReport(err)
	if !ok {
		t.Fatalf("expected a structured Report, got %v", err)
	}
	if rep.Code != buildtrackerrors.TUL001 {
		t.Errorf("Code = %s, want %s", rep.Code, buildtrackerrors.TUL001)
	}
	if rep.Data["exit_code"] != 1 {
		t.Errorf("exit_code = %v, want 1", rep.Data["exit_code"])
	}
}

func TestTailBufferBoundsLines(t *testing.T) {
	tail := newTailBuffer(2)
	tail.Write([]byte("line1\nline2\nline3\n"))
	lines := tail.Lines()
	if len(lines) != 2 || lines[0] != "line2" || lines[1] != "line3" {
		t.Errorf("Lines() = %v, want [line2 line3]", lines)
	}
}
