package sharedstore

import (
	"path/filepath"
	"testing"
)

func TestAddGetMem(t *testing.T) {
	tbl := New[int]("callgraph")
	tbl.Add("h1", "//pkg:t1", 42)

	v, ok := tbl.Get("//pkg:t1")
	if !ok || v != 42 {
		t.Fatalf("Get = %v, %v, want 42, true", v, ok)
	}
	if !tbl.Mem("//pkg:t1") {
		t.Error("expected Mem true")
	}
	if tbl.Mem("//pkg:missing") {
		t.Error("expected Mem false for missing key")
	}
}

func TestRemoveBatch(t *testing.T) {
	tbl := New[string]("hierarchy")
	tbl.Add("h1", "a", "x")
	tbl.Add("h1", "b", "y")
	tbl.RemoveBatch("h1", []string{"a"})

	if tbl.Mem("a") {
		t.Error("expected a to be removed")
	}
	if !tbl.Mem("b") {
		t.Error("expected b to remain")
	}
}

func TestGetBatch(t *testing.T) {
	tbl := New[int]("x")
	tbl.Add("h1", "a", 1)
	tbl.Add("h1", "b", 2)

	got := tbl.GetBatch([]string{"a", "b", "c"})
	if len(got) != 2 || got["a"] != 1 || got["b"] != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestAlistRoundTrip(t *testing.T) {
	tbl := New[int]("x")
	tbl.Add("h1", "b", 2)
	tbl.Add("h1", "a", 1)

	alist := tbl.ToAlist()
	if len(alist) != 2 || alist[0].Key != "a" || alist[1].Key != "b" {
		t.Fatalf("unexpected alist order: %+v", alist)
	}

	fresh := New[int]("x")
	fresh.OfAlist(alist)
	if fresh.Len() != 2 {
		t.Fatalf("Len = %d, want 2", fresh.Len())
	}
}

func TestNamespaceIsolation(t *testing.T) {
	a := New[int]("callgraph")
	b := New[int]("hierarchy")

	a.Add("h1", "x", 1)
	b.Add("h1", "x", 2)

	va, _ := a.Get("x")
	vb, _ := b.Get("x")
	if va != 1 || vb != 2 {
		t.Fatalf("expected independent namespaces, got a.x=%d b.x=%d", va, vb)
	}
}

func TestHandleTableTrackUntrack(t *testing.T) {
	ht := NewHandleTable()
	ht.Track("h1", "a")
	ht.Track("h1", "b")

	keys := ht.Keys("h1")
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("Keys = %v", keys)
	}

	ht.Untrack("h1", "a")
	keys = ht.Keys("h1")
	if len(keys) != 1 || keys[0] != "b" {
		t.Fatalf("Keys after untrack = %v", keys)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	tbl := New[int]("callgraph")
	tbl.Add("h1", "a", 1)
	tbl.Add("h1", "b", 2)

	path := filepath.Join(t.TempDir(), "snapshot.json")
	tbl.Save(path, "v1", nil)

	fresh := New[int]("callgraph")
	result := fresh.Load(path, "v1")
	if result.Outcome != LoadOK {
		t.Fatalf("Load outcome = %v, err = %v", result.Outcome, result.Err)
	}
	if fresh.Len() != 2 {
		t.Fatalf("Len = %d, want 2", fresh.Len())
	}
}

func TestLoadStaleVersion(t *testing.T) {
	tbl := New[int]("callgraph")
	tbl.Add("h1", "a", 1)

	path := filepath.Join(t.TempDir(), "snapshot.json")
	tbl.Save(path, "v1", nil)

	fresh := New[int]("callgraph")
	result := fresh.Load(path, "v2")
	if result.Outcome != LoadUnusedStale {
		t.Fatalf("expected LoadUnusedStale, got %v", result.Outcome)
	}
	if fresh.Len() != 0 {
		t.Error("expected a stale load to leave the table empty")
	}
}

func TestLoadMissingFile(t *testing.T) {
	fresh := New[int]("callgraph")
	result := fresh.Load(filepath.Join(t.TempDir(), "missing.json"), "v1")
	if result.Outcome != LoadUnusedError || result.Err == nil {
		t.Fatalf("expected LoadUnusedError with an error, got %+v", result)
	}
}

func TestSaveSwallowsErrorsAndLogs(t *testing.T) {
	tbl := New[int]("callgraph")
	tbl.Add("h1", "a", 1)

	var logged error
	// A directory path as the destination makes os.WriteFile fail.
	tbl.Save(t.TempDir(), "v1", func(err error) { logged = err })
	if logged == nil {
		t.Fatal("expected a logged save error")
	}
}
