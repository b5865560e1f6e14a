package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	e, err := New(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e
}

func execute(t *testing.T, e *Executor, tool string, args map[string]any) map[string]any {
	t.Helper()
	res, err := e.Execute(context.Background(), tool, args)
	if err != nil {
		t.Fatalf("Execute(%s) failed: %v", tool, err)
	}
	return res
}

func TestNew_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "sandbox")

	e, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	info, err := os.Stat(e.Root())
	if err != nil || !info.IsDir() {
		t.Fatalf("root %s not created: %v", e.Root(), err)
	}

	// Second creation is idempotent.
	if _, err := New(root); err != nil {
		t.Fatalf("repeated New failed: %v", err)
	}
}

func TestSystemTime(t *testing.T) {
	e := newTestExecutor(t)

	res := execute(t, e, "system.time", nil)

	iso, ok := res["now_iso"].(string)
	if !ok {
		t.Fatalf("now_iso = %v, want string", res["now_iso"])
	}
	if _, err := time.Parse(time.RFC3339, iso); err != nil {
		t.Errorf("now_iso %q not RFC3339: %v", iso, err)
	}
	unix, ok := res["unix"].(int64)
	if !ok || unix <= 0 {
		t.Errorf("unix = %v, want positive int64", res["unix"])
	}
}

func TestWriteReadRoundtrip(t *testing.T) {
	e := newTestExecutor(t)

	res := execute(t, e, "files.write", map[string]any{
		"filename": "notes.txt",
		"content":  "hello",
	})
	if res["bytes_written"] != 5 {
		t.Errorf("bytes_written = %v, want 5", res["bytes_written"])
	}

	res = execute(t, e, "files.read", map[string]any{"filename": "notes.txt"})
	if res["text"] != "hello" {
		t.Errorf("text = %v, want hello", res["text"])
	}
}

func TestWrite_CreatesParentDirectories(t *testing.T) {
	e := newTestExecutor(t)

	execute(t, e, "files.write", map[string]any{
		"filename": "a/b/c.txt",
		"content":  "deep",
	})

	data, err := os.ReadFile(filepath.Join(e.Root(), "a", "b", "c.txt"))
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(data) != "deep" {
		t.Errorf("content = %q, want deep", data)
	}
}

func TestRead_Missing(t *testing.T) {
	e := newTestExecutor(t)

	_, err := e.Execute(context.Background(), "files.read", map[string]any{"filename": "missing.txt"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	e := newTestExecutor(t)
	execute(t, e, "files.write", map[string]any{"filename": "x.txt", "content": "x"})

	res := execute(t, e, "files.delete", map[string]any{"filename": "x.txt"})
	if res["deleted"] != true {
		t.Errorf("deleted = %v, want true", res["deleted"])
	}
	if _, err := os.Stat(filepath.Join(e.Root(), "x.txt")); !os.IsNotExist(err) {
		t.Error("file still exists after delete")
	}

	_, err := e.Execute(context.Background(), "files.delete", map[string]any{"filename": "x.txt"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestCopy(t *testing.T) {
	e := newTestExecutor(t)
	execute(t, e, "files.write", map[string]any{"filename": "src.txt", "content": "payload"})

	res := execute(t, e, "files.copy", map[string]any{"source": "src.txt", "dest": "sub/dst.txt"})
	if res["copied"] != true {
		t.Errorf("copied = %v, want true", res["copied"])
	}

	for _, name := range []string{"src.txt", filepath.Join("sub", "dst.txt")} {
		data, err := os.ReadFile(filepath.Join(e.Root(), name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(data) != "payload" {
			t.Errorf("%s content = %q, want payload", name, data)
		}
	}

	_, err := e.Execute(context.Background(), "files.copy", map[string]any{"source": "nope.txt", "dest": "d.txt"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("copy missing source err = %v, want ErrNotFound", err)
	}
}

func TestMove(t *testing.T) {
	e := newTestExecutor(t)
	execute(t, e, "files.write", map[string]any{"filename": "src.txt", "content": "payload"})

	res := execute(t, e, "files.move", map[string]any{"source": "src.txt", "dest": "moved.txt"})
	if res["moved"] != true {
		t.Errorf("moved = %v, want true", res["moved"])
	}
	if _, err := os.Stat(filepath.Join(e.Root(), "src.txt")); !os.IsNotExist(err) {
		t.Error("source still exists after move")
	}
	data, err := os.ReadFile(filepath.Join(e.Root(), "moved.txt"))
	if err != nil || string(data) != "payload" {
		t.Errorf("moved content = %q, err = %v", data, err)
	}

	_, err = e.Execute(context.Background(), "files.move", map[string]any{"source": "gone.txt", "dest": "d.txt"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("move missing source err = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	e := newTestExecutor(t)
	execute(t, e, "files.write", map[string]any{"filename": "b.txt", "content": "b"})
	execute(t, e, "files.write", map[string]any{"filename": "a.txt", "content": "a"})

	res := execute(t, e, "files.list", nil)
	want := []string{"a.txt", "b.txt"}
	if !reflect.DeepEqual(res["entries"], want) {
		t.Errorf("entries = %v, want %v", res["entries"], want)
	}
}

func TestList_MissingDirectoryIsEmpty(t *testing.T) {
	e := newTestExecutor(t)

	res := execute(t, e, "files.list", map[string]any{"path": "nope"})
	entries, ok := res["entries"].([]string)
	if !ok || len(entries) != 0 {
		t.Errorf("entries = %v, want empty list", res["entries"])
	}
}

func TestList_FileIsNotADirectory(t *testing.T) {
	e := newTestExecutor(t)
	execute(t, e, "files.write", map[string]any{"filename": "f.txt", "content": "f"})

	_, err := e.Execute(context.Background(), "files.list", map[string]any{"path": "f.txt"})
	if !errors.Is(err, ErrNotADirectory) {
		t.Errorf("err = %v, want ErrNotADirectory", err)
	}
}

func TestContainment(t *testing.T) {
	e := newTestExecutor(t)
	outside := filepath.Join(t.TempDir(), "outside.txt")

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"relative escape write", "files.write", map[string]any{"filename": "../escape.txt", "content": "x"}},
		{"relative escape read", "files.read", map[string]any{"filename": "../../etc/hosts"}},
		{"absolute outside write", "files.write", map[string]any{"filename": outside, "content": "x"}},
		{"absolute outside list", "files.list", map[string]any{"path": string(filepath.Separator)}},
		{"copy dest escape", "files.copy", map[string]any{"source": "src.txt", "dest": "../dst.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Execute(context.Background(), tt.tool, tt.args)
			if !errors.Is(err, ErrOutsideRoot) {
				t.Errorf("err = %v, want ErrOutsideRoot", err)
			}
		})
	}
}

func TestAllowOutsideRoot(t *testing.T) {
	e := newTestExecutor(t, AllowOutsideRoot())
	outside := filepath.Join(t.TempDir(), "outside.txt")

	execute(t, e, "files.write", map[string]any{"filename": outside, "content": "escaped"})

	data, err := os.ReadFile(outside)
	if err != nil || string(data) != "escaped" {
		t.Errorf("outside write content = %q, err = %v", data, err)
	}

	res := execute(t, e, "files.read", map[string]any{"filename": outside})
	if res["text"] != "escaped" {
		t.Errorf("text = %v, want escaped", res["text"])
	}
}

func TestIsSafePath(t *testing.T) {
	e := newTestExecutor(t)

	if !e.IsSafePath(e.Root()) {
		t.Error("root itself must be safe")
	}
	if !e.IsSafePath(filepath.Join(e.Root(), "child.txt")) {
		t.Error("child path must be safe")
	}
	if e.IsSafePath(filepath.Dir(e.Root())) {
		t.Error("parent of root must not be safe")
	}
}

func TestAppsOpen(t *testing.T) {
	e := newTestExecutor(t)

	res := execute(t, e, "apps.open", map[string]any{"app": "calculator"})
	if res["opened"] != true || res["app"] != "calculator" {
		t.Errorf("result = %v", res)
	}
}

func TestPrivilegeRequest(t *testing.T) {
	e := newTestExecutor(t)

	res := execute(t, e, "privilege.request", map[string]any{"target_path": "/opt"})
	if res["status"] != "pending_approval" {
		t.Errorf("status = %v, want pending_approval", res["status"])
	}
}

func TestUnknownTool(t *testing.T) {
	e := newTestExecutor(t)

	_, err := e.Execute(context.Background(), "system.shutdown", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("err = %v, want ErrUnknownTool", err)
	}
}

func TestStringArg_ToleratesNonStrings(t *testing.T) {
	e := newTestExecutor(t)

	// Fallback interpreters can hand back numbers where strings are
	// expected; the executor stringifies instead of panicking.
	execute(t, e, "files.write", map[string]any{"filename": "42", "content": 7})

	res := execute(t, e, "files.read", map[string]any{"filename": "42"})
	if res["text"] != "7" {
		t.Errorf("text = %v, want 7", res["text"])
	}
}
