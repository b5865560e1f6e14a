// Package sandbox executes tools against a confined filesystem root.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Executor executes tools by name within a single root directory.
// Containment is strict by default: every resolved path must lie within
// the root. AllowOutsideRoot restores the absolute-path escape hatch for
// deployments that gate outside access through the approval policy alone.
type Executor struct {
	root         string
	allowOutside bool
}

// Option configures an Executor.
type Option func(*Executor)

// AllowOutsideRoot disables the containment check for absolute path
// arguments. Relative paths are still resolved against the root.
func AllowOutsideRoot() Option {
	return func(e *Executor) { e.allowOutside = true }
}

// New creates an executor rooted at root, creating the directory if it
// does not exist. Creation is idempotent.
func New(root string, opts ...Option) (*Executor, error) {
	abs, err := filepath.Abs(expandHome(root))
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create sandbox root: %w", err)
	}

	e := &Executor{root: abs}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Root returns the absolute sandbox root directory.
func (e *Executor) Root() string { return e.root }

// IsSafePath reports whether the given path, once normalized and with
// symlinks resolved, lies within the sandbox root.
func (e *Executor) IsSafePath(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return isSubpath(resolveSymlinks(abs), resolveSymlinks(e.root))
}

// resolve turns a filename argument into an absolute path. Relative
// names are joined to the root and normalized; absolute names are used
// as-is. Unless the outside-root escape hatch is enabled, any path that
// ends up outside the root is rejected.
func (e *Executor) resolve(name string) (string, error) {
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(e.root, p)
	}
	p = filepath.Clean(p)

	if !e.allowOutside && !e.IsSafePath(p) {
		return "", fmt.Errorf("%q: %w", name, ErrOutsideRoot)
	}
	return p, nil
}

// Execute runs the named tool and returns its result payload.
func (e *Executor) Execute(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "system.time":
		return e.systemTime()
	case "files.write":
		return e.filesWrite(stringArg(args, "filename"), stringArg(args, "content"))
	case "files.read":
		return e.filesRead(stringArg(args, "filename"))
	case "files.delete":
		return e.filesDelete(stringArg(args, "filename"))
	case "files.copy":
		return e.filesCopy(stringArg(args, "source"), stringArg(args, "dest"))
	case "files.move":
		return e.filesMove(stringArg(args, "source"), stringArg(args, "dest"))
	case "files.list":
		return e.filesList(stringArg(args, "path"))
	case "apps.open":
		return e.appsOpen(stringArg(args, "app"))
	case "privilege.request":
		// Privilege requests never execute a grant. They only mark that
		// an action of this shape must flow through approval.
		return map[string]any{"status": "pending_approval"}, nil
	default:
		return nil, fmt.Errorf("%q: %w", tool, ErrUnknownTool)
	}
}

func (e *Executor) systemTime() (map[string]any, error) {
	now := time.Now().UTC()
	return map[string]any{
		"now_iso": now.Format(time.RFC3339),
		"unix":    now.Unix(),
	}, nil
}

func (e *Executor) filesWrite(filename, content string) (map[string]any, error) {
	path, err := e.resolve(filename)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", filename, err)
	}
	return map[string]any{"bytes_written": len(content)}, nil
}

func (e *Executor) filesRead(filename string) (map[string]any, error) {
	path, err := e.resolve(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", filename, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return map[string]any{"text": string(data)}, nil
}

func (e *Executor) filesDelete(filename string) (map[string]any, error) {
	path, err := e.resolve(filename)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", filename, ErrNotFound)
	}
	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("delete %s: %w", filename, err)
	}
	return map[string]any{"deleted": true}, nil
}

func (e *Executor) filesCopy(source, dest string) (map[string]any, error) {
	srcPath, err := e.resolve(source)
	if err != nil {
		return nil, err
	}
	dstPath, err := e.resolve(dest)
	if err != nil {
		return nil, err
	}

	src, err := os.Open(srcPath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", source, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", source, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}
	dst, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", dest, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return nil, fmt.Errorf("copy %s to %s: %w", source, dest, err)
	}
	return map[string]any{"copied": true}, nil
}

func (e *Executor) filesMove(source, dest string) (map[string]any, error) {
	srcPath, err := e.resolve(source)
	if err != nil {
		return nil, err
	}
	dstPath, err := e.resolve(dest)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(srcPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", source, ErrNotFound)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return nil, fmt.Errorf("move %s to %s: %w", source, dest, err)
	}
	return map[string]any{"moved": true}, nil
}

func (e *Executor) filesList(path string) (map[string]any, error) {
	target := e.root
	if path != "" {
		resolved, err := e.resolve(path)
		if err != nil {
			return nil, err
		}
		target = resolved
	}

	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		// A missing directory is an empty listing, not an error.
		return map[string]any{"entries": []string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotADirectory)
	}

	dirEntries, err := os.ReadDir(target)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	entries := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		entries = append(entries, de.Name())
	}
	sort.Strings(entries)
	return map[string]any{"entries": entries}, nil
}

func (e *Executor) appsOpen(app string) (map[string]any, error) {
	// No process is spawned; application launch is simulated by contract.
	return map[string]any{
		"opened": true,
		"app":    app,
		"note":   "application launch is simulated in this version",
	}, nil
}

// stringArg extracts a string argument, tolerating missing keys and
// non-string values from the fallback interpreter.
func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
