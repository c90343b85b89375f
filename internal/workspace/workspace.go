// Package workspace locates and initializes the reserved .parcelcore
// directory at a project root, the on-disk home for the persisted request
// graph, the object cache, and logs.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Workspace describes the reserved .parcelcore directory at a project root.
type Workspace struct {
	ProjectRoot string
	Dir         string
	CacheDir    string
	GraphDir    string
	LogsDir     string
	ConfigPath  string
}

var (
	ErrInvalidProjectRoot    = errors.New("invalid project root")
	ErrInvalidWorkspace      = errors.New("invalid .parcelcore workspace")
	ErrUnauthorizedWorkspace = errors.New("unauthorized entry in .parcelcore")
	ErrWorkspaceCollision    = errors.New("workspace path exists but is not a directory")
)

// DetectProjectRoot returns the current working directory. parcelcore is
// always invoked from the project root; there is no environment-derived
// discovery of a root above it.
func DetectProjectRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("detect project root: %w", err)
	}
	if wd == "" {
		return "", ErrInvalidProjectRoot
	}
	return wd, nil
}

// EnsureWorkspace validates and, if necessary, creates the .parcelcore
// workspace under projectRoot (the current directory if projectRoot is
// empty). Any entry under the workspace other than the known subdirectories
// and config.yaml is rejected as a sign the directory is not ours.
func EnsureWorkspace(projectRoot string) (Workspace, error) {
	root := projectRoot
	if root == "" {
		var err error
		root, err = DetectProjectRoot()
		if err != nil {
			return Workspace{}, err
		}
	}

	dir := filepath.Join(root, ".parcelcore")
	ws := Workspace{
		ProjectRoot: root,
		Dir:         dir,
		CacheDir:    filepath.Join(dir, "cache"),
		GraphDir:    filepath.Join(dir, "graph"),
		LogsDir:     filepath.Join(dir, "logs"),
		ConfigPath:  filepath.Join(dir, "config.yaml"),
	}

	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return Workspace{}, fmt.Errorf("%w: %s", ErrWorkspaceCollision, dir)
	case err == nil:
		if err := validateTopLevel(dir); err != nil {
			return Workspace{}, err
		}
	case os.IsNotExist(err):
		if err := os.Mkdir(dir, 0o755); err != nil {
			return Workspace{}, fmt.Errorf("create workspace dir: %w", err)
		}
	default:
		return Workspace{}, fmt.Errorf("stat workspace dir: %w", err)
	}

	for _, d := range []string{ws.CacheDir, ws.GraphDir, ws.LogsDir} {
		if err := ensureDir(d); err != nil {
			return Workspace{}, err
		}
	}
	return ws, nil
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%w: %s exists but is not a directory", ErrInvalidWorkspace, path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat dir %s: %w", path, err)
	}
	return os.MkdirAll(path, 0o755)
}

func validateTopLevel(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read workspace dir: %w", err)
	}
	for _, entry := range entries {
		switch entry.Name() {
		case "cache", "graph", "logs":
			if !entry.IsDir() {
				return fmt.Errorf("%w: %s must be a directory", ErrInvalidWorkspace, filepath.Join(dir, entry.Name()))
			}
		case "config.yaml":
			if entry.IsDir() {
				return fmt.Errorf("%w: %s must be a file", ErrInvalidWorkspace, filepath.Join(dir, entry.Name()))
			}
		default:
			return fmt.Errorf("%w: %s", ErrUnauthorizedWorkspace, filepath.Join(dir, entry.Name()))
		}
	}
	return nil
}
