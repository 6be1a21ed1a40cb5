package fs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"ev-go/internal/ev"
	"ev-go/internal/vaulterr"
)

// OSFilesystemManager resolves evidence source paths on the real filesystem.
type OSFilesystemManager struct {
	ignore []string // patterns from config, applied to every directory import
}

func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: ignorePatterns}
}

// Resolve makes rawPath absolute and accepts regular files and directories
// only. Symlinks are rejected rather than followed.
func (m *OSFilesystemManager) Resolve(rawPath string) (*ev.Path, error) {
	if rawPath == "" {
		return nil, vaulterr.New(vaulterr.Validation, "path must not be empty")
	}
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Validation, err, "resolving absolute path")
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, vaulterr.New(vaulterr.NotFound, "no such file: %s", absPath)
		}
		return nil, vaulterr.Wrap(vaulterr.IO, err, "stat "+absPath)
	}

	mode := info.Mode()
	switch {
	case mode&fs.ModeSymlink != 0:
		return nil, vaulterr.New(vaulterr.Validation, "symlinks not supported: %s", absPath)
	case !mode.IsRegular() && !mode.IsDir():
		return nil, vaulterr.New(vaulterr.Validation, "not a regular file or directory: %s", absPath)
	}

	return ev.NewPath(absPath, info.IsDir(), info), nil
}

// FindFiles lists the regular files under dir in path order, skipping
// anything matched by the configured patterns, the defaults, or the
// directory's own .evignore.
func (m *OSFilesystemManager) FindFiles(dir *ev.Path, recursive bool) ([]*ev.Path, error) {
	if !dir.IsDir() {
		return nil, vaulterr.New(vaulterr.Validation, "path is not a directory: %s", dir.String())
	}
	root := dir.String()

	local, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	patterns := append(append(append([]string{}, defaultIgnorePatterns...), m.ignore...), local...)
	matcher := NewIgnoreMatcher(patterns)

	var paths []*ev.Path
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive || matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.Match(rel, false) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		paths = append(paths, ev.NewPath(p, false, info))
		return nil
	})
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.IO, err, "walking "+root)
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })
	return paths, nil
}

var _ ev.FilesystemManager = (*OSFilesystemManager)(nil)
