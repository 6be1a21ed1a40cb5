package fs

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"ev-go/internal/vaulterr"
)

// IgnoreFileName is read from the root of every directory import.
const IgnoreFileName = ".evignore"

// defaultIgnorePatterns are always applied on directory imports.
var defaultIgnorePatterns = []string{IgnoreFileName, ".DS_Store", "Thumbs.db", "~$*"}

type ignorePattern struct {
	pattern   string
	matchPath bool // match the slash-separated relative path instead of the basename
	dirOnly   bool // trailing '/': only directories match
}

// IgnoreMatcher decides which files a directory import skips.
// Patterns without '/' match the basename; patterns containing '/' match the
// relative path from the import root. A trailing '/' restricts a pattern to
// directories, whose whole subtree is then skipped.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher parses raw patterns, skipping blank lines and '#' comments.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		p := ignorePattern{}
		if strings.HasSuffix(raw, "/") {
			p.dirOnly = true
			raw = strings.TrimRight(raw, "/")
		}
		p.pattern = raw
		p.matchPath = strings.Contains(raw, "/")
		patterns = append(patterns, p)
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether relativePath (a file, or a directory when isDir) is ignored.
func (m *IgnoreMatcher) Match(relativePath string, isDir bool) bool {
	if relativePath == "" {
		return false
	}
	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		target := basename
		if p.matchPath {
			target = normalized
		}
		// filepath.Match only fails on malformed patterns; those never match.
		if ok, err := filepath.Match(p.pattern, target); err == nil && ok {
			return true
		}
	}
	return false
}

// ParseIgnoreFile returns the raw lines of an ignore file, or nil when the
// file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, vaulterr.Wrap(vaulterr.IO, err, "opening ignore file")
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, vaulterr.Wrap(vaulterr.IO, err, "reading ignore file")
	}
	return lines, nil
}
