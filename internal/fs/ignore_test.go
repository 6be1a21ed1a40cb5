package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	m := NewIgnoreMatcher([]string{"", "   ", "# scanner exports", "*.tmp", "audit/2023/*.csv", "drafts/", "  ~$*  "})

	want := []ignorePattern{
		{pattern: "*.tmp"},
		{pattern: "audit/2023/*.csv", matchPath: true},
		{pattern: "drafts", dirOnly: true},
		{pattern: "~$*"},
	}
	if len(m.patterns) != len(want) {
		t.Fatalf("parsed %d patterns, want %d: %+v", len(m.patterns), len(want), m.patterns)
	}
	for i, p := range want {
		if m.patterns[i] != p {
			t.Errorf("pattern %d = %+v, want %+v", i, m.patterns[i], p)
		}
	}
}

func TestIgnoreMatcher_Match(t *testing.T) {
	patterns := append([]string{"*.tmp", "audit/2023/*.csv", "drafts/", "[bad"}, defaultIgnorePatterns...)
	m := NewIgnoreMatcher(patterns)

	tests := []struct {
		name  string
		path  string
		isDir bool
		want  bool
	}{
		{name: "evidence file kept", path: "policies/access.pdf", want: false},
		{name: "basename glob at root", path: "scan.tmp", want: true},
		{name: "basename glob in subdirectory", path: filepath.Join("scans", "q1", "scan.tmp"), want: true},
		{name: "path glob matches under its prefix", path: filepath.Join("audit", "2023", "users.csv"), want: true},
		{name: "path glob is anchored", path: filepath.Join("old", "audit", "2023", "users.csv"), want: false},
		{name: "path glob does not cross directories", path: filepath.Join("audit", "2023", "q1", "users.csv"), want: false},
		{name: "dir-only pattern skips the directory", path: "drafts", isDir: true, want: true},
		{name: "dir-only pattern leaves a file of that name", path: "drafts", want: false},
		{name: "office lock file", path: filepath.Join("policies", "~$access.docx"), want: true},
		{name: "finder metadata", path: filepath.Join("screens", ".DS_Store"), want: true},
		{name: "windows thumbnails", path: "Thumbs.db", want: true},
		{name: "ignore file itself", path: IgnoreFileName, want: true},
		{name: "malformed pattern never matches", path: "[bad", want: false},
		{name: "empty path", path: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Match(tt.path, tt.isDir); got != tt.want {
				t.Errorf("Match(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	tests := []struct {
		name    string
		content *string
		want    []string
	}{
		{name: "missing file", content: nil, want: nil},
		{name: "raw lines kept", content: ptr("*.tmp\n# comment\n\ndrafts/\n"), want: []string{"*.tmp", "# comment", "", "drafts/"}},
		{name: "no trailing newline", content: ptr("*.tmp"), want: []string{"*.tmp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), IgnoreFileName)
			if tt.content != nil {
				if err := os.WriteFile(path, []byte(*tt.content), 0o644); err != nil {
					t.Fatalf("writing ignore file: %v", err)
				}
			}

			got, err := ParseIgnoreFile(path)
			if err != nil {
				t.Fatalf("ParseIgnoreFile() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseIgnoreFile() = %q, want %q", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func ptr(s string) *string { return &s }
