package evidence

import (
	"path"
	"path/filepath"
	"strings"

	"ev-go/internal/hasher"
	"ev-go/internal/vaulterr"
)

// Dir is the evidence tree under a vault root.
const Dir = "evidence"

// SanitizeFilename reduces name to a single path element safe to embed in a
// content address. Path separators become underscores.
func SanitizeFilename(name string) (string, error) {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, strings.TrimSpace(name))

	switch clean {
	case "", ".", "..":
		return "", vaulterr.New(vaulterr.Validation, "invalid evidence filename %q", name)
	}
	return clean, nil
}

// RelativePath returns the content address of a file:
// evidence/<first two hex of sha>/<sha>_<filename>. It always uses forward
// slashes so that stored paths are portable.
func RelativePath(sha256, sanitized string) (string, error) {
	if !hasher.IsDigest(sha256) {
		return "", vaulterr.New(vaulterr.Validation, "invalid digest %q", sha256)
	}
	return path.Join(Dir, sha256[:2], sha256+"_"+sanitized), nil
}

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": "application/json",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ContentType infers a MIME type from the file extension.
func ContentType(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}
