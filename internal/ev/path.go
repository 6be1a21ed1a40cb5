package ev

import "io/fs"

// Path is a validated absolute source path with the stat info taken when it
// was resolved. Paths are created by FilesystemManager.Resolve.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath creates a Path from its components. It is meant for
// FilesystemManager implementations.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{absPath: absPath, isDir: isDir, info: info}
}

func (p *Path) String() string { return p.absPath }

func (p *Path) IsDir() bool { return p.isDir }

// Info returns the file info cached at resolve time.
func (p *Path) Info() fs.FileInfo { return p.info }
