package ev

// FilesystemManager finds the source files that evidence is imported from.
type FilesystemManager interface {
	// Resolve makes rawPath absolute, stats it and accepts only regular
	// files and directories.
	Resolve(rawPath string) (*Path, error)

	// FindFiles lists the regular files under dir that are not ignored,
	// sorted by path. Subdirectories are walked when recursive is set.
	FindFiles(dir *Path, recursive bool) ([]*Path, error)
}
