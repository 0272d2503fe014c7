// Package loader reads configuration files and environment variables.
//
// Files are decoded by extension (TOML, YAML or JSON) straight into a
// caller-supplied struct, so fields the file leaves out keep whatever the
// caller put there first.
package loader

import "os"

// FileSystem reads whole files. fstest.MapFS satisfies it.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

// OSFS reads from the real file system.
type OSFS struct{}

// ReadFile implements FileSystem.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// DefaultFS returns the OS file system.
func DefaultFS() FileSystem {
	return OSFS{}
}
