// Package pathutil converts absolute paths to relative ones for
// user-facing output.
//
// clausewitzd tracks save paths as absolute internally (consistent
// regardless of the process's working directory); the HTTP surface
// and CLI output use paths relative to the watched save directory for
// readability.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to relative based on a root
// directory. Falls back to the original path if conversion fails or
// the path is already relative or lies outside rootDir.
//
// Examples:
//   - ToRelative("/saves/Eat My Shorts/2400.01.01.sav", "/saves") → "Eat My Shorts/2400.01.01.sav"
//   - ToRelative("/other/location/file.sav", "/saves") → "/other/location/file.sav" (outside root)
//   - ToRelative("file.sav", "/saves") → "file.sav" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}

	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}

	if strings.HasPrefix(relPath, "..") {
		return absPath
	}

	return relPath
}
