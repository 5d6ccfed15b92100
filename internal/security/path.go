package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilePath rejects empty paths and paths that still carry a ".."
// component after cleaning. Absolute paths are allowed here because the
// database and config files are normally configured with them.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}

	return nil
}

// ValidateFilePathStrict additionally forbids absolute paths, for
// operator-supplied paths that must stay inside the working directory.
func ValidateFilePathStrict(path string) error {
	if err := ValidateFilePath(path); err != nil {
		return err
	}

	if filepath.IsAbs(filepath.Clean(path)) {
		return fmt.Errorf("absolute paths not allowed in production: %s", path)
	}

	return nil
}

// ValidateFilePathWithBase validates that path resolves inside baseDir.
// Relative paths are resolved against baseDir first.
func ValidateFilePathWithBase(path, baseDir string) error {
	if err := ValidateFilePath(path); err != nil {
		return err
	}

	fullPath := filepath.Clean(path)
	if !filepath.IsAbs(fullPath) {
		fullPath = filepath.Clean(filepath.Join(baseDir, path))
	}
	cleanBase := filepath.Clean(baseDir)

	if !strings.HasPrefix(fullPath, cleanBase) {
		return fmt.Errorf("path escapes base directory: %s", path)
	}

	return nil
}
