// Package vault provides file storage for a markdown vault directory.
// Every operation is path-confined: relative paths are resolved against the
// vault root and may not escape it.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Storage is a vault rooted at a single directory.
type Storage struct {
	root string
}

// NewStorage creates a Storage for the given vault root.
// The root must be an existing directory.
func NewStorage(root string) (*Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("vault root is required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault root: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault root does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root is not a directory: %s", abs)
	}

	return &Storage{root: abs}, nil
}

// Root returns the absolute vault root path.
func (s *Storage) Root() string {
	return s.root
}

// ResolvePath resolves a vault-relative path to an absolute path.
// Paths that escape the vault root are rejected.
func (s *Storage) ResolvePath(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("path must be relative to the vault root: %s", relPath)
	}

	full := filepath.Clean(filepath.Join(s.root, relPath))
	if full != s.root && !strings.HasPrefix(full, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes the vault root: %s", relPath)
	}

	return full, nil
}

// FileExists reports whether the given relative path names an existing file.
func (s *Storage) FileExists(relPath string) bool {
	full, err := s.ResolvePath(relPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// FolderExists reports whether the given relative path names an existing directory.
func (s *Storage) FolderExists(relPath string) bool {
	full, err := s.ResolvePath(relPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.IsDir()
}

// ReadFile returns the content of a vault file.
func (s *Storage) ReadFile(relPath string) (string, error) {
	full, err := s.ResolvePath(relPath)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", relPath, err)
	}
	return string(data), nil
}

// CreateFile writes content to a vault file, creating parent directories as
// needed. An existing file is overwritten.
func (s *Storage) CreateFile(relPath, content string) (string, error) {
	full, err := s.ResolvePath(relPath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create parent directories for %s: %w", relPath, err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	return full, nil
}

// ModifyFile overwrites an existing vault file. The target must exist.
func (s *Storage) ModifyFile(relPath, content string) error {
	if !s.FileExists(relPath) {
		return fmt.Errorf("file does not exist: %s", relPath)
	}

	full, err := s.ResolvePath(relPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	return nil
}

// DeleteFile removes an existing vault file. The target must exist.
func (s *Storage) DeleteFile(relPath string) error {
	if !s.FileExists(relPath) {
		return fmt.Errorf("file does not exist: %s", relPath)
	}

	full, err := s.ResolvePath(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("failed to delete %s: %w", relPath, err)
	}
	return nil
}

// CreateFolder creates a vault directory, including parents.
func (s *Storage) CreateFolder(relPath string) error {
	full, err := s.ResolvePath(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", relPath, err)
	}
	return nil
}

// DeleteFolder removes an existing vault directory and its contents.
func (s *Storage) DeleteFolder(relPath string) error {
	if !s.FolderExists(relPath) {
		return fmt.Errorf("folder does not exist: %s", relPath)
	}

	full, err := s.ResolvePath(relPath)
	if err != nil {
		return err
	}
	if full == s.root {
		return fmt.Errorf("refusing to delete the vault root")
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("failed to delete folder %s: %w", relPath, err)
	}
	return nil
}

// ListFiles returns the relative paths of all markdown files in the vault,
// sorted for stable output.
func (s *Storage) ListFiles() ([]string, error) {
	var files []string

	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Obsidian keeps its cache under .obsidian; skip hidden directories.
			if strings.HasPrefix(d.Name(), ".") && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			rel, relErr := filepath.Rel(s.root, path)
			if relErr != nil {
				return relErr
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk vault: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// ReadAllMarkdownFiles returns the content of every markdown file in the
// vault, keyed by relative path. Unreadable files are skipped.
func (s *Storage) ReadAllMarkdownFiles() (map[string]string, error) {
	files, err := s.ListFiles()
	if err != nil {
		return nil, err
	}

	contents := make(map[string]string, len(files))
	for _, rel := range files {
		content, err := s.ReadFile(rel)
		if err != nil {
			continue
		}
		contents[rel] = content
	}
	return contents, nil
}
