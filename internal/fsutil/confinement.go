// SPDX-License-Identifier: MIT

// Package fsutil keeps media paths confined to their managed directory and
// turns platform titles into safe file names.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path resolves outside its media root,
// either lexically or through a symlink.
var ErrOutsideRoot = errors.New("path outside media root")

// ConfineRelPath joins a relative file name onto root and returns the
// symlink-resolved result, which is guaranteed to lie under root.
func ConfineRelPath(root, name string) (string, error) {
	if err := rejectBackslash(name); err != nil {
		return "", err
	}
	name = filepath.Clean(name)
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%q: want a relative name", name)
	}
	if climbs(name) {
		return "", fmt.Errorf("%q: %w", name, ErrOutsideRoot)
	}
	base, err := realRoot(root)
	if err != nil {
		return "", err
	}
	return confine(base, filepath.Join(base, name))
}

// ConfineAbsPath checks that an absolute path still resolves under root.
func ConfineAbsPath(root, path string) (string, error) {
	if err := rejectBackslash(path); err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%q: want an absolute path", path)
	}
	base, err := realRoot(root)
	if err != nil {
		return "", err
	}
	return confine(base, filepath.Clean(path))
}

// IsRegularFile returns an error unless path exists and is a regular file.
func IsRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file", path)
	}
	return nil
}

func rejectBackslash(p string) error {
	if strings.ContainsRune(p, '\\') {
		return fmt.Errorf("%q: backslash in media path", p)
	}
	return nil
}

// climbs reports whether a cleaned relative path starts above its base.
func climbs(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// realRoot makes root absolute and resolves its symlinks. A root that does
// not exist is an error; one whose links cannot be read is used as-is.
func realRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("media root %q: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	switch {
	case err == nil:
		return resolved, nil
	case errors.Is(err, fs.ErrNotExist):
		return "", err
	default:
		return abs, nil
	}
}

// confine resolves path and verifies it against base. A file that does not
// exist yet is checked through its parent directory.
func confine(base, path string) (string, error) {
	resolved, err := resolve(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, resolved)
	if err != nil {
		return "", fmt.Errorf("%s: %w", resolved, err)
	}
	if climbs(rel) {
		return "", fmt.Errorf("%s: %w", resolved, ErrOutsideRoot)
	}
	return resolved, nil
}

func resolve(path string) (string, error) {
	if _, err := os.Lstat(path); err == nil {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", path, err)
		}
		return resolved, nil
	}

	dir := filepath.Dir(path)
	parent, err := filepath.EvalSymlinks(dir)
	if err == nil {
		return filepath.Join(parent, filepath.Base(path)), nil
	}
	if _, statErr := os.Stat(dir); statErr == nil {
		// The parent is there but unreadable as a link chain: refuse.
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	return path, nil
}
