package worktree

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// copyIntoWorktree copies each relative path from src to dst. Missing sources
// are skipped silently; other failures are collected and returned joined so
// one bad entry does not stop the rest.
func copyIntoWorktree(src, dst string, rels []string) ([]string, error) {
	var copied []string
	var errs []error
	seen := make(map[string]bool)

	for _, rel := range rels {
		rel = strings.TrimSpace(rel)
		if rel == "" || seen[rel] {
			continue
		}
		seen[rel] = true

		clean := filepath.Clean(rel)
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			errs = append(errs, fmt.Errorf("copy %s: path escapes the repository", rel))
			continue
		}

		from := filepath.Join(src, clean)
		info, err := os.Stat(from)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("copy %s: %w", rel, err))
			continue
		}

		to := filepath.Join(dst, clean)
		if info.IsDir() {
			err = copyDir(from, to)
		} else {
			err = copyFile(from, to, info.Mode().Perm())
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("copy %s: %w", rel, err))
			continue
		}
		copied = append(copied, clean)
	}
	return copied, errors.Join(errs...)
}

func copyDir(from, to string) error {
	return filepath.WalkDir(from, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		target := filepath.Join(to, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(from, to string, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return err
	}
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
