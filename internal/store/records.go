package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNoRecord is returned when no record matches a key or name.
	ErrNoRecord = errors.New("no such worktree")
	// ErrKeyExists is returned when a composite key is already tracked.
	ErrKeyExists = errors.New("worktree key already tracked")
	// ErrPathTracked is returned when a directory is already tracked under some key.
	ErrPathTracked = errors.New("worktree path already tracked")
	// ErrAmbiguous is returned when a bare name matches records in several repos.
	ErrAmbiguous = errors.New("worktree name is ambiguous")
)

// Get returns the record stored under key.
func (d *Document) Get(key string) (*Record, bool) {
	rec, ok := d.Worktrees[key]
	return rec, ok
}

// Put inserts rec under its composite key. The key and the path must both be untracked.
func (d *Document) Put(rec *Record) error {
	key := rec.Key()
	if _, ok := d.Worktrees[key]; ok {
		return fmt.Errorf("%w: %s", ErrKeyExists, key)
	}
	if other, _, ok := d.FindByPath(rec.Path); ok {
		return fmt.Errorf("%w: %s is tracked as %s", ErrPathTracked, rec.Path, other)
	}
	if d.Worktrees == nil {
		d.Worktrees = make(map[string]*Record)
	}
	d.Worktrees[key] = rec
	d.dirty = true
	return nil
}

// Delete removes key and reports whether it was present.
func (d *Document) Delete(key string) bool {
	if _, ok := d.Worktrees[key]; !ok {
		return false
	}
	delete(d.Worktrees, key)
	d.dirty = true
	return true
}

// Rename moves the record at oldKey to newName within the same repo. Path,
// branch and creation time are untouched.
func (d *Document) Rename(oldKey, newName string) (*Record, error) {
	rec, ok := d.Worktrees[oldKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRecord, oldKey)
	}
	newKey := Key(rec.RepoName, newName)
	if newKey == oldKey {
		return rec, nil
	}
	if _, taken := d.Worktrees[newKey]; taken {
		return nil, fmt.Errorf("%w: %s", ErrKeyExists, newKey)
	}
	delete(d.Worktrees, oldKey)
	rec.Name = newName
	d.Worktrees[newKey] = rec
	d.dirty = true
	return rec, nil
}

// FindByPath returns the key and record whose path is path.
func (d *Document) FindByPath(path string) (string, *Record, bool) {
	if path == "" {
		return "", nil, false
	}
	for _, rec := range d.Records() {
		if SamePath(rec.Path, path) {
			return rec.Key(), rec, true
		}
	}
	return "", nil, false
}

// FindByBranch returns the record of repo checked out on branch.
func (d *Document) FindByBranch(repo, branch string) (*Record, bool) {
	for _, rec := range d.Records() {
		if rec.RepoName == repo && rec.Branch == branch {
			return rec, true
		}
	}
	return nil, false
}

// Resolve finds a record by "repo/name" or by bare name. Bare names prefer
// currentRepo, then a unique match across all repos.
func (d *Document) Resolve(name, currentRepo string) (*Record, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrNoRecord)
	}
	if rec, ok := d.Worktrees[name]; ok && strings.Contains(name, "/") {
		return rec, nil
	}

	candidates := []string{name}
	if sanitized := strings.ReplaceAll(name, "/", "-"); sanitized != name {
		candidates = append(candidates, sanitized)
	}

	if currentRepo != "" {
		for _, c := range candidates {
			if rec, ok := d.Worktrees[Key(currentRepo, c)]; ok {
				return rec, nil
			}
		}
	}

	var matches []*Record
	for _, rec := range d.Records() {
		for _, c := range candidates {
			if rec.Name == c {
				matches = append(matches, rec)
				break
			}
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNoRecord, name)
	case 1:
		return matches[0], nil
	default:
		keys := make([]string, len(matches))
		for i, m := range matches {
			keys[i] = m.Key()
		}
		return nil, fmt.Errorf("%w: %s matches %s", ErrAmbiguous, name, strings.Join(keys, ", "))
	}
}

// Records returns every record sorted by repo then name.
func (d *Document) Records() []*Record {
	out := make([]*Record, 0, len(d.Worktrees))
	for _, rec := range d.Worktrees {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RepoName != out[j].RepoName {
			return out[i].RepoName < out[j].RepoName
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// RepoPaths returns the distinct repository paths referenced by records.
func (d *Document) RepoPaths() []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range d.Worktrees {
		if rec.RepoPath == "" || seen[rec.RepoPath] {
			continue
		}
		seen[rec.RepoPath] = true
		out = append(out, rec.RepoPath)
	}
	sort.Strings(out)
	return out
}

// CanonicalPath cleans p and resolves symlinks when the path exists.
func CanonicalPath(p string) string {
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	// Resolve the nearest existing parent so /tmp and /private/tmp still match
	// after the leaf is gone.
	dir, base := filepath.Split(p)
	if dir != "" && dir != p {
		if resolved, err := filepath.EvalSymlinks(filepath.Clean(dir)); err == nil {
			return filepath.Join(resolved, base)
		}
	}
	return p
}

// SamePath reports whether a and b name the same location.
func SamePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	return CanonicalPath(a) == CanonicalPath(b)
}
