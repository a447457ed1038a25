// Package session reads agent session archives on disk and summarizes the
// conversations that ran in a given worktree.
//
// Two archives are understood:
//   - claude: <projects>/<encoded path>/*.jsonl, one conversation per file
//   - codex:  <sessions>/YYYY/MM/DD/*.jsonl, with the working directory in the
//     leading session_meta record
//
// Archives are external and may be half-written or corrupt; entries that do
// not parse are skipped rather than failing the scan.
package session

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/drewfead/pigs/internal/config"
)

// Agent names a session archive.
type Agent string

const (
	AgentClaude Agent = "claude"
	AgentCodex  Agent = "codex"
)

// Resumable reports whether sessions of a can be resumed by id.
func (a Agent) Resumable() bool {
	return a == AgentCodex
}

// DefaultLimit is the number of sessions shown per worktree.
const DefaultLimit = 3

// Summary is one prior conversation in a worktree.
type Summary struct {
	Agent           Agent     `json:"agent"`
	LastUserMessage string    `json:"last_user_message"`
	Timestamp       time.Time `json:"timestamp"`
	// SessionID is set only for resumable agents.
	SessionID string `json:"session_id,omitempty"`
}

// Index scans both archives.
type Index struct {
	ClaudeProjectsDir string
	CodexSessionsDir  string
	PreviewChars      int
}

// NewIndex returns an Index over the configured archive locations.
func NewIndex(cfg config.SessionsConfig) *Index {
	return &Index{
		ClaudeProjectsDir: cfg.ClaudeProjectsDir,
		CodexSessionsDir:  cfg.CodexSessionsDir,
		PreviewChars:      cfg.PreviewChars,
	}
}

// ListRecent returns at most limit sessions that ran in path, newest first.
func (ix *Index) ListRecent(path string, limit int) []Summary {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var all []Summary
	all = append(all, ix.claudeSessions(path)...)
	all = append(all, ix.codexSessions(path)...)
	sortNewestFirst(all)
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// LatestResumable returns the newest codex session that ran in path.
func (ix *Index) LatestResumable(path string) (Summary, bool) {
	sessions := ix.codexSessions(path)
	sortNewestFirst(sessions)
	for _, s := range sessions {
		if s.SessionID != "" {
			return s, true
		}
	}
	return Summary{}, false
}

func (ix *Index) preview() int {
	if ix.PreviewChars > 0 {
		return ix.PreviewChars
	}
	return 120
}

func sortNewestFirst(s []Summary) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Timestamp.After(s[j].Timestamp)
	})
}

// truncate collapses whitespace and keeps the first n runes.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// eachLine calls fn with every line of the file at path until fn returns false.
// Lines of any length are supported.
func eachLine(path string, fn func(line []byte) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	for {
		line, err := r.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 && !fn(line) {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// samePath compares two directories after cleaning and resolving symlinks.
func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	a, b = filepath.Clean(a), filepath.Clean(b)
	if a == b {
		return true
	}
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	return errA == nil && errB == nil && ra == rb
}
