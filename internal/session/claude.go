package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ProjectDirName encodes an absolute path the way claude names its project
// directories: every character other than ASCII letters, digits and '-'
// becomes '-'.
func ProjectDirName(absPath string) string {
	var b strings.Builder
	b.Grow(len(absPath))
	for _, r := range absPath {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

type claudeEntry struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	CWD       string         `json:"cwd"`
	IsMeta    bool           `json:"isMeta"`
	Message   *claudeMessage `json:"message"`
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type claudeBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (ix *Index) claudeSessions(path string) []Summary {
	if ix.ClaudeProjectsDir == "" || path == "" {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}

	// The encoding is applied to the path as the agent saw it, which may be
	// either side of a symlink.
	dirs := []string{filepath.Join(ix.ClaudeProjectsDir, ProjectDirName(abs))}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil && resolved != abs {
		dirs = append(dirs, filepath.Join(ix.ClaudeProjectsDir, ProjectDirName(resolved)))
	}

	var out []Summary
	for _, dir := range dirs {
		files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
		if err != nil {
			continue
		}
		for _, file := range files {
			if s, ok := ix.readClaudeSession(file, abs); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// readClaudeSession summarizes one transcript. Distinct paths can encode to
// the same directory name, so a transcript whose recorded cwd never equals
// path is rejected.
func (ix *Index) readClaudeSession(file, path string) (Summary, bool) {
	var (
		lastMsg  string
		lastTime time.Time
		sawCWD   bool
		matched  bool
		entries  int
	)

	err := eachLine(file, func(line []byte) bool {
		var e claudeEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return true
		}
		entries++
		if e.CWD != "" {
			sawCWD = true
			if samePath(e.CWD, path) {
				matched = true
			}
		}
		if t, ok := parseTimestamp(e.Timestamp); ok && t.After(lastTime) {
			lastTime = t
		}
		if e.Type != "user" || e.IsMeta || e.Message == nil || e.Message.Role != "user" {
			return true
		}
		if text := claudeUserText(e.Message.Content); text != "" {
			lastMsg = text
		}
		return true
	})
	if err != nil || entries == 0 {
		return Summary{}, false
	}
	if sawCWD && !matched {
		return Summary{}, false
	}

	if lastTime.IsZero() {
		info, err := os.Stat(file)
		if err != nil {
			return Summary{}, false
		}
		lastTime = info.ModTime()
	}

	return Summary{
		Agent:           AgentClaude,
		LastUserMessage: truncate(lastMsg, ix.preview()),
		Timestamp:       lastTime,
	}, true
}

// claudeUserText extracts typed text from a user message, ignoring tool results.
func claudeUserText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var blocks []claudeBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
			parts = append(parts, strings.TrimSpace(b.Text))
		}
	}
	return strings.Join(parts, " ")
}
