package session

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type codexEntry struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type codexMeta struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	CWD       string `json:"cwd"`
}

type codexResponseItem struct {
	Type    string              `json:"type"`
	Role    string              `json:"role"`
	Content []codexContentBlock `json:"content"`
}

type codexContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Context codex injects as user messages; not typed by the user.
var codexInjectedPrefixes = []string{
	"<environment_context>",
	"<user_instructions>",
}

func (ix *Index) codexSessions(path string) []Summary {
	if ix.CodexSessionsDir == "" || path == "" {
		return nil
	}

	var out []Summary
	_ = filepath.WalkDir(ix.CodexSessionsDir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && file != ix.CodexSessionsDir {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
			return nil
		}
		if s, ok := ix.readCodexSession(file, path); ok {
			out = append(out, s)
		}
		return nil
	})
	return out
}

// readCodexSession summarizes one session file if its session_meta cwd is path.
func (ix *Index) readCodexSession(file, path string) (Summary, bool) {
	var (
		meta     *codexMeta
		rejected bool
		lastMsg  string
		lastTime time.Time
	)

	err := eachLine(file, func(line []byte) bool {
		var e codexEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return true
		}

		if e.Type == "session_meta" && meta == nil {
			var m codexMeta
			if err := json.Unmarshal(e.Payload, &m); err != nil {
				return true
			}
			if !samePath(m.CWD, path) {
				rejected = true
				return false
			}
			meta = &m
			if t, ok := parseTimestamp(m.Timestamp); ok && t.After(lastTime) {
				lastTime = t
			}
		}
		if t, ok := parseTimestamp(e.Timestamp); ok && t.After(lastTime) {
			lastTime = t
		}

		if e.Type != "response_item" {
			return true
		}
		var item codexResponseItem
		if err := json.Unmarshal(e.Payload, &item); err != nil {
			return true
		}
		if item.Type != "message" || item.Role != "user" {
			return true
		}
		if text := codexUserText(item.Content); text != "" {
			lastMsg = text
		}
		return true
	})
	if err != nil || rejected || meta == nil {
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
		Agent:           AgentCodex,
		LastUserMessage: truncate(lastMsg, ix.preview()),
		Timestamp:       lastTime,
		SessionID:       meta.ID,
	}, true
}

func codexUserText(blocks []codexContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Type != "input_text" {
			continue
		}
		text := strings.TrimSpace(b.Text)
		if text == "" || isCodexInjected(text) {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

func isCodexInjected(text string) bool {
	for _, p := range codexInjectedPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}
