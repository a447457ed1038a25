// Package store persists the pigs state document and the lifecycle journal.
//
// The state document is a single JSON file holding the default agent command
// and every tracked worktree keyed by "<repo>/<name>". It is read fully,
// mutated in memory, and written back with a temp-file rename so a crash
// mid-write never leaves a truncated file behind. Fields this version does not
// know about are carried through unchanged.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultAgent is the agent command of a fresh document.
const DefaultAgent = "claude --dangerously-skip-permissions"

// IOError reports a state file that exists but cannot be read or written.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("state %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError reports a state file whose content is not a valid document.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("state file %s is not a valid document: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Record is one tracked worktree.
type Record struct {
	Name      string    `json:"name"`
	Branch    string    `json:"branch"`
	Path      string    `json:"path"`
	RepoName  string    `json:"repo_name"`
	RepoPath  string    `json:"repo_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	extra map[string]json.RawMessage
}

// Key returns the composite identity of r.
func (r *Record) Key() string {
	return Key(r.RepoName, r.Name)
}

// Clone returns a copy of r sharing no mutable state.
func (r *Record) Clone() *Record {
	c := *r
	if r.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(r.extra))
		for k, v := range r.extra {
			c.extra[k] = v
		}
	}
	return &c
}

type recordFields Record

var recordKnown = []string{"name", "branch", "path", "repo_name", "repo_path", "created_at"}

// UnmarshalJSON decodes the known fields and keeps the rest verbatim.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields recordFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range recordKnown {
		delete(all, k)
	}
	*r = Record(fields)
	if len(all) > 0 {
		r.extra = all
	}
	return nil
}

// MarshalJSON writes the known fields merged with any preserved unknown ones.
func (r Record) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(recordFields(r))
	if err != nil {
		return nil, err
	}
	return mergeExtra(known, r.extra)
}

// Document is the whole persisted state.
type Document struct {
	// Agent is the default agent command line.
	Agent     string
	Worktrees map[string]*Record

	// agentRaw holds a non-string agent value (a list of named agent options)
	// so it survives a rewrite untouched while Agent is unchanged.
	agentRaw  json.RawMessage
	agentSeen string
	extra     map[string]json.RawMessage
	dirty     bool
	migrated  []Migration
}

// Migration describes one legacy key rewritten on load.
type Migration struct {
	From string
	To   string
	// Dropped is set when the legacy entry duplicated a record for the same path.
	Dropped bool
}

// NewDocument returns an empty document with the default agent.
func NewDocument() *Document {
	return &Document{
		Agent:     DefaultAgent,
		Worktrees: make(map[string]*Record),
	}
}

// Dirty reports whether the document changed since it was loaded or saved.
func (d *Document) Dirty() bool { return d.dirty }

// MarkDirty flags the document for rewrite.
func (d *Document) MarkDirty() { d.dirty = true }

// Migrations returns the legacy keys rewritten on load.
func (d *Document) Migrations() []Migration { return d.migrated }

// Extra returns a preserved top-level field by name.
func (d *Document) Extra(name string) (json.RawMessage, bool) {
	v, ok := d.extra[name]
	return v, ok
}

// SetAgent replaces the default agent command. When the agent field is a
// list of named options, only the first option's command is rewritten.
func (d *Document) SetAgent(command string) {
	d.Agent = command
	d.agentSeen = command
	d.dirty = true
	if d.agentRaw == nil {
		return
	}
	raw, err := withFirstCommand(d.agentRaw, command)
	if err != nil {
		d.agentRaw = nil
		return
	}
	d.agentRaw = raw
}

func withFirstCommand(list json.RawMessage, command string) (json.RawMessage, error) {
	var opts []map[string]json.RawMessage
	if err := json.Unmarshal(list, &opts); err != nil {
		return nil, err
	}
	if len(opts) == 0 || opts[0] == nil {
		return nil, errors.New("no agent options")
	}
	cmd, err := json.Marshal(command)
	if err != nil {
		return nil, err
	}
	opts[0]["command"] = cmd
	return json.Marshal(opts)
}

// agentOption is the list form of the agent field.
type agentOption struct {
	Name    string `json:"name"`
	Command string `json:"command"`
}

// UnmarshalJSON decodes a document, then normalizes and migrates its keys.
func (d *Document) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	d.Agent = DefaultAgent
	d.Worktrees = make(map[string]*Record)

	if raw, ok := all["agent"]; ok {
		delete(all, "agent")
		if err := d.decodeAgent(raw); err != nil {
			return fmt.Errorf("agent: %w", err)
		}
	}
	if raw, ok := all["worktrees"]; ok {
		delete(all, "worktrees")
		if !isNull(raw) {
			if err := json.Unmarshal(raw, &d.Worktrees); err != nil {
				return fmt.Errorf("worktrees: %w", err)
			}
		}
	}
	if len(all) > 0 {
		d.extra = all
	}

	for k, rec := range d.Worktrees {
		if rec == nil {
			delete(d.Worktrees, k)
			d.dirty = true
		}
	}
	d.migrate()
	return nil
}

func (d *Document) decodeAgent(raw json.RawMessage) error {
	if isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) != "" {
			d.Agent = s
		}
		d.agentSeen = d.Agent
		return nil
	}
	var opts []agentOption
	if err := json.Unmarshal(raw, &opts); err != nil {
		return err
	}
	if len(opts) > 0 && strings.TrimSpace(opts[0].Command) != "" {
		d.Agent = opts[0].Command
	}
	d.agentRaw = raw
	d.agentSeen = d.Agent
	return nil
}

// MarshalJSON writes the document with preserved unknown fields.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.extra)+2)
	for k, v := range d.extra {
		out[k] = v
	}

	if d.agentRaw != nil && d.Agent == d.agentSeen {
		out["agent"] = d.agentRaw
	} else {
		agent, err := json.Marshal(d.Agent)
		if err != nil {
			return nil, err
		}
		out["agent"] = agent
	}

	worktrees := d.Worktrees
	if worktrees == nil {
		worktrees = map[string]*Record{}
	}
	wt, err := json.Marshal(worktrees)
	if err != nil {
		return nil, err
	}
	out["worktrees"] = wt
	return json.Marshal(out)
}

// migrate rewrites legacy keys (no "/") to "<repo>/<name>" and aligns every
// record's name fields with its key. It is idempotent.
func (d *Document) migrate() {
	var legacy []string
	for k, rec := range d.Worktrees {
		if strings.Contains(k, "/") {
			repo, name, _ := SplitKey(k)
			if rec.RepoName != repo || rec.Name != name {
				rec.RepoName, rec.Name = repo, name
				d.dirty = true
			}
			continue
		}
		legacy = append(legacy, k)
	}
	sort.Strings(legacy)

	for _, old := range legacy {
		rec := d.Worktrees[old]
		delete(d.Worktrees, old)
		d.dirty = true

		name := old
		if name == "" {
			name = filepath.Base(rec.Path)
		}
		repo := inferRepoName(rec, name)
		newKey := Key(repo, name)

		if existing, ok := d.Worktrees[newKey]; ok {
			if SamePath(existing.Path, rec.Path) {
				d.migrated = append(d.migrated, Migration{From: old, To: newKey, Dropped: true})
				continue
			}
			base := name + "-legacy"
			name = base
			for n := 2; ; n++ {
				if _, taken := d.Worktrees[Key(repo, name)]; !taken {
					break
				}
				name = fmt.Sprintf("%s-%d", base, n)
			}
			newKey = Key(repo, name)
		}

		rec.RepoName, rec.Name = repo, name
		d.Worktrees[newKey] = rec
		d.migrated = append(d.migrated, Migration{From: old, To: newKey})
	}
}

func inferRepoName(rec *Record, name string) string {
	if rec.RepoName != "" && !strings.Contains(rec.RepoName, "/") {
		return rec.RepoName
	}
	if rec.Path != "" {
		dir := filepath.Base(filepath.Clean(rec.Path))
		if repo, ok := strings.CutSuffix(dir, "-"+name); ok && repo != "" {
			return repo
		}
	}
	if rec.RepoPath != "" {
		return filepath.Base(filepath.Clean(rec.RepoPath))
	}
	return "unknown"
}

// Key builds the composite identity "<repo>/<name>".
func Key(repo, name string) string {
	return repo + "/" + name
}

// SplitKey splits a composite key at its first "/".
func SplitKey(key string) (repo, name string, ok bool) {
	return strings.Cut(key, "/")
}

// Store loads and saves the state document at a fixed path.
type Store struct {
	path string
}

// New returns a store for the document at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the document path.
func (s *Store) Path() string { return s.path }

// Load reads the document. An absent file yields an empty document; any other
// failure is surfaced so user data is never silently replaced.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDocument(), nil
		}
		return nil, &IOError{Path: s.path, Op: "read", Err: err}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Path: s.path, Err: errors.New("empty file")}
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, &ParseError{Path: s.path, Err: err}
	}
	return doc, nil
}

// Save writes doc atomically: a temp file in the same directory is written,
// synced, and renamed over the target.
func (s *Store) Save(doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	pretty.WriteByte('\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Path: dir, Op: "mkdir", Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &IOError{Path: s.path, Op: "write", Err: err}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(pretty.Bytes()); err != nil {
		return &IOError{Path: tmpPath, Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &IOError{Path: tmpPath, Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Path: tmpPath, Op: "close", Err: err}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return &IOError{Path: tmpPath, Op: "chmod", Err: err}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return &IOError{Path: s.path, Op: "rename", Err: err}
	}
	committed = true
	doc.dirty = false
	return nil
}

func mergeExtra(known []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return known, nil
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(known, &out); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
