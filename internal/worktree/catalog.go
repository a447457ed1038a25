package worktree

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/drewfead/pigs/internal/agent"
	"github.com/drewfead/pigs/internal/config"
	"github.com/drewfead/pigs/internal/github"
	"github.com/drewfead/pigs/internal/logging"
	"github.com/drewfead/pigs/internal/session"
	"github.com/drewfead/pigs/internal/store"
)

// Entry is a record with its live context, as printed by list.
type Entry struct {
	Key       string            `json:"key"`
	Name      string            `json:"name"`
	RepoName  string            `json:"repo_name"`
	Branch    string            `json:"branch"`
	Path      string            `json:"path"`
	RepoPath  string            `json:"repo_path,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Missing   bool              `json:"missing"`
	Sessions  []session.Summary `json:"sessions"`
}

func (m *Manager) entry(rec *store.Record) Entry {
	sessions := m.sessions.ListRecent(rec.Path, m.cfg.Sessions.Limit)
	if sessions == nil {
		sessions = []session.Summary{}
	}
	return Entry{
		Key:       rec.Key(),
		Name:      rec.Name,
		RepoName:  rec.RepoName,
		Branch:    rec.Branch,
		Path:      rec.Path,
		RepoPath:  rec.RepoPath,
		CreatedAt: rec.CreatedAt,
		Missing:   !exists(rec.Path),
		Sessions:  sessions,
	}
}

// List returns every tracked worktree, sorted by repo then name.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	doc, err := m.load()
	if err != nil {
		return nil, err
	}
	recs := doc.Records()
	entries := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, m.entry(rec))
	}
	return entries, nil
}

// Names returns the names a user can type for tracked worktrees: bare names
// for the current repo, composite keys for the rest.
func (m *Manager) Names(ctx context.Context) ([]string, error) {
	doc, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	repo := m.currentRepoName(ctx)
	var names []string
	for _, rec := range doc.Records() {
		if rec.RepoName == repo {
			names = append(names, rec.Name)
		} else {
			names = append(names, rec.Key())
		}
	}
	return names, nil
}

// Rename changes a worktree's name. Path, branch and creation time are kept.
func (m *Manager) Rename(ctx context.Context, oldName, newName string) (*store.Record, error) {
	newName = Sanitize(newName)
	if newName == "" {
		return nil, fmt.Errorf("%w: new name is empty", ErrPrecondition)
	}
	doc, err := m.load()
	if err != nil {
		return nil, err
	}
	rec, err := m.find(ctx, doc, oldName)
	if err != nil {
		return nil, err
	}
	oldKey := rec.Key()

	renamed, err := doc.Rename(oldKey, newName)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := m.save(doc); err != nil {
		return nil, err
	}
	m.journal(&store.Event{
		Key:       renamed.Key(),
		Kind:      store.EventTransition,
		FromState: string(StateActive),
		ToState:   string(StateActive),
		Detail:    "renamed from " + oldKey,
	})
	return renamed, nil
}

// OpenOptions tunes Open.
type OpenOptions struct {
	// Agent overrides the configured agent command line.
	Agent string
	// Args are appended to the agent command.
	Args []string
}

// Resolve returns the agent command that Open would run for name.
func (m *Manager) Resolve(ctx context.Context, name string, opts OpenOptions) (agent.Command, *store.Record, error) {
	doc, err := m.load()
	if err != nil {
		return agent.Command{}, nil, err
	}
	rec, err := m.find(ctx, doc, name)
	if err != nil {
		return agent.Command{}, nil, err
	}
	if !exists(rec.Path) {
		return agent.Command{}, rec, fmt.Errorf("%w: directory %s is missing; run clean", ErrNotFound, rec.Path)
	}

	var repoAgent string
	if rec.RepoPath != "" {
		rc, err := config.LoadRepoConfig(rec.RepoPath)
		if err != nil {
			logging.Warn("ignoring unreadable repository config", "repo", rec.RepoPath, "error", err)
		} else {
			repoAgent = rc.Agent
		}
	}

	cmdline := agent.Choose(opts.Agent, repoAgent, doc.Agent)
	cmd, err := m.agents.Resolve(rec, cmdline, opts.Args)
	if err != nil {
		return agent.Command{}, rec, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	return cmd, rec, nil
}

// Open launches the agent in the worktree called name and waits for it.
func (m *Manager) Open(ctx context.Context, name string, opts OpenOptions) (agent.Command, error) {
	cmd, rec, err := m.Resolve(ctx, name, opts)
	if err != nil {
		return cmd, err
	}
	logging.Info("opening worktree", "key", rec.Key(), "command", cmd.String(), "resume", cmd.ResumeSession)
	return cmd, m.launcher.Launch(ctx, cmd)
}

// Agent returns the default agent command line.
func (m *Manager) Agent(ctx context.Context) (string, error) {
	doc, err := m.load()
	if err != nil {
		return "", err
	}
	return agent.Choose("", "", doc.Agent), nil
}

// SetAgent stores a new default agent command line after checking it parses.
func (m *Manager) SetAgent(ctx context.Context, cmdline string) error {
	cmdline = strings.TrimSpace(cmdline)
	if _, err := agent.Split(cmdline); err != nil {
		return fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	doc, err := m.load()
	if err != nil {
		return err
	}
	doc.SetAgent(cmdline)
	return m.save(doc)
}

// Details is the full view of one worktree.
type Details struct {
	Entry
	Uncommitted bool
	Unpushed    bool
	Merged      bool
	PRState     github.MergeState
	Events      []*store.Event
	// Problems lists checks that could not be answered.
	Problems []error
}

// Inspect gathers status, sessions and history for name. Failing checks are
// reported in Problems rather than failing the call.
func (m *Manager) Inspect(ctx context.Context, name string, historyLimit int) (*Details, error) {
	doc, err := m.load()
	if err != nil {
		return nil, err
	}
	rec, err := m.find(ctx, doc, name)
	if err != nil {
		return nil, err
	}

	d := &Details{Entry: m.entry(rec)}
	if !d.Missing {
		if d.Uncommitted, err = m.git.HasUncommittedChanges(ctx, rec.Path); err != nil {
			d.Problems = append(d.Problems, fmt.Errorf("uncommitted changes: %w", err))
		}
		if rec.Branch != "" {
			if d.Unpushed, err = m.git.HasUnpushedCommits(ctx, rec.Path, rec.Branch); err != nil {
				d.Problems = append(d.Problems, fmt.Errorf("unpushed commits: %w", err))
			}
		}
	}
	if rec.RepoPath != "" && rec.Branch != "" {
		if d.Merged, err = m.git.IsBranchMerged(ctx, rec.RepoPath, rec.Branch); err != nil {
			d.Problems = append(d.Problems, fmt.Errorf("merge status: %w", err))
		}
		if m.prs != nil {
			d.PRState = m.prs.PRMergeState(ctx, rec.RepoPath, rec.Branch)
		}
	}
	if m.events != nil {
		if d.Events, err = m.events.List(rec.Key(), historyLimit); err != nil {
			d.Problems = append(d.Problems, fmt.Errorf("history: %w", err))
		}
	}
	return d, nil
}

// History returns journal events for name, or for every worktree when name
// is empty. Names of deleted worktrees are matched as typed.
func (m *Manager) History(ctx context.Context, name string, limit int) ([]*store.Event, error) {
	if m.events == nil {
		return nil, nil
	}
	key := ""
	if name != "" {
		key = name
		if doc, err := m.load(); err == nil {
			if rec, err := m.find(ctx, doc, name); err == nil {
				key = rec.Key()
			} else if !strings.Contains(name, "/") {
				if repo := m.currentRepoName(ctx); repo != "" {
					key = store.Key(repo, Sanitize(name))
				}
			}
		}
	}
	return m.events.List(key, limit)
}
