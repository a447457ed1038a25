// Package worktree implements the worktree lifecycle: creating, adopting,
// renaming, opening and deleting worktrees, and reconciling the state
// document with what git reports.
package worktree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/drewfead/pigs/internal/agent"
	"github.com/drewfead/pigs/internal/config"
	"github.com/drewfead/pigs/internal/git"
	"github.com/drewfead/pigs/internal/github"
	"github.com/drewfead/pigs/internal/logging"
	"github.com/drewfead/pigs/internal/prompt"
	"github.com/drewfead/pigs/internal/session"
	"github.com/drewfead/pigs/internal/store"
)

// PRResolver is the optional pull request lookup.
type PRResolver interface {
	ResolvePR(ctx context.Context, repo string, number int) (string, error)
	PRMergeState(ctx context.Context, repo, branch string) github.MergeState
}

// Journal records lifecycle events.
type Journal interface {
	Record(ev *store.Event) error
	List(key string, limit int) ([]*store.Event, error)
}

// SessionLister finds recent agent sessions for a worktree directory.
type SessionLister interface {
	ListRecent(path string, limit int) []session.Summary
	LatestResumable(path string) (session.Summary, bool)
}

// Launcher runs a resolved agent command.
type Launcher interface {
	Launch(ctx context.Context, cmd agent.Command) error
}

// Notice reports a safety gate that was passed with a yes.
type Notice struct {
	Key    string
	Gate   string
	Source prompt.Source
}

// Manager runs lifecycle operations for one command invocation.
type Manager struct {
	cfg      *config.Config
	git      *git.Git
	store    *store.Store
	prs      PRResolver
	events   Journal
	decider  prompt.Decider
	sessions SessionLister
	agents   *agent.Resolver
	launcher Launcher
	names    *NameGenerator
	notify   func(Notice)

	getwd func() (string, error)
	chdir func(string) error
	now   func() time.Time

	operationID string
}

// Option configures a Manager.
type Option func(*Manager)

// WithPRResolver enables pull request lookups.
func WithPRResolver(r PRResolver) Option {
	return func(m *Manager) { m.prs = r }
}

// WithJournal records lifecycle events in j.
func WithJournal(j Journal) Option {
	return func(m *Manager) { m.events = j }
}

// WithDecider answers safety questions with d.
func WithDecider(d prompt.Decider) Option {
	return func(m *Manager) { m.decider = d }
}

// WithSessions overrides the session index.
func WithSessions(s SessionLister) Option {
	return func(m *Manager) { m.sessions = s }
}

// WithLauncher overrides how agents are started.
func WithLauncher(l Launcher) Option {
	return func(m *Manager) { m.launcher = l }
}

// WithNotifier receives every gate override as it happens.
func WithNotifier(fn func(Notice)) Option {
	return func(m *Manager) { m.notify = fn }
}

// WithWorkdir replaces the process working directory accessors.
func WithWorkdir(getwd func() (string, error), chdir func(string) error) Option {
	return func(m *Manager) {
		m.getwd = getwd
		m.chdir = chdir
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager returns a Manager. Without options questions take their
// defaults, nothing is journaled and pull requests are never consulted.
func NewManager(cfg *config.Config, g *git.Git, st *store.Store, opts ...Option) *Manager {
	m := &Manager{
		cfg:         cfg,
		git:         g,
		store:       st,
		decider:     prompt.Chain{},
		names:       NewNameGenerator(cfg.Env.Seed),
		getwd:       os.Getwd,
		chdir:       os.Chdir,
		now:         time.Now,
		operationID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sessions == nil {
		m.sessions = session.NewIndex(cfg.Sessions)
	}
	if m.launcher == nil {
		m.launcher = agent.NewLauncher()
	}
	m.agents = agent.NewResolver(m.sessions)
	return m
}

// OperationID identifies this invocation in the journal.
func (m *Manager) OperationID() string { return m.operationID }

// load reads the state document and persists any legacy-key migration at once.
func (m *Manager) load() (*store.Document, error) {
	doc, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if doc.Dirty() {
		for _, mig := range doc.Migrations() {
			logging.Info("migrated legacy worktree key", "from", mig.From, "to", mig.To, "dropped", mig.Dropped)
		}
		if err := m.store.Save(doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (m *Manager) save(doc *store.Document) error {
	if !doc.Dirty() {
		return nil
	}
	return m.store.Save(doc)
}

func (m *Manager) journal(ev *store.Event) {
	if m.events == nil {
		return
	}
	ev.OperationID = m.operationID
	if err := m.events.Record(ev); err != nil {
		logging.Warn("journal write failed", "key", ev.Key, "error", err)
	}
}

func (m *Manager) report(n Notice) {
	if m.notify != nil {
		m.notify(n)
	}
}

func (m *Manager) decide(ctx context.Context, q prompt.Question) (prompt.Decision, error) {
	return m.decider.Decide(ctx, q)
}

// repoContext describes the repository the command runs in.
type repoContext struct {
	Dir  string // top of the working tree containing cwd
	Root string // primary working directory
	Name string
}

func (m *Manager) currentRepo(ctx context.Context) (*repoContext, error) {
	cwd, err := m.getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	root, err := m.git.RepoRoot(ctx, cwd)
	if err != nil {
		return nil, fmt.Errorf("%w: not in a git repository: %w", ErrPrecondition, err)
	}
	dir, err := m.git.Toplevel(ctx, cwd)
	if err != nil {
		return nil, fmt.Errorf("%w: not in a working tree: %w", ErrPrecondition, err)
	}
	return &repoContext{Dir: dir, Root: root, Name: filepath.Base(root)}, nil
}

// currentRepoName is the repo of cwd, or "" outside a repository.
func (m *Manager) currentRepoName(ctx context.Context) string {
	rc, err := m.currentRepo(ctx)
	if err != nil {
		return ""
	}
	return rc.Name
}

// worktreePath is the sibling directory "<repo>-<name>" next to the primary tree.
func worktreePath(rc *repoContext, name string) string {
	return filepath.Join(filepath.Dir(rc.Root), rc.Name+"-"+name)
}

func (m *Manager) find(ctx context.Context, doc *store.Document, name string) (*store.Record, error) {
	rec, err := doc.Resolve(name, m.currentRepoName(ctx))
	if err != nil {
		return nil, storeErr(err)
	}
	return rec, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
