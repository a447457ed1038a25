// Command pigs manages git worktrees for AI coding-agent sessions.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/drewfead/pigs/internal/config"
	"github.com/drewfead/pigs/internal/executil"
	"github.com/drewfead/pigs/internal/git"
	"github.com/drewfead/pigs/internal/github"
	"github.com/drewfead/pigs/internal/logging"
	"github.com/drewfead/pigs/internal/prompt"
	"github.com/drewfead/pigs/internal/store"
	"github.com/drewfead/pigs/internal/worktree"
	"github.com/spf13/cobra"
)

// version is set at build time.
var version = "dev"

var (
	env config.Env
	cfg *config.Config
	app *App
)

// Global flags
var (
	flagDir     string
	flagYes     bool
	flagVerbose bool
)

func main() {
	os.Exit(run())
}

func run() int {
	env = config.EnvFromOS()

	var err error
	cfg, err = config.Load(env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return exitFailure
	}
	defer logging.Flush(2 * time.Second)
	defer func() { app.Close() }()

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		return exitCode(err)
	}
	return exitOK
}

var rootCmd = &cobra.Command{
	Use:   "pigs",
	Short: "Manage git worktrees for coding-agent sessions",
	Long: `pigs creates, tracks and removes git worktrees that each host an AI
coding-agent session.

Worktrees live next to the repository as <repo>-<name>. Names are unique
per repository; use <repo>/<name> to refer to a worktree of another repo.

Examples:
  pigs create                  # New worktree with a generated name
  pigs create login --from dev # New branch "login" starting at dev
  pigs checkout '#42'          # Worktree for pull request 42
  pigs open login              # Start (or resume) the agent there
  pigs delete login            # Remove after safety checks`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDir, "directory", "C", "", "Run as if started in this directory")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "Answer yes to every confirmation")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log debug diagnostics to stderr")
}

// setup applies global flags and initializes logging. It runs before every
// command and before completions.
func setup() error {
	if flagDir != "" {
		if err := os.Chdir(flagDir); err != nil {
			return fmt.Errorf("%w: %w", worktree.ErrPrecondition, err)
		}
	}

	lc := logging.Config{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		SentryDSN: cfg.Logging.SentryDSN,
		Env:       cfg.Logging.Env,
		Version:   version,
		LogFile:   cfg.Logging.File,
	}
	if flagVerbose {
		lc.Level = slog.LevelDebug
	}
	return logging.Init(lc)
}

// App holds the collaborators of one invocation.
type App struct {
	Manager *worktree.Manager
	Input   *prompt.Input
	journal *store.Journal
}

// getApp builds the App on first use.
func getApp(ctx context.Context) *App {
	if app != nil {
		return app
	}

	input := prompt.NewInput(os.Stdin)
	g := git.New(executil.NewExec(cfg.Timeouts.Git),
		git.WithFetchRunner(executil.NewExec(cfg.Timeouts.Fetch)),
		git.WithBaseBranches(cfg.Worktrees.BaseBranches...),
	)

	opts := []worktree.Option{
		worktree.WithDecider(prompt.NewChain(prompt.Flag{Yes: flagYes}, env.NonInteractive, input, os.Stderr)),
		worktree.WithNotifier(printNotice),
	}

	gh := github.New(executil.NewExec(cfg.Timeouts.GitHub))
	if c := gh.Probe(ctx); c != github.CapabilityAbsent {
		opts = append(opts, worktree.WithPRResolver(gh))
	} else {
		logging.Debug("gh not installed; pull request lookups disabled")
	}

	j, err := store.OpenJournal(cfg.JournalPath())
	if err != nil {
		logging.Warn("lifecycle journal unavailable", "path", cfg.JournalPath(), "error", err)
	} else {
		opts = append(opts, worktree.WithJournal(j))
	}

	app = &App{
		Manager: worktree.NewManager(cfg, g, store.New(cfg.StatePath()), opts...),
		Input:   input,
		journal: j,
	}
	logging.Debug("pigs started", "operation_id", app.Manager.OperationID(), "version", version)
	return app
}

// Close releases the journal. Safe on a nil App.
func (a *App) Close() {
	if a == nil || a.journal == nil {
		return
	}
	if err := a.journal.Close(); err != nil {
		logging.Warn("failed to close journal", "error", err)
	}
}
