package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/drewfead/pigs/internal/cli"
	"github.com/drewfead/pigs/internal/prompt"
	"github.com/drewfead/pigs/internal/worktree"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:     "create [name]",
	Aliases: []string{"new"},
	Short:   "Create a worktree next to the current repository",
	Long: `Create a worktree and a branch of the same name next to the current
repository. Without a name one is generated. Without --from the current
branch must be a base branch (main, master, develop or the remote default).

--from accepts a tracked worktree name, a local branch or a branch on origin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		a := getApp(cmd.Context())
		name, _, _ := a.Input.Value(firstArg(args))

		res, err := a.Manager.Create(cmd.Context(), worktree.CreateOptions{Name: name, From: from})
		if err != nil {
			return err
		}
		printCreated(res)
		return offerOpen(cmd, a, res)
	},
}

var checkoutCmd = &cobra.Command{
	Use:     "checkout <branch|#pr>",
	Aliases: []string{"co"},
	Short:   "Create a worktree for an existing branch or pull request",
	Long: `Create a worktree for an existing branch, fetching it from origin when it
only exists there. A pull request number (42 or #42) is resolved to its head
branch with gh, or fetched as pr/<n> when gh is unavailable.

If a worktree already tracks the branch it is reported instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd.Context())
		res, err := a.Manager.Checkout(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printCreated(res)
		return offerOpen(cmd, a, res)
	},
}

var addCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Track the worktree containing the current directory",
	Long: `Start tracking a worktree that was created with plain git. The name
defaults to the checked-out branch.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp(cmd.Context())
		res, err := a.Manager.Add(cmd.Context(), firstArg(args))
		if err != nil {
			return err
		}
		printCreated(res)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete [name]",
	Aliases: []string{"rm"},
	Short:   "Remove a worktree and its branch",
	Long: `Remove a worktree and delete its branch. Uncommitted changes, unpushed
commits and unmerged branches are confirmed first; a merged pull request
counts as merged.

Answers can come from --yes, PIGS_NON_INTERACTIVE, piped stdin (y/n per
question) or the terminal. Any yes that was not typed is reported.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		keep, _ := cmd.Flags().GetBool("keep-branch")
		opts := worktree.DeleteOptions{KeepBranch: keep}
		a := getApp(cmd.Context())

		if all {
			if len(args) > 0 {
				return fmt.Errorf("%w: --all takes no name", worktree.ErrPrecondition)
			}
			done, err := a.Manager.DeleteAll(cmd.Context(), opts)
			for _, del := range done {
				printDeletion(del)
			}
			if len(done) == 0 && err == nil {
				fmt.Println(cli.Dimmed("No worktrees to delete."))
			}
			return err
		}

		name, _, ok := a.Input.Value(firstArg(args))
		if !ok {
			return fmt.Errorf("%w: name a worktree or pass --all", worktree.ErrPrecondition)
		}
		del, err := a.Manager.Delete(cmd.Context(), name, opts)
		if err != nil {
			return err
		}
		printDeletion(del)
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Forget worktrees whose directories are gone",
	Long: `Drop records whose worktree no longer exists on disk or is no longer
known to git. Repositories that cannot be read are skipped and their
records kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := getApp(cmd.Context()).Manager.Clean(cmd.Context())
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracked worktrees with recent agent sessions",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		entries, err := getApp(cmd.Context()).Manager.List(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		printList(entries)
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open <name> [-- agent args...]",
	Short: "Launch the agent in a worktree",
	Long: `Launch the configured agent in a worktree. Codex resumes the latest
session recorded for the worktree unless a prompt or subcommand is given.

The agent is chosen from --agent, the repository's .pigs/settings.json,
then the default set with "pigs agent".`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		agentLine, _ := cmd.Flags().GetString("agent")
		_, err := getApp(cmd.Context()).Manager.Open(cmd.Context(), args[0], worktree.OpenOptions{
			Agent: agentLine,
			Args:  args[1:],
		})
		return err
	},
}

var renameCmd = &cobra.Command{
	Use:               "rename <old> <new>",
	Aliases:           []string{"mv"},
	Short:             "Rename a worktree; its directory and branch stay",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := getApp(cmd.Context()).Manager.Rename(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", cli.GreenText("Renamed"), cli.Bolden(rec.Key()))
		return nil
	},
}

var agentCmd = &cobra.Command{
	Use:   "agent [command...]",
	Short: "Show or set the default agent command",
	Long: `Without arguments print the default agent command. With arguments
store them as the new default, e.g.

  pigs agent codex --full-auto`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := getApp(cmd.Context()).Manager
		if len(args) == 0 {
			line, err := m.Agent(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(line)
			return nil
		}
		line := strings.Join(args, " ")
		if err := m.SetAgent(cmd.Context(), line); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", cli.GreenText("Agent set to"), cli.Bolden(line))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:               "history [name]",
	Short:             "Show lifecycle events, newest first",
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		events, err := getApp(cmd.Context()).Manager.History(cmd.Context(), firstArg(args), limit)
		if err != nil {
			return err
		}
		printHistory(events)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:               "info <name>",
	Short:             "Show status, sessions and history of a worktree",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		d, err := getApp(cmd.Context()).Manager.Inspect(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		fmt.Print(renderMarkdown(infoMarkdown(d)))
		return nil
	},
}

func init() {
	createCmd.Flags().String("from", "", "Start from this worktree or branch")
	deleteCmd.Flags().Bool("all", false, "Delete every worktree of the current repository")
	deleteCmd.Flags().Bool("keep-branch", false, "Keep the branch; skips the unpushed and unmerged checks")
	listCmd.Flags().Bool("json", false, "Print records as JSON")
	openCmd.Flags().String("agent", "", "Agent command line for this launch")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum events to show")
	infoCmd.Flags().IntP("limit", "n", 10, "Maximum events to show")

	// Agent arguments belong to the agent.
	agentCmd.Flags().SetInterspersed(false)
	openCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(createCmd, checkoutCmd, addCmd, deleteCmd, cleanCmd,
		listCmd, openCmd, renameCmd, agentCmd, historyCmd, infoCmd)
}

// offerOpen asks whether to launch the agent in a new worktree. It only asks
// on a terminal and never in non-interactive mode.
func offerOpen(cmd *cobra.Command, a *App, res *worktree.Result) error {
	if env.NoAutoOpen || env.NonInteractive || !a.Input.IsTerminal() {
		return nil
	}
	d, err := prompt.Chain{prompt.Interactive{Input: a.Input, Output: os.Stderr}}.Decide(cmd.Context(), prompt.Question{
		ID:      "open.after_create",
		Text:    fmt.Sprintf("Open %s now?", res.Record.Key()),
		Default: true,
	})
	if err != nil {
		if errors.Is(err, prompt.ErrInterrupted) {
			return nil
		}
		return err
	}
	if !d.Yes {
		return nil
	}
	_, err = a.Manager.Open(cmd.Context(), res.Record.Key(), worktree.OpenOptions{})
	return err
}

// completeNames completes tracked worktree names.
func completeNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if err := setup(); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	names, err := getApp(cmd.Context()).Manager.Names(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, toComplete) {
			out = append(out, n)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
