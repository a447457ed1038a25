package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/drewfead/pigs/internal/cli"
	"github.com/drewfead/pigs/internal/store"
	"github.com/drewfead/pigs/internal/worktree"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

func printCreated(res *worktree.Result) {
	rec := res.Record
	if res.Existing {
		fmt.Printf("%s %s already tracks %s\n", cli.YellowText(cli.Bullet), cli.Bolden(rec.Key()), rec.Branch)
		fmt.Printf("  %s\n", cli.Dimmed(rec.Path))
		return
	}
	fmt.Printf("%s %s\n", cli.GreenText(cli.CheckMark), cli.Bolden(rec.Key()))
	fmt.Printf("  branch %s\n", rec.Branch)
	fmt.Printf("  path   %s\n", cli.Dimmed(rec.Path))
	if len(res.Copied) > 0 {
		fmt.Printf("  copied %s\n", strings.Join(res.Copied, ", "))
	}
	printWarnings(res.Warnings)
}

func printDeletion(del *worktree.Deletion) {
	fmt.Printf("%s deleted %s\n", cli.GreenText(cli.CheckMark), cli.Bolden(del.Record.Key()))
	if del.Pruned {
		fmt.Printf("  %s\n", cli.Dimmed("directory was already gone; pruned"))
	}
	switch {
	case del.BranchDeleted:
		fmt.Printf("  branch %s deleted\n", del.Record.Branch)
	case del.BranchKept != "":
		fmt.Printf("  branch %s kept: %s\n", del.Record.Branch, del.BranchKept)
	}
	printWarnings(del.Warnings)
}

func printReport(r *worktree.Report) {
	for _, rec := range r.Removed {
		fmt.Printf("%s forgot %s %s\n", cli.GreenText(cli.CheckMark), cli.Bolden(rec.Key()), cli.Dimmed(rec.Path))
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(os.Stderr, "%s skipped %s (%s): %v\n",
			cli.YellowText(cli.Warning), s.Path, strings.Join(s.Keys, ", "), s.Err)
	}
	if !r.Changed() {
		fmt.Println(cli.Dimmed(fmt.Sprintf("Nothing to clean (%d checked).", r.Checked)))
		return
	}
	fmt.Printf("Removed %d of %d record(s).\n", len(r.Removed), r.Checked)
}

func printList(entries []worktree.Entry) {
	if len(entries) == 0 {
		fmt.Println(cli.Dimmed("No worktrees. Create one with: pigs create"))
		return
	}

	keyWidth, branchWidth := 0, 0
	for _, e := range entries {
		keyWidth = max(keyWidth, len(e.Key))
		branchWidth = max(branchWidth, len(e.Branch))
	}

	for _, e := range entries {
		mark := cli.GreenText(cli.Bullet)
		path := cli.Dimmed(e.Path)
		if e.Missing {
			mark = cli.RedText(cli.Circle)
			path = cli.RedText(e.Path + " (missing)")
		}
		fmt.Printf("%s %s  %s  %s\n", mark,
			cli.Pad(cli.Bolden(e.Key), keyWidth),
			cli.Pad(cli.CyanText(e.Branch), branchWidth),
			path)

		for i, s := range e.Sessions {
			branch := cli.TreeBranch
			if i == len(e.Sessions)-1 {
				branch = cli.TreeLastBranch
			}
			fmt.Printf("  %s %s %s  %s\n", cli.Dimmed(branch),
				cli.Pad(string(s.Agent), 6),
				cli.Dimmed(cli.Pad(humanize.Time(s.Timestamp), 14)),
				cli.Truncate(s.LastUserMessage, 72))
		}
	}
}

func printHistory(events []*store.Event) {
	if len(events) == 0 {
		fmt.Println(cli.Dimmed("No recorded events."))
		return
	}
	for _, ev := range events {
		var what string
		switch ev.Kind {
		case store.EventOverride:
			what = cli.YellowText("override") + " " + ev.Detail
		case store.EventWarning:
			what = cli.YellowText("warning") + " " + ev.Detail
		default:
			what = transition(ev.FromState, ev.ToState)
			if ev.Detail != "" {
				what += " " + cli.Dimmed(ev.Detail)
			}
		}
		fmt.Printf("%s  %s  %s\n",
			cli.Dimmed(ev.CreatedAt.Local().Format("2006-01-02 15:04:05")),
			cli.Bolden(ev.Key), what)
	}
}

func transition(from, to string) string {
	if from == "" {
		return cli.StateText(to)
	}
	return cli.StateText(from) + " → " + cli.StateText(to)
}

// infoMarkdown renders Details as a markdown document.
func infoMarkdown(d *worktree.Details) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Key)
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| branch | `%s` |\n", d.Branch)
	fmt.Fprintf(&b, "| path | `%s` |\n", d.Path)
	if d.RepoPath != "" {
		fmt.Fprintf(&b, "| repository | `%s` |\n", d.RepoPath)
	}
	fmt.Fprintf(&b, "| created | %s |\n", d.CreatedAt.Local().Format(time.RFC1123))

	b.WriteString("\n## Status\n\n")
	if d.Missing {
		b.WriteString("- **directory is missing**; run `pigs clean`\n")
	} else {
		fmt.Fprintf(&b, "- uncommitted changes: %s\n", yesNo(d.Uncommitted))
		fmt.Fprintf(&b, "- unpushed commits: %s\n", yesNo(d.Unpushed))
	}
	fmt.Fprintf(&b, "- merged locally: %s\n", yesNo(d.Merged))
	fmt.Fprintf(&b, "- pull request: %s\n", d.PRState)
	for _, p := range d.Problems {
		fmt.Fprintf(&b, "- _could not check %v_\n", p)
	}

	if len(d.Sessions) > 0 {
		b.WriteString("\n## Sessions\n\n")
		for _, s := range d.Sessions {
			fmt.Fprintf(&b, "- **%s** %s: %s\n", s.Agent, humanize.Time(s.Timestamp), s.LastUserMessage)
		}
	}

	if len(d.Events) > 0 {
		b.WriteString("\n## History\n\n")
		for _, ev := range d.Events {
			line := ev.ToState
			if ev.FromState != "" {
				line = ev.FromState + " → " + ev.ToState
			}
			if ev.Kind != store.EventTransition {
				line = ev.Kind
			}
			if ev.Detail != "" {
				line += " (" + ev.Detail + ")"
			}
			fmt.Fprintf(&b, "- %s %s\n", ev.CreatedAt.Local().Format("2006-01-02 15:04"), line)
		}
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// renderMarkdown renders markdown for the terminal, or returns it unchanged
// when colors are off.
func renderMarkdown(content string) string {
	if !cli.ColorsEnabled() {
		return content
	}
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 40 {
		width = w - 4
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content // fallback to raw
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

func printWarnings(warnings []error) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "%s %v\n", cli.YellowText("warning:"), w)
	}
}

// printNotice reports a safety check that was passed without a typed answer.
func printNotice(n worktree.Notice) {
	fmt.Fprintf(os.Stderr, "%s %s confirmed by %s for %s\n",
		cli.YellowText("override:"), n.Gate, n.Source, n.Key)
}

func printError(err error) {
	msg := err.Error()
	if errors.Is(err, worktree.ErrGateDeclined) {
		msg += "; nothing was changed"
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", cli.RedText("error:"), msg)
}
