package prompt

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrInterrupted is returned when the user aborts a prompt with ctrl+c.
var ErrInterrupted = errors.New("prompt interrupted")

var (
	colorFg     = lipgloss.Color("#c0caf5")
	colorMuted  = lipgloss.Color("#565f89")
	colorYes    = lipgloss.Color("#9ece6a")
	colorNo     = lipgloss.Color("#f7768e")
	colorAccent = lipgloss.Color("#d4a373")

	styleQuestion = lipgloss.NewStyle().Foreground(colorFg).Bold(true)
	styleWarning  = lipgloss.NewStyle().Foreground(colorAccent)
	styleHint     = lipgloss.NewStyle().Foreground(colorMuted)
	styleOption   = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
	styleYes      = lipgloss.NewStyle().Foreground(lipgloss.Color("#1a1b26")).Background(colorYes).Padding(0, 1).Bold(true)
	styleNo       = lipgloss.NewStyle().Foreground(lipgloss.Color("#1a1b26")).Background(colorNo).Padding(0, 1).Bold(true)
)

type confirmKeys struct {
	Yes    key.Binding
	No     key.Binding
	Toggle key.Binding
	Submit key.Binding
	Cancel key.Binding
	Abort  key.Binding
}

var defaultConfirmKeys = confirmKeys{
	Yes:    key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
	No:     key.NewBinding(key.WithKeys("n", "N"), key.WithHelp("n", "no")),
	Toggle: key.NewBinding(key.WithKeys("left", "right", "h", "l", "tab"), key.WithHelp("←/→", "toggle")),
	Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
	Cancel: key.NewBinding(key.WithKeys("esc", "q"), key.WithHelp("esc", "no")),
	Abort:  key.NewBinding(key.WithKeys("ctrl+c")),
}

// confirmModel is a single yes/no question.
type confirmModel struct {
	question    Question
	keys        confirmKeys
	choice      bool
	done        bool
	interrupted bool
}

func newConfirmModel(q Question) confirmModel {
	return confirmModel{question: q, keys: defaultConfirmKeys, choice: q.Default}
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(kmsg, m.keys.Abort):
		m.interrupted = true
		m.done = true
		return m, tea.Quit
	case key.Matches(kmsg, m.keys.Yes):
		m.choice = true
		m.done = true
		return m, tea.Quit
	case key.Matches(kmsg, m.keys.No), key.Matches(kmsg, m.keys.Cancel):
		m.choice = false
		m.done = true
		return m, tea.Quit
	case key.Matches(kmsg, m.keys.Toggle):
		m.choice = !m.choice
	case key.Matches(kmsg, m.keys.Submit):
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		answer := "no"
		if m.choice {
			answer = "yes"
		}
		return styleQuestion.Render(m.question.Text) + " " + styleHint.Render(answer) + "\n"
	}

	yes, no := styleOption.Render("Yes"), styleOption.Render("No")
	if m.choice {
		yes = styleYes.Render("Yes")
	} else {
		no = styleNo.Render("No")
	}

	text := styleQuestion.Render(m.question.Text)
	if m.question.Destructive {
		text = styleWarning.Render("! ") + text
	}
	hint := styleHint.Render("y/n · ←/→ to toggle · enter to confirm")
	return lipgloss.JoinVertical(lipgloss.Left,
		text,
		lipgloss.JoinHorizontal(lipgloss.Top, yes, " ", no),
		hint,
	) + "\n"
}

// Interactive asks on the terminal. It has no answer when stdin is not a
// terminal, letting the chain fall through to the default.
type Interactive struct {
	Input  *Input
	Output io.Writer
}

// Decide implements Resolver.
func (i Interactive) Decide(ctx context.Context, q Question) (Decision, bool, error) {
	if i.Input == nil || !i.Input.IsTerminal() {
		return Decision{}, false, nil
	}
	out := i.Output
	if out == nil {
		out = os.Stderr
	}

	p := tea.NewProgram(newConfirmModel(q),
		tea.WithContext(ctx),
		tea.WithInput(i.Input.File()),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return Decision{}, false, err
	}
	m, ok := final.(confirmModel)
	if !ok {
		return Decision{}, false, nil
	}
	if m.interrupted {
		return Decision{}, false, ErrInterrupted
	}
	return Decision{Yes: m.choice, Source: SourceInteractive}, true, nil
}

// NewChain assembles the standard resolution order.
func NewChain(flags Flag, nonInteractive bool, in *Input, out io.Writer) Chain {
	return Chain{
		flags,
		Auto{Enabled: nonInteractive},
		Piped{Input: in},
		Interactive{Input: in, Output: out},
	}
}
