package tui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wricardo/mcp-training/relaychat/chat/session"
)

// Palette is the set of reactions offered by /react <index> <1-6>. Other
// emoji are still accepted and rendered after these.
var Palette = []string{"👍", "❤️", "😂", "😮", "😢", "👏"}

// Session is the chat session the view drives.
type Session interface {
	Snapshot() session.State
	Subscribe(o session.Observer)
	SubmitMessage(text string) bool
	ToggleReaction(index int, emoji string) bool
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	senderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	selfStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	mineStyle   = lipgloss.NewStyle().Underline(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type stateMsg session.State

type endedMsg struct{ err error }

// Ended reports that the session's inbound stream is over. Sending it to the
// program makes the view exit.
func Ended(err error) tea.Msg {
	return endedMsg{err: err}
}

// Model is the bubbletea model for a chat session.
type Model struct {
	session Session
	updates chan session.State
	keys    KeyMap

	state  session.State
	input  textinput.Model
	status string
	err    error

	width  int
	height int
}

// New builds a model bound to sess and subscribes it to state changes.
func New(sess Session) Model {
	input := textinput.New()
	input.Placeholder = "Say something, or /react <#> <emoji>"
	input.Prompt = "> "
	input.CharLimit = 2000
	input.Focus()

	updates := make(chan session.State, 1)
	sess.Subscribe(func(state session.State, changed bool) {
		if !changed {
			return
		}
		// Keep only the newest snapshot; the view never needs a stale one.
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- state:
		default:
		}
	})

	return Model{
		session: sess,
		updates: updates,
		keys:    DefaultKeyMap,
		state:   sess.Snapshot(),
		input:   input,
	}
}

// Err returns the error that ended the session, if any.
func (model Model) Err() error {
	return model.err
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForState(model.updates))
}

// waitForState blocks until the session publishes a new snapshot.
func waitForState(updates <-chan session.State) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-updates)
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.input.Width = max(message.Width-4, 10)
		return model, nil

	case stateMsg:
		model.state = session.State(message)
		return model, waitForState(model.updates)

	case endedMsg:
		model.err = message.err
		return model, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(message, model.keys.Quit):
			return model, tea.Quit
		case key.Matches(message, model.keys.Submit):
			return model.submit()
		}
	}

	var cmd tea.Cmd
	model.input, cmd = model.input.Update(message)
	return model, cmd
}

// submit handles the input line. The input is cleared whatever the outcome.
func (model Model) submit() (tea.Model, tea.Cmd) {
	line := model.input.Value()
	model.input.SetValue("")
	model.status = ""

	fields := strings.Fields(line)
	if len(fields) > 0 {
		switch fields[0] {
		case "/quit":
			return model, tea.Quit
		case "/react":
			model.status = model.react(fields[1:])
			return model, nil
		}
	}

	if strings.TrimSpace(line) == "" {
		return model, nil
	}
	if !model.session.SubmitMessage(line) {
		model.status = "not sent: connection unavailable"
	}
	return model, nil
}

// react toggles a reaction and returns a status line on failure.
func (model Model) react(args []string) string {
	if len(args) != 2 {
		return "usage: /react <message #> <emoji or 1-6>"
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Sprintf("bad message number %q", args[0])
	}
	emoji := args[1]
	if n, err := strconv.Atoi(emoji); err == nil {
		if n < 1 || n > len(Palette) {
			return fmt.Sprintf("palette has %d reactions", len(Palette))
		}
		emoji = Palette[n-1]
	}
	if !model.session.ToggleReaction(index, emoji) {
		return fmt.Sprintf("no message #%d", index)
	}
	return ""
}

// View implements tea.Model.
func (model Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Relay Chat"))
	b.WriteString(dimStyle.Render(" · you are " + model.state.CurrentUser))
	b.WriteString("\n")
	b.WriteString(model.renderRoster())
	b.WriteString("\n\n")

	lines := model.renderMessages()
	if model.height > 0 {
		// title, roster, blank, input, status, help
		room := max(model.height-7, 1)
		if len(lines) > room {
			lines = lines[len(lines)-room:]
		}
	}
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(model.input.View())
	b.WriteString("\n")
	if model.status != "" {
		b.WriteString(statusStyle.Render(model.status))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(model.helpLine()))
	return b.String()
}

func (model Model) helpLine() string {
	submit, quit := model.keys.Submit.Help(), model.keys.Quit.Help()
	return fmt.Sprintf("%s %s · %s %s · /react <#> <1-6>: %s",
		submit.Key, submit.Desc, quit.Key, quit.Desc, strings.Join(Palette, " "))
}

func (model Model) renderRoster() string {
	if len(model.state.Users) == 0 {
		return dimStyle.Render("nobody online")
	}
	names := make([]string, 0, len(model.state.Users))
	for _, u := range model.state.Users {
		if u.Name == model.state.CurrentUser {
			names = append(names, selfStyle.Render(u.Name))
		} else {
			names = append(names, u.Name)
		}
	}
	return dimStyle.Render(fmt.Sprintf("online (%d): ", len(names))) + strings.Join(names, ", ")
}

func (model Model) renderMessages() []string {
	if len(model.state.Messages) == 0 {
		return []string{dimStyle.Render("no messages yet")}
	}
	lines := make([]string, 0, len(model.state.Messages))
	for i, m := range model.state.Messages {
		style := senderStyle
		if m.Sender == model.state.CurrentUser {
			style = selfStyle
		}
		line := dimStyle.Render(fmt.Sprintf("#%d ", i)) + style.Render(m.Sender) + ": " + m.Body
		if r := model.renderReactions(m.Reactions); r != "" {
			line += "  " + r
		}
		lines = append(lines, line)
	}
	return lines
}

// renderReactions lists palette reactions first, then any others in the
// order they were first used. Reactions by the current user are underlined.
func (model Model) renderReactions(reactions session.Reactions) string {
	emoji := make([]string, 0, len(reactions))
	for _, p := range Palette {
		if reactions.Count(p) > 0 {
			emoji = append(emoji, p)
		}
	}
	for _, r := range reactions {
		if !slices.Contains(Palette, r.Emoji) {
			emoji = append(emoji, r.Emoji)
		}
	}

	parts := make([]string, 0, len(emoji))
	for _, e := range emoji {
		part := fmt.Sprintf("%s %d", e, reactions.Count(e))
		if reactions.Has(e, model.state.CurrentUser) {
			part = mineStyle.Render(part)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}
