package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/jchatbot/jchat/internal/chat"
	"github.com/jchatbot/jchat/internal/client"
	"github.com/jchatbot/jchat/internal/conversation"
	"github.com/jchatbot/jchat/internal/typing"
)

const (
	// dotInterval paces the "thinking" indicator animation.
	dotInterval = 300 * time.Millisecond

	// touchInterval throttles session keep-alive writes while the user types.
	touchInterval = 30 * time.Second

	// caret marks the message currently being revealed.
	caret = "▌"
)

// chatTheme holds the color scheme for the chat display.
type chatTheme struct {
	User  lipgloss.Color
	Bot   lipgloss.Color
	Error lipgloss.Color
	Hint  lipgloss.Color
}

var defaultChatTheme = chatTheme{
	User:  lipgloss.Color("#5FAFD7"), // light blue
	Bot:   lipgloss.Color("#00D787"), // green
	Error: lipgloss.Color("#FF005F"), // red
	Hint:  lipgloss.Color("#6C6C6C"), // dim gray
}

func (t chatTheme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t chatTheme) botStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Bot).Bold(true)
}

func (t chatTheme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t chatTheme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// frameMsg asks for a repaint after the engine or conversation changed.
type frameMsg struct{}

// dotTickMsg advances the thinking indicator.
type dotTickMsg time.Time

// submitDoneMsg signals that the submit pipeline settled.
type submitDoneMsg struct{}

// chatModel is the bubbletea model for the interactive chat.
type chatModel struct {
	orch     *chat.Orchestrator
	state    *conversation.State
	engine   *typing.Engine
	identity string

	input     textinput.Model
	theme     chatTheme
	width     int
	dots      int
	lastTouch time.Time
	quitting  bool
}

// newChatModel creates the chat model with a focused input.
func newChatModel(orch *chat.Orchestrator, state *conversation.State, engine *typing.Engine, identity string) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "> "
	ti.Focus()

	return chatModel{
		orch:     orch,
		state:    state,
		engine:   engine,
		identity: identity,
		input:    ti,
		theme:    defaultChatTheme,
		width:    80,
	}
}

// Init returns the initial command.
func (m chatModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit

		case "ctrl+l":
			m.engine.Cancel()
			m.state.Clear()
			return m, nil

		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.orch.Loading() {
				return m, nil
			}
			m.input.Reset()
			return m, tea.Batch(m.submit(text), dotTick())
		}

		// Typing counts as activity and keeps the session window open,
		// throttled so we don't write on every keystroke.
		m = m.touchSession()

	case dotTickMsg:
		if m.orch.Loading() {
			m.dots++
			return m, dotTick()
		}
		return m, nil

	case frameMsg, submitDoneMsg:
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// touchSession refreshes the session TTL at most once per touchInterval.
// Every keypress counts as activity, but a store write per keystroke buys
// nothing against a five-day window; do not lower this to per-event writes.
func (m chatModel) touchSession() chatModel {
	if time.Since(m.lastTouch) < touchInterval {
		return m
	}
	m.orch.Touch()
	m.lastTouch = time.Now()
	return m
}

// submit runs the orchestrator pipeline off the UI goroutine.
func (m chatModel) submit(text string) tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()
		orch.Submit(ctx, text)
		return submitDoneMsg{}
	}
}

// dotTick schedules the next thinking-indicator frame.
func dotTick() tea.Cmd {
	return tea.Tick(dotInterval, func(t time.Time) tea.Msg {
		return dotTickMsg(t)
	})
}

// View renders the chat display.
func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the transcript, status lines and input prompt.
func (m chatModel) renderContent() string {
	var b strings.Builder

	b.WriteString(m.theme.botStyle().Render("JChatBot"))
	b.WriteString(m.theme.hintStyle().Render("  Enter to send, Ctrl+L to clear, Esc to quit"))
	b.WriteString("\n\n")

	wrap := lipgloss.NewStyle().Width(m.width - 2)

	for _, msg := range m.state.Messages() {
		if msg.IsUser {
			b.WriteString(m.theme.userStyle().Render("You: "))
			b.WriteString(wrap.Render(msg.Text))
		} else {
			text := msg.Text
			if m.engine.IsRevealing(msg.ID) {
				text = m.engine.Revealed() + caret
			}
			b.WriteString(m.theme.botStyle().Render("Bot: "))
			b.WriteString(wrap.Render(text))
		}
		b.WriteString("\n")
	}

	if errText := m.orch.Err(); errText != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.errorStyle().Render("✗ " + errText))
		b.WriteString("\n")
	}

	if m.orch.Loading() {
		b.WriteString("\n")
		b.WriteString(m.theme.hintStyle().Render("thinking" + strings.Repeat(".", m.dots%3+1)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	return b.String()
}

// runChat wires the conversation stack together and runs the TUI.
func runChat() error {
	identity := sessions.GetOrCreateIdentity()
	if identity == "" {
		return fmt.Errorf("could not establish a user identity")
	}
	sessionID := sessions.NewSessionID()

	state := conversation.New(st, sessions, logger)

	// The program pointer is set before Run; callbacks only fire afterwards.
	var program *tea.Program
	notify := func() {
		if program != nil {
			program.Send(frameMsg{})
		}
	}

	engine := typing.New(func(id string) (string, bool) {
		msg, ok := state.Message(id)
		return msg.Text, ok
	}, typing.WithOnFrame(notify))
	state.OnChange = notify

	state.Load(identity, sessionID)
	sessions.Touch(identity)

	transport := client.New(cfg.ServerURL)
	orch := chat.New(state, sessions, transport, engine, identity, sessionID, logger)

	model := newChatModel(orch, state, engine, identity)
	program = tea.NewProgram(model)

	_, err := program.Run()

	engine.Cancel()
	state.Flush()

	if err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
