package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"futurecast/internal/logging"
)

// InitChat builds the interactive model around an already-loaded session.
func InitChat(session Session) Model {
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Ask about the futurecast... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "| "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.Prompt
	ti.TextStyle = styles.UserInput

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	history := []Message{{
		Role:    "assistant",
		Content: welcomeMessage(session),
		Time:    time.Now(),
	}}

	return Model{
		input:        ti,
		viewport:     vp,
		spinner:      sp,
		styles:       styles,
		renderer:     renderer,
		viewMode:     ConversationView,
		session:      session,
		history:      history,
		historyIndex: -1,
	}
}

func welcomeMessage(session Session) string {
	var sb strings.Builder
	sb.WriteString("Futurecast loaded")
	if session.Scenario != "" {
		sb.WriteString(fmt.Sprintf(" for scenario: **%s**", session.Scenario))
	}
	sb.WriteString(".\n\nAsk questions, or try:\n")
	sb.WriteString("- `Change effect 1.2 to 'new text'`\n")
	sb.WriteString("- `Expand effect 2.1 by 2 levels with focus on 'economics'`\n")
	sb.WriteString("- `/tree`, `/summary`, `/save`, `/help`, `/quit`")
	return sb.String()
}

// RunInteractiveChat starts the interactive session and blocks until quit.
func RunInteractiveChat(session Session) error {
	model := InitChat(session)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

// Init starts the blink/spinner loops and the saved-directory listener.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.session.Watcher != nil {
		cmds = append(cmds, m.waitForCastChanges())
	}
	return tea.Batch(cmds...)
}

// waitForCastChanges blocks on the watcher channel and re-arms after
// each delivery.
func (m Model) waitForCastChanges() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-m.session.Watcher.Changes(); !ok {
			return nil
		}
		return castsChangedMsg{}
	}
}

// dispatchInput runs one user input through the chatbot off the UI loop.
func (m Model) dispatchInput(input string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		return botResponseMsg(m.session.Dispatcher.Dispatch(ctx, input))
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyUp:
			if len(m.inputHistory) > 0 && m.historyIndex < len(m.inputHistory)-1 {
				m.historyIndex++
				m.input.SetValue(m.inputHistory[len(m.inputHistory)-1-m.historyIndex])
				m.input.CursorEnd()
			}
			return m, nil

		case tea.KeyDown:
			if m.historyIndex > 0 {
				m.historyIndex--
				m.input.SetValue(m.inputHistory[len(m.inputHistory)-1-m.historyIndex])
				m.input.CursorEnd()
			} else if m.historyIndex == 0 {
				m.historyIndex = -1
				m.input.SetValue("")
			}
			return m, nil

		case tea.KeyEnter:
			if m.isLoading {
				return m, nil
			}
			input := strings.TrimSpace(m.input.Value())
			if input == "" {
				// An empty Enter in a non-chat mode falls back to the
				// conversation.
				if m.viewMode != ConversationView {
					m.viewMode = ConversationView
					m.refreshViewport()
				}
				return m, nil
			}

			m.input.Reset()
			m.inputHistory = append(m.inputHistory, input)
			m.historyIndex = -1

			if strings.HasPrefix(input, "/") {
				return m.handleSlashCommand(input)
			}

			m.viewMode = ConversationView
			m.history = append(m.history, Message{Role: "user", Content: input, Time: time.Now()})
			m.isLoading = true
			m.refreshViewport()
			return m, tea.Batch(m.spinner.Tick, m.dispatchInput(input))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 3
		footerHeight := 2
		inputHeight := 3
		vpHeight := m.height - headerHeight - footerHeight - inputHeight
		if vpHeight < 3 {
			vpHeight = 3
		}

		m.viewport = viewport.New(m.width-2, vpHeight)
		m.input.Width = m.width - 6
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(m.width-4),
		)
		m.ready = true
		m.refreshViewport()
		return m, nil

	case botResponseMsg:
		m.isLoading = false
		m.history = append(m.history, Message{Role: "assistant", Content: string(msg), Time: time.Now()})
		m.refreshViewport()
		return m, nil

	case castSavedMsg:
		m.isLoading = false
		m.history = append(m.history, Message{
			Role:    "system",
			Content: fmt.Sprintf("Saved futurecast to %s", string(msg)),
			Time:    time.Now(),
		})
		m.refreshViewport()
		return m, nil

	case castsChangedMsg:
		logging.Chat("saved directory changed on disk")
		m.history = append(m.history, Message{
			Role:    "system",
			Content: "Saved futurecasts changed on disk.",
			Time:    time.Now(),
		})
		m.refreshViewport()
		return m, m.waitForCastChanges()

	case errMsg:
		m.isLoading = false
		m.err = msg
		m.history = append(m.history, Message{
			Role:    "system",
			Content: fmt.Sprintf("Error: %v", error(msg)),
			Time:    time.Now(),
		})
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}
		return m, nil
	}

	m.input, tiCmd = m.input.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// refreshViewport re-renders the active mode's content and keeps the chat
// transcript pinned to the bottom.
func (m *Model) refreshViewport() {
	switch m.viewMode {
	case TreeView:
		m.viewport.SetContent(m.renderTree())
		m.viewport.GotoTop()
	case SummaryView:
		m.viewport.SetContent(m.renderSummary())
		m.viewport.GotoTop()
	default:
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
	}
}
