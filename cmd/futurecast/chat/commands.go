package chat

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"futurecast/internal/forecast"
)

// handleSlashCommand processes "/" commands locally, without the NLU.
func (m Model) handleSlashCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	command := strings.ToLower(fields[0])

	switch command {
	case "/quit", "/exit", "/q":
		return m, tea.Quit

	case "/tree":
		m.viewMode = TreeView
		m.refreshViewport()
		return m, nil

	case "/summary":
		m.viewMode = SummaryView
		m.refreshViewport()
		return m, nil

	case "/chat":
		m.viewMode = ConversationView
		m.refreshViewport()
		return m, nil

	case "/save":
		if m.session.Store == nil || m.session.State.Tree() == nil {
			m.history = append(m.history, Message{
				Role:    "system",
				Content: "Nothing to save yet.",
				Time:    time.Now(),
			})
			m.refreshViewport()
			return m, nil
		}
		m.isLoading = true
		return m, tea.Batch(m.spinner.Tick, m.saveCast())

	case "/help":
		m.history = append(m.history, Message{
			Role:    "assistant",
			Content: helpText,
			Time:    time.Now(),
		})
		m.viewMode = ConversationView
		m.refreshViewport()
		return m, nil

	default:
		m.history = append(m.history, Message{
			Role:    "system",
			Content: fmt.Sprintf("Unknown command %s. Try /help.", command),
			Time:    time.Now(),
		})
		m.refreshViewport()
		return m, nil
	}
}

// saveCast writes the current tree and summary to the store.
func (m Model) saveCast() tea.Cmd {
	return func() tea.Msg {
		fc := forecast.NewFuturecast(m.session.State.Tree(), m.session.State.Summary())
		path, err := m.session.Store.Save(fc)
		if err != nil {
			return errMsg(err)
		}
		return castSavedMsg(path)
	}
}

const helpText = `**Commands**

| Command | Effect |
|---|---|
| /tree | Show the effect tree (Enter to return) |
| /summary | Show the rendered summary |
| /chat | Return to the conversation |
| /save | Save the current futurecast to disk |
| /quit | Exit |

**Editing** (plain text, no slash)

- ` + "`Change effect 1.2 to 'new text'`" + ` rewrites an effect and regenerates everything beneath it.
- ` + "`Expand effect 2.1 by 2 levels with focus on 'supply chains'`" + ` grows new levels under a leaf.
- Anything ending in "?" is answered from the loaded futurecast.`
