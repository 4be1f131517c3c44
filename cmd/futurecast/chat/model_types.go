// Package chat provides the interactive TUI for exploring and editing
// futurecasts. This file holds the model, its modes, and the message types
// flowing through the update loop.
package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"

	"futurecast/internal/chatbot"
	"futurecast/internal/store"
)

// ViewMode determines what the main viewport is showing.
type ViewMode int

const (
	ConversationView ViewMode = iota
	TreeView
	SummaryView
)

// String returns the display name for each mode.
func (v ViewMode) String() string {
	names := []string{"Chat", "Tree", "Summary"}
	if int(v) < len(names) {
		return names[v]
	}
	return "Unknown"
}

// Message is one entry in the on-screen transcript.
type Message struct {
	Role    string // "user", "assistant" or "system"
	Content string
	Time    time.Time
}

// Session holds everything the TUI needs from the caller. The dispatcher
// owns the conversation semantics; the TUI only moves text around.
type Session struct {
	Dispatcher *chatbot.Dispatcher
	State      *chatbot.State
	Store      *store.FileStore
	Watcher    *store.Watcher
	Scenario   string
}

// Model is the bubbletea model for the interactive session.
type Model struct {
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   Styles
	renderer *glamour.TermRenderer

	viewMode ViewMode

	session Session

	history   []Message
	isLoading bool
	err       error
	width     int
	height    int
	ready     bool

	inputHistory []string
	historyIndex int
}

// Messages for tea updates.
type (
	// botResponseMsg carries the dispatcher's reply for one user input.
	botResponseMsg string

	// castSavedMsg reports where /save wrote the current futurecast.
	castSavedMsg string

	// castsChangedMsg fires when the watcher sees the saved directory change.
	castsChangedMsg struct{}

	errMsg error
)
