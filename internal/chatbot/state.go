// Package chatbot lets the user query and edit a generated futurecast in
// conversation: rule-based intent parsing, conversation state, and a
// dispatcher that routes intents to tree operations or the model.
package chatbot

import (
	"fmt"
	"sync"
	"time"

	"futurecast/internal/forecast"
	"futurecast/internal/logging"
)

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one chat history entry.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// State holds the loaded futurecast and the conversation about it.
// Tree replacements go through ReplaceTree so every edit leaves a system
// entry in the history.
type State struct {
	mu      sync.Mutex
	prompt  string
	tree    *forecast.Tree
	summary string
	history []Message
}

// NewState returns an empty conversation state.
func NewState() *State {
	return &State{}
}

// LoadFuturecast replaces the loaded data and resets the conversation.
func (s *State) LoadFuturecast(prompt string, tree *forecast.Tree, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = prompt
	s.tree = tree
	s.summary = summary
	s.history = []Message{{
		Role:      RoleSystem,
		Content:   "Futurecast data has been loaded.",
		Timestamp: time.Now(),
	}}
	logging.Chat("state loaded: prompt_len=%d effects=%d", len(prompt), tree.EffectCount())
}

// AddMessage appends a chat message.
func (s *State) AddMessage(role Role, content string) error {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return fmt.Errorf("invalid chat role: %q", role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Message{Role: role, Content: content, Timestamp: time.Now()})
	return nil
}

// ReplaceTree swaps in an edited tree and logs the operation as a system
// message.
func (s *State) ReplaceTree(tree *forecast.Tree, operation string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = tree
	s.history = append(s.history, Message{
		Role:      RoleSystem,
		Content:   operation,
		Timestamp: time.Now(),
	})
	logging.Chat("tree replaced: %s", operation)
}

// SetSummary updates the stored summary.
func (s *State) SetSummary(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
}

// Prompt returns the scenario prompt.
func (s *State) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

// Tree returns the current tree (nil when nothing is loaded).
func (s *State) Tree() *forecast.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// Summary returns the current summary.
func (s *State) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// History returns a copy of the chat history.
func (s *State) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}
