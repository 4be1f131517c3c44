package chatbot

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent is a recognized user intention.
type Intent string

const (
	IntentModifyEffect    Intent = "modify_effect"
	IntentExpandEffect    Intent = "expand_effect"
	IntentGetPrompt       Intent = "get_prompt"
	IntentGetSummary      Intent = "get_summary"
	IntentGetTreeOverview Intent = "get_tree_overview"
	IntentAskQuestion     Intent = "ask_general_question"
	IntentUnknown         Intent = "unknown"
)

// Parse is the result of intent recognition.
type Parse struct {
	Intent   Intent
	EffectID string
	NewText  string
	Levels   int
	Focus    string
}

var (
	// "Change effect 3.1 to 'new text'" / "Modify the text of effect 1.2.1 with "..."".
	modifyEffectRe = regexp.MustCompile(`(?i)(change|modify|update)\s+(?:effect|the text of effect)\s+([\w.]+)\s+(?:to|with)\s+['"](.*?)['"]`)

	// "Expand effect 3.1.2 by 2 levels with focus on 'economic impact'" /
	// "Expand leaf node 4.1".
	expandEffectRe = regexp.MustCompile(`(?i)(expand|add)\s+(?:effect|leaf node)\s+([\w.]+)\s*(?:by|under)?\s*(\d*)\s*(?:levels?)?\s*(?:with focus on\s*['"](.*?)['"])?`)
)

var (
	promptKeywords  = []string{"original prompt", "the prompt", "initial prompt", "show prompt"}
	summaryKeywords = []string{"the summary", "summary of", "show summary", "what's the summary"}
	treeKeywords    = []string{"effect tree", "the tree", "tree look like", "describe tree", "tree overview"}
	questionStarts  = []string{"what", "how", "why", "explain", "tell me"}
)

// ParseInput determines the user's intent with keyword and regex rules.
func ParseInput(input string) Parse {
	lower := strings.ToLower(input)

	if m := modifyEffectRe.FindStringSubmatch(input); m != nil {
		return Parse{Intent: IntentModifyEffect, EffectID: m[2], NewText: m[3]}
	}

	if m := expandEffectRe.FindStringSubmatch(input); m != nil {
		levels := 1
		if m[3] != "" {
			if n, err := strconv.Atoi(m[3]); err == nil && n > 0 {
				levels = n
			}
		}
		return Parse{Intent: IntentExpandEffect, EffectID: m[2], Levels: levels, Focus: m[4]}
	}

	for _, kw := range promptKeywords {
		if strings.Contains(lower, kw) {
			return Parse{Intent: IntentGetPrompt}
		}
	}
	for _, kw := range summaryKeywords {
		if strings.Contains(lower, kw) {
			return Parse{Intent: IntentGetSummary}
		}
	}
	for _, kw := range treeKeywords {
		if strings.Contains(lower, kw) {
			return Parse{Intent: IntentGetTreeOverview}
		}
	}

	if strings.Contains(input, "?") {
		return Parse{Intent: IntentAskQuestion}
	}
	for _, start := range questionStarts {
		if strings.HasPrefix(lower, start) {
			return Parse{Intent: IntentAskQuestion}
		}
	}

	return Parse{Intent: IntentUnknown}
}
