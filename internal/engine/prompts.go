package engine

import (
	"fmt"
	"sort"
	"strings"

	"futurecast/internal/forecast"
)

// FirstOrderPrompt asks for the immediate effects of the scenario.
func FirstOrderPrompt(context string, numEffects int) string {
	return fmt.Sprintf(`
You are an expert at predicting the effects of events. Given an initial event, your task is to predict the most likely immediate effects that would result from this event.

Initial Event: %s

Generate %d different immediate likely effects that would result from this event. Each effect should be distinct, plausible, and directly connected to the initial event.

Format your response as a numbered list with each effect on a new line. Be concise but specific. Do not include any explanations or additional text beyond the numbered list of effects.

Example format:
1. [First effect]
2. [Second effect]
3. [Third effect]
...
`, context, numEffects)
}

// formatPreviousEffects renders the already-occurred effects grouped by
// order, lowest order first.
func formatPreviousEffects(previousByOrder map[int][]string) string {
	if len(previousByOrder) == 0 {
		return ""
	}
	orders := make([]int, 0, len(previousByOrder))
	for order := range previousByOrder {
		orders = append(orders, order)
	}
	sort.Ints(orders)

	var b strings.Builder
	for _, order := range orders {
		fmt.Fprintf(&b, "\n%s effects that have already occurred:\n", forecast.OrderLabel(order))
		for _, effect := range previousByOrder[order] {
			fmt.Fprintf(&b, "- %s\n", effect)
		}
	}
	return b.String()
}

// HigherOrderPrompt asks for order-level effects of parentEffect, given the
// initial event, the timeline so far, and the sibling effects occurring
// concurrently. An optional focus steers the expansion.
func HigherOrderPrompt(context, parentEffect string, siblingEffects []string, previousByOrder map[int][]string, numEffects, order int, focus string) string {
	var siblings strings.Builder
	for _, s := range siblingEffects {
		fmt.Fprintf(&siblings, "- %s\n", s)
	}

	previous := formatPreviousEffects(previousByOrder)
	timeline := ""
	if previous != "" {
		timeline = "the timeline of previous effects, "
	}
	focusLine := ""
	if focus != "" {
		focusLine = fmt.Sprintf("\nFocus the effects specifically on: %s\n", focus)
	}

	return fmt.Sprintf(`
You are an expert at predicting the cascading effects of events. Given an initial event and a specific effect that resulted from it, your task is to predict the next level of effects.

Initial Event: %s
%s
Effect to analyze: %s

Other concurrent effects happening at the same time:
%s%s
Generate %d different likely %s effects that would result specifically from the "Effect to analyze" above, while taking into account the initial event, %sand other concurrent effects. Each effect should be distinct, plausible, and directly connected to the effect being analyzed.

Format your response as a numbered list with each effect on a new line. Be concise but specific. Do not include any explanations or additional text beyond the numbered list of effects.

Example format:
1. [First effect]
2. [Second effect]
3. [Third effect]
...
`, context, previous, parentEffect, siblings.String(), focusLine, numEffects, strings.ToLower(forecast.OrderLabel(order)), timeline)
}

// SummaryPrompt asks for the narrative synthesis of the whole tree.
func SummaryPrompt(context string, effectsByOrder map[int][]string) string {
	orders := make([]int, 0, len(effectsByOrder))
	for order := range effectsByOrder {
		orders = append(orders, order)
	}
	sort.Ints(orders)

	var effects strings.Builder
	for _, order := range orders {
		fmt.Fprintf(&effects, "\n%s effects:\n", forecast.OrderLabel(order))
		for i, effect := range effectsByOrder[order] {
			fmt.Fprintf(&effects, "%d. %s\n", i+1, effect)
		}
	}

	return fmt.Sprintf(`
You are an expert at synthesizing complex scenarios and their implications. Given an initial event and its cascading effects at different levels, your task is to create a comprehensive summary of how this scenario would likely unfold over time.

Initial Event: %s

Cascading Effects:%s

Create a comprehensive summary that integrates the initial event and all of these effects into a coherent narrative. The summary should:
1. Explain how the initial event would unfold over time through these various effects
2. Highlight the most significant developments and their implications
3. Identify any potential feedback loops or compounding effects
4. Present a balanced view of both positive and negative outcomes
5. Be written in a clear, engaging style accessible to a general audience

Your summary should be 3-5 paragraphs long and should integrate all the major effects while maintaining logical coherence.
`, context, effects.String())
}

// AnswerPrompt frames a free-form question against the current futurecast.
func AnswerPrompt(context, outline, summary, question string) string {
	return fmt.Sprintf(`
You are a helpful assistant discussing a cascading-effects prediction with the user. Use only the prediction below to answer.

Initial Event: %s

Prediction tree:
%s

Summary:
%s

Question: %s

Answer concisely, referencing effects by their bracketed path labels where helpful.
`, context, outline, summary, question)
}
