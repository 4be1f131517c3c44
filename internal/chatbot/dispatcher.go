package chatbot

import (
	"context"
	"errors"
	"fmt"

	"futurecast/internal/engine"
	"futurecast/internal/forecast"
	"futurecast/internal/logging"
)

// TreeEngine is what the dispatcher needs from the prediction engine.
type TreeEngine interface {
	ExpandEffect(ctx context.Context, tree *forecast.Tree, effect *forecast.Effect, levels int, focus string) error
	RegenerateDownstream(ctx context.Context, tree *forecast.Tree, effect *forecast.Effect) error
	Answer(ctx context.Context, tree *forecast.Tree, summary, question string) (string, error)
}

// Dispatcher routes parsed intents to state reads, tree edits, or the
// model. Failures become conversational responses, never errors; the chat
// must keep flowing.
type Dispatcher struct {
	state  *State
	engine TreeEngine
}

// NewDispatcher wires a dispatcher over conversation state and an engine.
func NewDispatcher(state *State, eng TreeEngine) *Dispatcher {
	return &Dispatcher{state: state, engine: eng}
}

// Dispatch handles one user input: records it, acts on the intent, records
// and returns the assistant response.
func (d *Dispatcher) Dispatch(ctx context.Context, input string) string {
	d.state.AddMessage(RoleUser, input)

	parsed := ParseInput(input)
	logging.Chat("dispatching intent=%s effect_id=%s", parsed.Intent, parsed.EffectID)

	var response string
	switch parsed.Intent {
	case IntentGetPrompt:
		if prompt := d.state.Prompt(); prompt != "" {
			response = fmt.Sprintf("The original prompt was: %s", prompt)
		} else {
			response = "No prompt loaded yet."
		}

	case IntentGetSummary:
		if summary := d.state.Summary(); summary != "" {
			response = fmt.Sprintf("The futurecast summary is: %s", summary)
		} else {
			response = "No summary loaded yet."
		}

	case IntentGetTreeOverview:
		if tree := d.state.Tree(); tree != nil {
			response = "Here is the current effect tree:\n\n" + tree.Outline()
		} else {
			response = "No effect tree loaded yet."
		}

	case IntentModifyEffect:
		response = d.modifyEffect(ctx, parsed)

	case IntentExpandEffect:
		response = d.expandEffect(ctx, parsed)

	case IntentAskQuestion:
		response = d.answerQuestion(ctx, input)

	default:
		response = "I'm not sure how to help with that. Can you try rephrasing?"
	}

	d.state.AddMessage(RoleAssistant, response)
	return response
}

// resolveEffect finds an effect by dotted path ("1.2.1") or raw ID.
func resolveEffect(tree *forecast.Tree, id string) *forecast.Effect {
	if e := tree.FindByPath(id); e != nil {
		return e
	}
	return tree.FindEffect(id)
}

// modifyEffect edits an effect's text and regenerates everything beneath
// it. The edit happens on a clone so a failed regeneration leaves the
// loaded tree untouched.
func (d *Dispatcher) modifyEffect(ctx context.Context, parsed Parse) string {
	if parsed.EffectID == "" {
		return "I'm sorry, I can't modify the effect. Please provide both the effect ID and the new text."
	}
	tree := d.state.Tree()
	if tree == nil {
		return "Cannot modify effect: The effect tree is not loaded. Please generate or load a futurecast first."
	}

	work := tree.Clone()
	effect := resolveEffect(work, parsed.EffectID)
	if effect == nil {
		return fmt.Sprintf("Sorry, I couldn't modify effect '%s'. It might not exist, or there was an issue regenerating the tree.", parsed.EffectID)
	}

	effect.Content = parsed.NewText
	if err := d.engine.RegenerateDownstream(ctx, work, effect); err != nil {
		logging.Get(logging.CategoryChat).Error("regenerate downstream for %s: %v", parsed.EffectID, err)
		return fmt.Sprintf("Sorry, I couldn't modify effect '%s'. It might not exist, or there was an issue regenerating the tree.", parsed.EffectID)
	}

	d.state.ReplaceTree(work, fmt.Sprintf("Modified effect %s and regenerated downstream effects.", parsed.EffectID))
	return fmt.Sprintf("Effect %s has been updated and downstream effects were regenerated.", parsed.EffectID)
}

// expandEffect grows new levels under a leaf effect.
func (d *Dispatcher) expandEffect(ctx context.Context, parsed Parse) string {
	if parsed.EffectID == "" {
		return "I'm sorry, I can't expand the effect. Please provide the effect ID."
	}
	tree := d.state.Tree()
	if tree == nil {
		return "Cannot expand effect: The effect tree is not loaded. Please generate or load a futurecast first."
	}

	work := tree.Clone()
	effect := resolveEffect(work, parsed.EffectID)
	if effect == nil {
		return fmt.Sprintf("Sorry, I couldn't expand effect '%s'. Please ensure the ID is correct and that it's a leaf node (has no existing sub-effects).", parsed.EffectID)
	}

	if err := d.engine.ExpandEffect(ctx, work, effect, parsed.Levels, parsed.Focus); err != nil {
		if errors.Is(err, engine.ErrNotLeaf) {
			return fmt.Sprintf("Sorry, I couldn't expand effect '%s'. Please ensure the ID is correct and that it's a leaf node (has no existing sub-effects).", parsed.EffectID)
		}
		logging.Get(logging.CategoryChat).Error("expand %s: %v", parsed.EffectID, err)
		return fmt.Sprintf("Sorry, I couldn't expand effect '%s'. There was an issue generating the new effects.", parsed.EffectID)
	}

	operation := fmt.Sprintf("Expanded effect '%s' by %d level(s)", parsed.EffectID, parsed.Levels)
	if parsed.Focus != "" {
		operation += fmt.Sprintf(" with focus on '%s'", parsed.Focus)
	}
	d.state.ReplaceTree(work, operation+".")

	response := fmt.Sprintf("Effect %s has been expanded by %d level(s).", parsed.EffectID, parsed.Levels)
	if parsed.Focus != "" {
		response += fmt.Sprintf(" Focused on: '%s'.", parsed.Focus)
	}
	return response
}

// answerQuestion sends a free-form question to the model with the loaded
// futurecast as context.
func (d *Dispatcher) answerQuestion(ctx context.Context, question string) string {
	tree := d.state.Tree()
	if tree == nil {
		return "No futurecast is loaded yet. Generate or load one first, then ask me about it."
	}
	answer, err := d.engine.Answer(ctx, tree, d.state.Summary(), question)
	if err != nil {
		logging.Get(logging.CategoryChat).Error("answer question: %v", err)
		return fmt.Sprintf("Error interacting with LLM: %v", err)
	}
	return answer
}
