// Package engine generates prediction trees: it prompts the model for
// first-order effects of a scenario, recursively expands each effect to a
// bounded depth, and synthesizes a narrative summary.
package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"futurecast/internal/config"
	"futurecast/internal/forecast"
	"futurecast/internal/llm"
	"futurecast/internal/logging"
)

// ErrNotLeaf is returned when expansion is requested on an effect that
// already has children.
var ErrNotLeaf = errors.New("effect is not a leaf")

// RegeneratedMarker is appended to effect text rebuilt after an upstream
// edit, so the user can tell fresh predictions from original ones.
const RegeneratedMarker = " (regenerated)"

// ProgressFunc receives generation status updates for display.
type ProgressFunc func(stage, message string)

// Engine drives prediction generation against an llm.Client.
type Engine struct {
	client   llm.Client
	cfg      *config.Config
	dedup    *Deduper
	progress ProgressFunc
	sem      *semaphore.Weighted
}

// Option customizes an Engine.
type Option func(*Engine)

// WithDeduper enables embedding-based sibling deduplication.
func WithDeduper(d *Deduper) Option {
	return func(e *Engine) { e.dedup = d }
}

// WithProgress registers a status callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// New creates an engine. MaxParallelCalls bounds concurrent model calls
// across the whole recursion.
func New(client llm.Client, cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		client: client,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxParallelCalls)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) report(stage, format string, args ...interface{}) {
	if e.progress != nil {
		e.progress(stage, fmt.Sprintf(format, args...))
	}
}

// generate runs one model call under the global concurrency limit.
func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer e.sem.Release(1)
	return e.client.Generate(ctx, prompt)
}

// effectTexts runs a prompt, parses the numbered list, dedups, and caps
// the result at the configured effects-per-level.
func (e *Engine) effectTexts(ctx context.Context, prompt string) ([]string, error) {
	resp, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	texts := ParseEffectsList(resp, 0)
	if e.dedup != nil {
		texts = e.dedup.Filter(ctx, texts)
	}
	if len(texts) > e.cfg.NumEffects {
		texts = texts[:e.cfg.NumEffects]
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("model returned no parseable effects")
	}
	return texts, nil
}

// FirstOrderEffects generates the immediate effects of the scenario.
func (e *Engine) FirstOrderEffects(ctx context.Context, scenario string) ([]*forecast.Effect, error) {
	timer := logging.StartTimer(logging.CategoryEngine, "first-order effects")
	defer timer.StopWithInfo()

	texts, err := e.effectTexts(ctx, FirstOrderPrompt(scenario, e.cfg.NumEffects))
	if err != nil {
		return nil, fmt.Errorf("first-order effects: %w", err)
	}
	effects := make([]*forecast.Effect, 0, len(texts))
	for _, t := range texts {
		effects = append(effects, forecast.NewEffect(t, 1, ""))
	}
	return effects, nil
}

// expand generates children for parent up to maxOrder, recursing in
// parallel across the new children. Each branch works on its own copy of
// the previous-effects timeline, matching the sequential semantics.
func (e *Engine) expand(ctx context.Context, scenario string, parent *forecast.Effect, siblings []string, prevByOrder map[int][]string, maxOrder int, focus string) error {
	if parent.Order >= maxOrder {
		return nil
	}

	logging.EngineDebug("expanding order-%d effect: %s", parent.Order, parent.Content)
	e.report("expand", "Generating %s effects for: %s", forecast.OrderLabel(parent.Order+1), parent.Content)

	prompt := HigherOrderPrompt(scenario, parent.Content, siblings, prevByOrder, e.cfg.NumEffects, parent.Order+1, focus)
	texts, err := e.effectTexts(ctx, prompt)
	if err != nil {
		return fmt.Errorf("order-%d effects for %q: %w", parent.Order+1, parent.Content, err)
	}

	children := make([]*forecast.Effect, 0, len(texts))
	for _, t := range texts {
		child := forecast.NewEffect(t, 0, "")
		parent.AddChild(child)
		children = append(children, child)
	}

	// This level and its new children join the timeline seen by deeper
	// levels, so an order-N prompt carries every order below N.
	nextPrev := copyPrev(prevByOrder)
	appendUnique(nextPrev, parent.Order, parent.Content)
	for _, s := range siblings {
		appendUnique(nextPrev, parent.Order, s)
	}
	for _, c := range children {
		appendUnique(nextPrev, parent.Order+1, c.Content)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, child := range children {
		child := child
		sibs := contentsExcept(children, child)
		branchPrev := copyPrev(nextPrev)
		g.Go(func() error {
			return e.expand(gctx, scenario, child, sibs, branchPrev, maxOrder, focus)
		})
	}
	return g.Wait()
}

// Generate produces the full prediction tree and its summary.
func (e *Engine) Generate(ctx context.Context, scenario string) (*forecast.Tree, string, error) {
	timer := logging.StartTimer(logging.CategoryEngine, "generate prediction")
	defer timer.StopWithInfo()

	e.report("first-order", "Generating first-order effects")
	roots, err := e.FirstOrderEffects(ctx, scenario)
	if err != nil {
		return nil, "", err
	}

	tree := forecast.NewTree(scenario)
	prev := map[int][]string{}
	for _, r := range roots {
		tree.AddRootEffect(r)
		appendUnique(prev, 1, r.Content)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, root := range roots {
		root := root
		sibs := contentsExcept(roots, root)
		branchPrev := copyPrev(prev)
		g.Go(func() error {
			return e.expand(gctx, scenario, root, sibs, branchPrev, e.cfg.MaxDepth, "")
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	e.report("summary", "Generating summary")
	summary, err := e.Summary(ctx, tree)
	if err != nil {
		return nil, "", err
	}
	logging.Engine("generated tree: %d effects, max order %d", tree.EffectCount(), tree.MaxOrder())
	return tree, summary, nil
}

// Summary synthesizes the narrative summary for a tree.
func (e *Engine) Summary(ctx context.Context, tree *forecast.Tree) (string, error) {
	byOrder := make(map[int][]string)
	for order, effects := range tree.EffectsByOrder() {
		for _, eff := range effects {
			byOrder[order] = append(byOrder[order], eff.Content)
		}
	}
	resp, err := e.generate(ctx, SummaryPrompt(tree.Context, byOrder))
	if err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	return resp, nil
}

// Answer responds to a free-form question about the futurecast.
func (e *Engine) Answer(ctx context.Context, tree *forecast.Tree, summary, question string) (string, error) {
	resp, err := e.generate(ctx, AnswerPrompt(tree.Context, tree.Outline(), summary, question))
	if err != nil {
		return "", fmt.Errorf("answer: %w", err)
	}
	return resp, nil
}

// ExpandEffect grows a subtree of the given number of levels under a leaf
// effect, optionally steered by a focus. Non-leaf effects are rejected so
// existing predictions are never silently replaced.
func (e *Engine) ExpandEffect(ctx context.Context, tree *forecast.Tree, effect *forecast.Effect, levels int, focus string) error {
	if !effect.IsLeaf() {
		return ErrNotLeaf
	}
	if levels < 1 {
		levels = 1
	}
	return e.expand(ctx, tree.Context, effect, e.siblingContents(tree, effect), prevFromTree(tree, effect), effect.Order+levels, focus)
}

// RegenerateDownstream rebuilds the subtree under an edited effect to its
// previous depth and marks the new content as regenerated. An effect that
// was a leaf stays a leaf.
func (e *Engine) RegenerateDownstream(ctx context.Context, tree *forecast.Tree, effect *forecast.Effect) error {
	maxOrder := effect.Order
	var scan func(e *forecast.Effect)
	scan = func(e *forecast.Effect) {
		if e.Order > maxOrder {
			maxOrder = e.Order
		}
		for _, c := range e.Children {
			scan(c)
		}
	}
	scan(effect)
	effect.Children = nil
	if maxOrder == effect.Order {
		return nil
	}
	if err := e.expand(ctx, tree.Context, effect, e.siblingContents(tree, effect), prevFromTree(tree, effect), maxOrder, ""); err != nil {
		return err
	}
	for _, child := range effect.Children {
		markRegenerated(child)
	}
	return nil
}

// siblingContents returns the contents of the other effects sharing the
// given effect's parent (or the other roots).
func (e *Engine) siblingContents(tree *forecast.Tree, effect *forecast.Effect) []string {
	var siblings []*forecast.Effect
	if parent := tree.Parent(effect.ID); parent != nil {
		siblings = parent.Children
	} else {
		siblings = tree.RootEffects
	}
	return contentsExcept(siblings, effect)
}

// prevFromTree rebuilds the previous-effects timeline from the tree for
// all orders shallower than the effect being expanded.
func prevFromTree(tree *forecast.Tree, effect *forecast.Effect) map[int][]string {
	prev := make(map[int][]string)
	for order, effects := range tree.EffectsByOrder() {
		if order >= effect.Order {
			continue
		}
		for _, eff := range effects {
			appendUnique(prev, order, eff.Content)
		}
	}
	return prev
}

func markRegenerated(e *forecast.Effect) {
	e.Content += RegeneratedMarker
	for _, c := range e.Children {
		markRegenerated(c)
	}
}

func contentsExcept(effects []*forecast.Effect, skip *forecast.Effect) []string {
	out := make([]string, 0, len(effects))
	for _, e := range effects {
		if e.ID == skip.ID {
			continue
		}
		out = append(out, e.Content)
	}
	return out
}

func copyPrev(prev map[int][]string) map[int][]string {
	cp := make(map[int][]string, len(prev))
	for k, v := range prev {
		cp[k] = append([]string(nil), v...)
	}
	return cp
}

func appendUnique(m map[int][]string, order int, contents ...string) {
	for _, c := range contents {
		exists := false
		for _, have := range m[order] {
			if have == c {
				exists = true
				break
			}
		}
		if !exists {
			m[order] = append(m[order], c)
		}
	}
}
