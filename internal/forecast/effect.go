// Package forecast defines the prediction tree produced by a futurecast run:
// a scenario context plus cascading effects organized by order (first-order
// effects caused directly by the scenario, second-order effects caused by
// those, and so on).
package forecast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Effect is a single predicted consequence in the tree.
// Order is 1-based: first-order effects have Order 1.
type Effect struct {
	ID       string    `json:"id"`
	Content  string    `json:"content"`
	Order    int       `json:"order"`
	ParentID string    `json:"parent_id,omitempty"`
	Children []*Effect `json:"children,omitempty"`
}

// NewEffect creates an effect with a fresh ID.
func NewEffect(content string, order int, parentID string) *Effect {
	return &Effect{
		ID:       uuid.NewString(),
		Content:  content,
		Order:    order,
		ParentID: parentID,
	}
}

// AddChild attaches child below e, fixing up ParentID and Order.
func (e *Effect) AddChild(child *Effect) {
	child.ParentID = e.ID
	child.Order = e.Order + 1
	e.Children = append(e.Children, child)
}

// IsLeaf reports whether the effect has no children.
func (e *Effect) IsLeaf() bool {
	return len(e.Children) == 0
}

// Clone returns a deep copy of the effect and its subtree.
func (e *Effect) Clone() *Effect {
	cp := &Effect{
		ID:       e.ID,
		Content:  e.Content,
		Order:    e.Order,
		ParentID: e.ParentID,
	}
	for _, c := range e.Children {
		cp.Children = append(cp.Children, c.Clone())
	}
	return cp
}

// walk visits e and its descendants depth-first. Returning false stops the walk.
func (e *Effect) walk(fn func(*Effect) bool) bool {
	if !fn(e) {
		return false
	}
	for _, c := range e.Children {
		if !c.walk(fn) {
			return false
		}
	}
	return true
}

// Tree is the full prediction tree for one scenario.
type Tree struct {
	Context     string    `json:"context"`
	RootEffects []*Effect `json:"root_effects"`
}

// NewTree creates an empty tree for the given scenario context.
func NewTree(context string) *Tree {
	return &Tree{Context: context}
}

// AddRootEffect attaches a first-order effect to the tree.
func (t *Tree) AddRootEffect(e *Effect) {
	e.ParentID = ""
	e.Order = 1
	t.RootEffects = append(t.RootEffects, e)
}

// Walk visits every effect depth-first. Returning false stops the walk.
func (t *Tree) Walk(fn func(*Effect) bool) {
	for _, r := range t.RootEffects {
		if !r.walk(fn) {
			return
		}
	}
}

// FindEffect returns the effect with the given ID, or nil.
func (t *Tree) FindEffect(id string) *Effect {
	var found *Effect
	t.Walk(func(e *Effect) bool {
		if e.ID == id {
			found = e
			return false
		}
		return true
	})
	return found
}

// EffectsByOrder groups every effect by its order level.
func (t *Tree) EffectsByOrder() map[int][]*Effect {
	byOrder := make(map[int][]*Effect)
	t.Walk(func(e *Effect) bool {
		byOrder[e.Order] = append(byOrder[e.Order], e)
		return true
	})
	return byOrder
}

// MaxOrder returns the deepest order present, 0 for an empty tree.
func (t *Tree) MaxOrder() int {
	max := 0
	t.Walk(func(e *Effect) bool {
		if e.Order > max {
			max = e.Order
		}
		return true
	})
	return max
}

// EffectCount returns the total number of effects in the tree.
func (t *Tree) EffectCount() int {
	n := 0
	t.Walk(func(*Effect) bool {
		n++
		return true
	})
	return n
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	cp := &Tree{Context: t.Context}
	for _, r := range t.RootEffects {
		cp.RootEffects = append(cp.RootEffects, r.Clone())
	}
	return cp
}

// FindByPath resolves a dotted path of 1-based child indexes ("2.1.3")
// starting from the root effect list. Returns nil when any segment is out
// of range or malformed.
func (t *Tree) FindByPath(path string) *Effect {
	segs := strings.Split(strings.TrimSpace(path), ".")
	if len(segs) == 0 {
		return nil
	}
	var cur *Effect
	siblings := t.RootEffects
	for _, s := range segs {
		idx, err := strconv.Atoi(s)
		if err != nil || idx < 1 || idx > len(siblings) {
			return nil
		}
		cur = siblings[idx-1]
		siblings = cur.Children
	}
	return cur
}

// PathOf returns the dotted path for the effect with the given ID, or ""
// when the ID is not in the tree.
func (t *Tree) PathOf(id string) string {
	var dfs func(e *Effect, path []int) []int
	dfs = func(e *Effect, path []int) []int {
		if e.ID == id {
			return path
		}
		for i, c := range e.Children {
			if got := dfs(c, append(path, i+1)); got != nil {
				return got
			}
		}
		return nil
	}
	for i, r := range t.RootEffects {
		if got := dfs(r, []int{i + 1}); got != nil {
			parts := make([]string, len(got))
			for j, n := range got {
				parts[j] = strconv.Itoa(n)
			}
			return strings.Join(parts, ".")
		}
	}
	return ""
}

// Parent returns the parent of the given effect, or nil for root effects
// and unknown IDs.
func (t *Tree) Parent(id string) *Effect {
	e := t.FindEffect(id)
	if e == nil || e.ParentID == "" {
		return nil
	}
	return t.FindEffect(e.ParentID)
}

// OrderLabel names an order level the way prompts and views refer to it.
func OrderLabel(order int) string {
	switch order {
	case 1:
		return "First-order"
	case 2:
		return "Second-order"
	case 3:
		return "Third-order"
	default:
		return fmt.Sprintf("%dth-order", order)
	}
}
