package forecast

import (
	"fmt"
	"strings"
)

// Markmap renders the tree as markdown headings, one level per order, the
// shape mind-map renderers expect. The scenario context is the top heading.
func (t *Tree) Markmap() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", t.Context)
	var emit func(e *Effect)
	emit = func(e *Effect) {
		fmt.Fprintf(&b, "%s %s\n", strings.Repeat("#", e.Order+1), e.Content)
		for _, c := range e.Children {
			emit(c)
		}
	}
	for _, r := range t.RootEffects {
		emit(r)
	}
	return b.String()
}

// Outline renders an indented text outline with dotted path labels. The
// chat layer uses this for tree overviews and for telling the user which
// path addresses which effect.
func (t *Tree) Outline() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n", t.Context)
	var emit func(e *Effect, path string)
	emit = func(e *Effect, path string) {
		indent := strings.Repeat("  ", e.Order-1)
		fmt.Fprintf(&b, "%s[%s] %s\n", indent, path, e.Content)
		for i, c := range e.Children {
			emit(c, fmt.Sprintf("%s.%d", path, i+1))
		}
	}
	for i, r := range t.RootEffects {
		emit(r, fmt.Sprintf("%d", i+1))
	}
	return b.String()
}
