package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestTree returns:
//
//	scenario
//	├── A (1)
//	│   ├── A1 (1.1)
//	│   └── A2 (1.2)
//	│       └── A2a (1.2.1)
//	└── B (2)
func buildTestTree() *Tree {
	tree := NewTree("scenario")
	a := NewEffect("A", 1, "")
	b := NewEffect("B", 1, "")
	tree.AddRootEffect(a)
	tree.AddRootEffect(b)
	a1 := NewEffect("A1", 0, "")
	a2 := NewEffect("A2", 0, "")
	a.AddChild(a1)
	a.AddChild(a2)
	a2.AddChild(NewEffect("A2a", 0, ""))
	return tree
}

func TestAddChildFixesLineage(t *testing.T) {
	parent := NewEffect("parent", 2, "")
	child := NewEffect("child", 0, "someone-else")
	parent.AddChild(child)

	assert.Equal(t, parent.ID, child.ParentID)
	assert.Equal(t, 3, child.Order)
}

func TestEffectsByOrder(t *testing.T) {
	tree := buildTestTree()
	byOrder := tree.EffectsByOrder()

	require.Len(t, byOrder, 3)
	assert.Len(t, byOrder[1], 2)
	assert.Len(t, byOrder[2], 2)
	assert.Len(t, byOrder[3], 1)
	assert.Equal(t, "A2a", byOrder[3][0].Content)
	assert.Equal(t, 3, tree.MaxOrder())
	assert.Equal(t, 5, tree.EffectCount())
}

func TestFindEffect(t *testing.T) {
	tree := buildTestTree()
	a2a := tree.RootEffects[0].Children[1].Children[0]

	assert.Same(t, a2a, tree.FindEffect(a2a.ID))
	assert.Nil(t, tree.FindEffect("no-such-id"))
}

func TestFindByPath(t *testing.T) {
	tree := buildTestTree()

	t.Run("resolves nested paths", func(t *testing.T) {
		assert.Equal(t, "A", tree.FindByPath("1").Content)
		assert.Equal(t, "B", tree.FindByPath("2").Content)
		assert.Equal(t, "A2", tree.FindByPath("1.2").Content)
		assert.Equal(t, "A2a", tree.FindByPath("1.2.1").Content)
	})

	t.Run("rejects bad paths", func(t *testing.T) {
		assert.Nil(t, tree.FindByPath("3"))
		assert.Nil(t, tree.FindByPath("1.9"))
		assert.Nil(t, tree.FindByPath("0"))
		assert.Nil(t, tree.FindByPath("one.two"))
		assert.Nil(t, tree.FindByPath(""))
	})
}

func TestPathOfRoundTrip(t *testing.T) {
	tree := buildTestTree()
	tree.Walk(func(e *Effect) bool {
		path := tree.PathOf(e.ID)
		require.NotEmpty(t, path)
		assert.Same(t, e, tree.FindByPath(path))
		return true
	})
	assert.Empty(t, tree.PathOf("no-such-id"))
}

func TestParent(t *testing.T) {
	tree := buildTestTree()
	a2 := tree.FindByPath("1.2")
	a2a := tree.FindByPath("1.2.1")

	assert.Same(t, a2, tree.Parent(a2a.ID))
	assert.Nil(t, tree.Parent(tree.RootEffects[0].ID))
	assert.Nil(t, tree.Parent("no-such-id"))
}

func TestCloneIsDeep(t *testing.T) {
	tree := buildTestTree()
	cp := tree.Clone()

	cp.FindByPath("1.2").Content = "mutated"
	cp.FindByPath("1").AddChild(NewEffect("extra", 0, ""))

	assert.Equal(t, "A2", tree.FindByPath("1.2").Content)
	assert.Len(t, tree.FindByPath("1").Children, 2)
	assert.Equal(t, tree.FindByPath("1").ID, cp.FindByPath("1").ID)
}

func TestOrderLabel(t *testing.T) {
	assert.Equal(t, "First-order", OrderLabel(1))
	assert.Equal(t, "Second-order", OrderLabel(2))
	assert.Equal(t, "Third-order", OrderLabel(3))
	assert.Equal(t, "4th-order", OrderLabel(4))
}
