package fancy

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

// ComponentTree creates a component-specific styled tree
type ComponentTree struct {
	tree *tree.Tree
}

// NewComponentTree creates a new component tree with appropriate styling
func NewComponentTree(title string) *ComponentTree {
	t := Tree()
	t.Root(title)
	return &ComponentTree{
		tree: t,
	}
}

// Tree returns the underlying tree
func (c *ComponentTree) Tree() *tree.Tree {
	return c.tree
}

// AddChild adds a child node to the root branch
func (c *ComponentTree) AddChild(child any) *tree.Tree {
	return c.tree.Child(child)
}

// Tree returns a new tree with common styling applied
func Tree() *tree.Tree {
	t := tree.New()
	t.EnumeratorStyle(BranchStyle)
	t.Enumerator(tree.RoundedEnumerator)
	return t
}

// BranchNode creates a styled section header node
func BranchNode(title string, count string) *tree.Tree {
	return Tree().Root(
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			HeaderStyle.Render(title),
			" ",
			InfoStyle.Render(count),
		),
	)
}

// ClassesBranch creates the section header for a list of classes
func ClassesBranch(count int) *tree.Tree {
	return BranchNode("Classes", fmt.Sprintf("(%d)", count))
}

// ResourcesBranch creates the section header for a list of resources
func ResourcesBranch(count int) *tree.Tree {
	return BranchNode("Resources", fmt.Sprintf("(%d)", count))
}

// NodesBranch creates the section header for a list of node definitions
func NodesBranch(count int) *tree.Tree {
	return BranchNode("Nodes", fmt.Sprintf("(%d)", count))
}

// FilesBranch creates the section header for a list of source files
func FilesBranch(count int) *tree.Tree {
	return BranchNode("Files", fmt.Sprintf("(%d)", count))
}

// ResourceTree creates a tree branch for a single resource
func ResourceTree(ref string) *tree.Tree {
	return Tree().Root(ResourceText(ref))
}

// ClassTree creates a tree branch for a single class definition
func ClassTree(name string) *tree.Tree {
	return Tree().Root(ClassText(name))
}

// NodeTree creates a tree branch for a single node definition
func NodeTree(name string) *tree.Tree {
	return Tree().Root(NodeText(name))
}
