package manifest

import (
	"fmt"
	"path/filepath"

	"github.com/atlanticdynamic/catalogd/internal/fancy"
)

// String renders a summary of the tree for `catalogd validate`.
func (t *Tree) String() string {
	if t == nil {
		return "<nil manifest>"
	}

	root := fancy.NewComponentTree(fancy.RootText(fmt.Sprintf("Manifest %s", t.Root)))

	files := fancy.FilesBranch(len(t.Files.Files))
	for _, f := range t.Files.Files {
		files.Child(fancy.FileText(filepath.Base(f.Path)))
	}
	root.AddChild(files)

	classes := fancy.ClassesBranch(len(t.Classes))
	for _, name := range t.ClassNames() {
		c := t.Classes[name]
		node := fancy.ClassTree(name)
		if c.Inherits != "" {
			node.Child(fancy.InfoText("inherits: " + c.Inherits))
		}
		if len(c.Includes) > 0 {
			node.Child(fancy.InfoText(fmt.Sprintf("includes: %v", c.Includes)))
		}
		node.Child(fancy.InfoText(fmt.Sprintf("resources: %d", len(c.Resources))))
		classes.Child(node)
	}
	root.AddChild(classes)

	nodes := fancy.NodesBranch(len(t.Nodes))
	for _, name := range t.NodeNames() {
		n := t.Nodes[name]
		node := fancy.NodeTree(name)
		for _, c := range n.Classes {
			node.Child(fancy.ClassText(c))
		}
		if len(n.Resources) > 0 {
			node.Child(fancy.InfoText(fmt.Sprintf("resources: %d", len(n.Resources))))
		}
		nodes.Child(node)
	}
	root.AddChild(nodes)

	if len(t.Resources) > 0 {
		top := fancy.ResourcesBranch(len(t.Resources))
		for _, r := range t.Resources {
			top.Child(fancy.ResourceText(fmt.Sprintf("%s[%s]", r.Type, r.Title)))
		}
		root.AddChild(top)
	}

	return root.Tree().String()
}
