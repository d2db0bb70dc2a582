package catalog

import (
	"fmt"
	"sort"

	"github.com/atlanticdynamic/catalogd/internal/fancy"
)

// String renders the catalog as a tree for terminal output.
func (c *Catalog) String() string {
	if c == nil {
		return "<nil catalog>"
	}
	return c.Tree().Tree().String()
}

// Tree builds the styled tree representation of the catalog.
func (c *Catalog) Tree() *fancy.ComponentTree {
	root := fancy.NewComponentTree(fancy.RootText(fmt.Sprintf("Catalog %s", c.Name)))

	classes := fancy.ClassesBranch(len(c.Classes))
	for _, name := range c.Classes {
		classes.Child(fancy.ClassText(name))
	}
	root.AddChild(classes)

	resources := fancy.ResourcesBranch(len(c.Resources))
	for _, r := range c.Resources {
		node := fancy.ResourceTree(r.Ref())
		if r.Class != "" {
			node.Child(fancy.InfoText("class: " + r.Class))
		}
		keys := make([]string, 0, len(r.Params))
		for k := range r.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			node.Child(fmt.Sprintf("%s = %v", k, r.Params[k]))
		}
		resources.Child(node)
	}
	root.AddChild(resources)

	return root
}
