package evaluator

import (
	"fmt"

	"github.com/atlanticdynamic/catalogd/internal/catalog"
	"github.com/atlanticdynamic/catalogd/internal/errz"
	"github.com/atlanticdynamic/catalogd/internal/interpolation"
	"github.com/atlanticdynamic/catalogd/internal/manifest"
)

// maxExpansionDepth bounds how many variables may reference one another in a chain.
const maxExpansionDepth = 16

// walk is the state of one evaluation. It is discarded when the catalog is returned.
type walk struct {
	tree      *manifest.Tree
	facts     catalog.Facts
	node      *manifest.Node
	cat       *catalog.Catalog
	evaluated map[string]struct{}
	declared  map[string]string
}

func newWalk(tree *manifest.Tree, facts catalog.Facts, node *manifest.Node, name string) *walk {
	return &walk{
		tree:      tree,
		facts:     facts,
		node:      node,
		cat:       catalog.New(name),
		evaluated: map[string]struct{}{},
		declared:  map[string]string{},
	}
}

// topScopes are the variable maps visible to top-level resources.
func (w *walk) topScopes() []map[string]any {
	return []map[string]any{w.tree.Variables}
}

// nodeScopes are the variable maps visible to node resources.
func (w *walk) nodeScopes() []map[string]any {
	if w.node == nil {
		return w.topScopes()
	}
	return []map[string]any{w.node.Variables, w.tree.Variables}
}

// classScopes are the variable maps visible inside a class: its own, each ancestor's, then
// the node's and the manifest's.
func (w *walk) classScopes(class *manifest.Class) []map[string]any {
	var scopes []map[string]any
	for c := class; c != nil; c = w.tree.Classes[c.Inherits] {
		scopes = append(scopes, c.Variables)
	}
	return append(scopes, w.nodeScopes()...)
}

// evalClass evaluates a class and everything it pulls in, at most once per catalog. Parents
// come first, then the class is recorded, then its includes and finally its own resources.
func (w *walk) evalClass(name string) error {
	if _, done := w.evaluated[name]; done {
		return nil
	}
	class, ok := w.tree.Classes[name]
	if !ok {
		return fmt.Errorf("%w: %w %q", errz.ErrEvaluation, errz.ErrUndefinedClass, name)
	}
	w.evaluated[name] = struct{}{}

	if class.Inherits != "" {
		if err := w.evalClass(class.Inherits); err != nil {
			return err
		}
	}
	w.cat.Classes = append(w.cat.Classes, name)
	for _, inc := range class.Includes {
		if err := w.evalClass(inc); err != nil {
			return err
		}
	}
	return w.declareAll(class.Resources, name, fmt.Sprintf("class %q", name), w.classScopes(class))
}

// declareAll adds resources to the catalog. class is recorded on each resource, origin names
// the declaring scope in error messages.
func (w *walk) declareAll(decls []manifest.ResourceDecl, class, origin string, scopes []map[string]any) error {
	for _, decl := range decls {
		if err := w.declare(decl, class, origin, scopes); err != nil {
			return err
		}
	}
	return nil
}

func (w *walk) declare(decl manifest.ResourceDecl, class, where string, scopes []map[string]any) error {
	title, err := w.expand(decl.Title, scopes, 0)
	if err != nil {
		return fmt.Errorf("%w (resource %s[%s] in %s)", err, decl.Type, decl.Title, where)
	}

	res := catalog.Resource{Type: decl.Type, Title: title, Class: class}
	if prev, dup := w.declared[res.Ref()]; dup {
		return fmt.Errorf("%w: %w: %s in %s, already declared in %s",
			errz.ErrEvaluation, errz.ErrDuplicateResource, res.Ref(), where, prev)
	}

	if len(decl.Params) > 0 {
		params, err := w.expandValue(decl.Params, scopes)
		if err != nil {
			return fmt.Errorf("%w (resource %s in %s)", err, res.Ref(), where)
		}
		res.Params = params.(map[string]any)
	}

	w.declared[res.Ref()] = where
	w.cat.Add(res)
	return nil
}

// expandValue interpolates every string nested in v, copying maps and slices so the prepared
// tree is never modified.
func (w *walk) expandValue(v any, scopes []map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return w.expand(val, scopes, 0)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			expanded, err := w.expandValue(item, scopes)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			expanded, err := w.expandValue(item, scopes)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

// expand interpolates s. A variable found in scopes[i] is itself expanded against scopes[i:],
// so a value never sees variables of a narrower scope than the one defining it.
func (w *walk) expand(s string, scopes []map[string]any, depth int) (string, error) {
	if depth > maxExpansionDepth {
		return "", fmt.Errorf("%w: %w: %q references nest more than %d levels",
			errz.ErrEvaluation, errz.ErrUndefinedVariable, s, maxExpansionDepth)
	}

	var nested error
	out, err := interpolation.Expand(s, func(name string) (string, bool) {
		value, ok, err := w.resolve(name, scopes, depth)
		if err != nil && nested == nil {
			nested = err
		}
		return value, ok
	})
	if nested != nil {
		return "", nested
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w: %w", errz.ErrEvaluation, errz.ErrUndefinedVariable, err)
	}
	return out, nil
}

func (w *walk) resolve(name string, scopes []map[string]any, depth int) (string, bool, error) {
	for i, vars := range scopes {
		v, ok := vars[name]
		if !ok {
			continue
		}
		s, err := w.expand(catalog.FormatValue(v), scopes[i:], depth+1)
		if err != nil {
			return "", false, err
		}
		return s, true, nil
	}
	if v, ok := w.facts.Value(name); ok {
		return v, true, nil
	}
	return "", false, nil
}
