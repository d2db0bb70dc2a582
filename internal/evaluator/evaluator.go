// Package evaluator turns a parsed manifest into catalogs. Prepare validates the class graph once
// per compile and returns a Scope; each Scope call walks the prepared tree afresh, so a Scope is
// safe to reuse for every request until the next compile.
package evaluator

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/atlanticdynamic/catalogd/internal/catalog"
	"github.com/atlanticdynamic/catalogd/internal/errz"
	"github.com/atlanticdynamic/catalogd/internal/manifest"
)

// Scope evaluates catalogs against one prepared manifest.
type Scope interface {
	// EvalNode evaluates the first node entry matching one of names, in order, falling back to
	// the default node.
	EvalNode(names []string, facts catalog.Facts) (*catalog.Catalog, error)

	// Evaluate evaluates the manifest without a node entry: top-level resources, top-level
	// includes and the given extra classes.
	Evaluate(facts catalog.Facts, classes []string) (*catalog.Catalog, error)
}

// Evaluator prepares scopes from syntax trees.
type Evaluator struct {
	logger *slog.Logger
}

// New creates an Evaluator.
func New(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger.WithGroup("evaluator")}
}

// Prepare checks that every class referenced by the tree is defined and that no class inherits
// from itself, directly or indirectly. Errors wrap errz.ErrEvaluation.
func (e *Evaluator) Prepare(tree *manifest.Tree) (Scope, error) {
	if tree == nil {
		return nil, fmt.Errorf("%w: no manifest to evaluate", errz.ErrEvaluation)
	}
	if err := validateClassGraph(tree); err != nil {
		return nil, err
	}
	return &scope{tree: tree, logger: e.logger}, nil
}

func validateClassGraph(tree *manifest.Tree) error {
	var errs []error
	undefined := func(where, name string) {
		if _, ok := tree.Classes[name]; !ok {
			errs = append(errs, fmt.Errorf("%w: %w %q referenced by %s",
				errz.ErrEvaluation, errz.ErrUndefinedClass, name, where))
		}
	}

	for _, name := range tree.Includes {
		undefined("top-level includes", name)
	}
	for _, name := range tree.ClassNames() {
		class := tree.Classes[name]
		where := fmt.Sprintf("class %q", name)
		if class.Inherits != "" {
			undefined(where, class.Inherits)
		}
		for _, inc := range class.Includes {
			undefined(where, inc)
		}
	}
	for _, name := range tree.NodeNames() {
		for _, c := range tree.Nodes[name].Classes {
			undefined(fmt.Sprintf("node %q", name), c)
		}
	}

	for _, name := range tree.ClassNames() {
		visited := map[string]struct{}{name: {}}
		chain := []string{name}
		for parent := tree.Classes[name].Inherits; parent != ""; {
			chain = append(chain, parent)
			if _, loop := visited[parent]; loop {
				errs = append(errs, fmt.Errorf("%w: %w: %v",
					errz.ErrEvaluation, errz.ErrClassCycle, chain))
				break
			}
			visited[parent] = struct{}{}
			next, ok := tree.Classes[parent]
			if !ok {
				break
			}
			parent = next.Inherits
		}
	}

	return errors.Join(errs...)
}

type scope struct {
	tree   *manifest.Tree
	logger *slog.Logger
}

func (s *scope) EvalNode(names []string, facts catalog.Facts) (*catalog.Catalog, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no node name given", errz.ErrInvalidRequest)
	}

	node, matched := s.findNode(names)
	if node == nil {
		return nil, fmt.Errorf("%w: %w with names %v", errz.ErrEvaluation, errz.ErrNodeNotFound, names)
	}
	s.logger.Debug("Evaluating node", "names", names, "matched", matched, "node", node.Name)

	w := newWalk(s.tree, facts, node, matched)
	if err := w.declareAll(w.tree.Resources, "", "top scope", w.topScopes()); err != nil {
		return nil, err
	}
	for _, class := range node.Classes {
		if err := w.evalClass(class); err != nil {
			return nil, err
		}
	}
	if err := w.declareAll(node.Resources, "", fmt.Sprintf("node %q", node.Name), w.nodeScopes()); err != nil {
		return nil, err
	}
	return w.cat, nil
}

func (s *scope) Evaluate(facts catalog.Facts, classes []string) (*catalog.Catalog, error) {
	name := facts.Hostname()
	w := newWalk(s.tree, facts, nil, name)
	if err := w.declareAll(w.tree.Resources, "", "top scope", w.topScopes()); err != nil {
		return nil, err
	}
	for _, class := range catalog.MergeClasses(s.tree.Includes, classes) {
		if err := w.evalClass(class); err != nil {
			return nil, err
		}
	}
	return w.cat, nil
}

// findNode returns the first candidate with a node entry, or the default node under the first
// candidate's name.
func (s *scope) findNode(names []string) (*manifest.Node, string) {
	for _, name := range names {
		if node, ok := s.tree.Nodes[name]; ok {
			return node, name
		}
	}
	if node, ok := s.tree.Nodes[manifest.DefaultNode]; ok {
		return node, names[0]
	}
	return nil, ""
}
