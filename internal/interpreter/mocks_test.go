package interpreter

import (
	"sync/atomic"

	"github.com/atlanticdynamic/catalogd/internal/catalog"
	"github.com/atlanticdynamic/catalogd/internal/evaluator"
	"github.com/atlanticdynamic/catalogd/internal/manifest"
	"github.com/stretchr/testify/mock"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Location() string {
	return "/mock/site.toml"
}

func (m *mockSource) Exists() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *mockSource) Changed(files *manifest.FileSet) (bool, error) {
	args := m.Called(files)
	return args.Bool(0), args.Error(1)
}

type mockParser struct {
	mock.Mock
}

func (m *mockParser) Parse() (*manifest.Tree, error) {
	args := m.Called()
	tree, _ := args.Get(0).(*manifest.Tree)
	return tree, args.Error(1)
}

// stubEvaluator prepares stubScopes that record what they were asked.
type stubEvaluator struct {
	scope    *stubScope
	err      error
	prepared atomic.Int32
}

func (e *stubEvaluator) Prepare(tree *manifest.Tree) (evaluator.Scope, error) {
	e.prepared.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return e.scope, nil
}

type stubScope struct {
	evalNode func(names []string, facts catalog.Facts) (*catalog.Catalog, error)
	evaluate func(facts catalog.Facts, classes []string) (*catalog.Catalog, error)
}

func (s *stubScope) EvalNode(names []string, facts catalog.Facts) (*catalog.Catalog, error) {
	return s.evalNode(names, facts)
}

func (s *stubScope) Evaluate(facts catalog.Facts, classes []string) (*catalog.Catalog, error) {
	return s.evaluate(facts, classes)
}
