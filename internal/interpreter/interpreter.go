// Package interpreter holds the compiled manifest and evaluates catalogs from it. The manifest is
// compiled on first use and recompiled when the files behind it change, but at most one
// freshness check runs per check interval. A failed recompile never replaces the last good
// compile.
package interpreter

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/atlanticdynamic/catalogd/internal/catalog"
	"github.com/atlanticdynamic/catalogd/internal/errz"
	"github.com/atlanticdynamic/catalogd/internal/evaluator"
	"github.com/atlanticdynamic/catalogd/internal/manifest"
	"github.com/atlanticdynamic/catalogd/internal/metrics"
	"github.com/spf13/afero"
)

// DefaultCheckInterval is the default minimum time between two freshness checks.
const DefaultCheckInterval = 15 * time.Second

// Source locates the manifest and detects changes to it.
type Source interface {
	Location() string
	Exists() bool
	Changed(files *manifest.FileSet) (bool, error)
}

// Parser reads the manifest into a syntax tree.
type Parser interface {
	Parse() (*manifest.Tree, error)
}

// Evaluator prepares a reusable evaluation scope from a syntax tree.
type Evaluator interface {
	Prepare(tree *manifest.Tree) (evaluator.Scope, error)
}

// artifact is one successful compile.
type artifact struct {
	tree       *manifest.Tree
	scope      evaluator.Scope
	compiledAt time.Time
}

// Interpreter owns the compiled manifest for one manifest source.
type Interpreter struct {
	// mu serializes freshness checks, compiles and evaluations.
	mu          sync.Mutex
	current     *artifact
	lastChecked time.Time
	forceCheck  bool
	// lastErr is the failure of the last compile attempt while no artifact exists, returned
	// again until the check interval lets the next attempt through.
	lastErr error

	checkInterval time.Duration
	useNodes      bool
	classes       []string

	fs        afero.Fs
	source    Source
	parser    Parser
	evaluator Evaluator

	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an Interpreter for the manifest at path. Nothing is read until the first request
// or the first call to Refresh. Node-aware evaluation is the default.
func New(path string, opts ...Option) (*Interpreter, error) {
	i := &Interpreter{
		checkInterval: DefaultCheckInterval,
		useNodes:      true,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.WithGroup("interpreter")

	if i.checkInterval < 0 {
		return nil, fmt.Errorf("check interval must not be negative: %s", i.checkInterval)
	}

	if i.source == nil || i.parser == nil {
		if path == "" {
			return nil, errors.New("manifest location is required")
		}
		src := manifest.NewSource(i.fs, path)
		if i.source == nil {
			i.source = src
		}
		if i.parser == nil {
			i.parser = manifest.NewParser(src, i.logger)
		}
	}
	if i.evaluator == nil {
		i.evaluator = evaluator.New(i.logger)
	}

	return i, nil
}

// Location returns the location of the manifest source.
func (i *Interpreter) Location() string {
	return i.source.Location()
}

// UseNodes reports whether evaluation is node-aware.
func (i *Interpreter) UseNodes() bool {
	return i.useNodes
}

// Classes returns the extra classes used in node-agnostic mode.
func (i *Interpreter) Classes() []string {
	return append([]string(nil), i.classes...)
}

// CheckInterval returns the minimum time between two freshness checks.
func (i *Interpreter) CheckInterval() time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.checkInterval
}

// SetCheckInterval changes the minimum time between two freshness checks.
func (i *Interpreter) SetCheckInterval(d time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.checkInterval = d
}

// ForceCheck makes the next request check the manifest for changes regardless of the
// check interval.
func (i *Interpreter) ForceCheck() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.forceCheck = true
}

// Freshness returns the Unix time of the last successful compile, or 0 if there has been none.
func (i *Interpreter) Freshness() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.current == nil {
		return 0
	}
	return i.current.compiledAt.Unix()
}

// Manifest returns the syntax tree of the last successful compile, or nil.
func (i *Interpreter) Manifest() *manifest.Tree {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.current == nil {
		return nil
	}
	return i.current.tree
}

// Refresh brings the compiled manifest up to date, subject to the check interval.
func (i *Interpreter) Refresh() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return classify(i.ensureFresh())
}

// ensureFresh must be called with mu held.
func (i *Interpreter) ensureFresh() error {
	now := i.now()

	if !i.forceCheck && !i.lastChecked.IsZero() && now.Sub(i.lastChecked) < i.checkInterval {
		i.metrics.IncrementFreshnessCheck(metrics.CheckDebounced)
		if i.current == nil {
			return i.lastErr
		}
		return nil
	}
	i.forceCheck = false
	i.lastChecked = now

	if i.current == nil {
		i.lastErr = i.firstCompile(now)
		return i.lastErr
	}

	if !i.source.Exists() {
		i.metrics.IncrementFreshnessCheck(metrics.CheckMissing)
		i.logger.Warn("Manifest is missing, serving last compile",
			"manifest", i.source.Location(),
			"compiledAt", i.current.compiledAt)
		return nil
	}

	changed, err := i.source.Changed(&i.current.tree.Files)
	if err != nil {
		i.metrics.IncrementFreshnessCheck(metrics.CheckError)
		i.logger.Warn("Failed to check manifest for changes, serving last compile",
			"manifest", i.source.Location(),
			"error", err)
		return nil
	}
	if !changed {
		i.metrics.IncrementFreshnessCheck(metrics.CheckUnchanged)
		return nil
	}

	i.metrics.IncrementFreshnessCheck(metrics.CheckChanged)
	i.logger.Info("Manifest changed, recompiling", "manifest", i.source.Location())
	return i.compile(now)
}

// firstCompile builds the first artifact. The source must exist.
func (i *Interpreter) firstCompile(now time.Time) error {
	if !i.source.Exists() {
		i.metrics.ObserveCompile(metrics.CompileMissing, time.Now())
		return fmt.Errorf("%w: %s", errz.ErrConfigurationMissing, i.source.Location())
	}
	return i.compile(now)
}

// compile parses and prepares the manifest, and replaces the current artifact only when both
// steps succeed.
func (i *Interpreter) compile(now time.Time) error {
	start := time.Now()

	tree, err := i.parser.Parse()
	if err != nil {
		i.metrics.ObserveCompile(metrics.CompileParseError, start)
		if !errz.IsConfigurationError(err) {
			err = fmt.Errorf("%w: %w", errz.ErrManifestParse, err)
		}
		i.logger.Error("Failed to parse manifest", "manifest", i.source.Location(), "error", err)
		return err
	}

	scope, err := i.evaluator.Prepare(tree)
	if err != nil {
		i.metrics.ObserveCompile(metrics.CompileEvalError, start)
		if !errz.IsConfigurationError(err) {
			err = fmt.Errorf("%w: %w", errz.ErrEvaluation, err)
		}
		i.logger.Error("Failed to prepare manifest", "manifest", i.source.Location(), "error", err)
		return err
	}

	i.current = &artifact{tree: tree, scope: scope, compiledAt: now}
	i.lastChecked = now
	i.metrics.ObserveCompile(metrics.CompileSuccess, start)
	i.logger.Info("Compiled manifest",
		"manifest", i.source.Location(),
		"files", len(tree.Files.Files),
		"classes", len(tree.Classes),
		"nodes", len(tree.Nodes),
		"duration", time.Since(start))
	return nil
}

// Run compiles the catalog for client. In node-aware mode the client name selects the node
// entry, trying the full name before the short name. In node-agnostic mode the manifest is
// evaluated with the facts and the configured extra classes.
//
// The returned error is either a configuration error (see errz.IsConfigurationError) or an
// errz.ErrInternalDefect; panics inside evaluation are recovered as the latter.
func (i *Interpreter) Run(client string, facts catalog.Facts) (cat *catalog.Catalog, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("Recovered panic during evaluation", "client", client, "panic", r)
			cat = nil
			err = errz.NewInternalDefect(panicError(r))
		}
	}()

	if err := i.ensureFresh(); err != nil {
		return nil, classify(err)
	}

	if i.useNodes {
		cat, err = i.evalNode(client, facts)
	} else {
		cat, err = i.evalAgnostic(client, facts)
	}
	if err != nil {
		return nil, classify(err)
	}
	return cat, nil
}

func (i *Interpreter) evalNode(client string, facts catalog.Facts) (*catalog.Catalog, error) {
	if client == "" {
		return nil, fmt.Errorf("%w: a client name is required for node-aware evaluation",
			errz.ErrInvalidRequest)
	}
	cat, err := i.current.scope.EvalNode(CandidateNames(client), facts)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, errors.New("evaluator returned no catalog")
	}
	return cat, nil
}

func (i *Interpreter) evalAgnostic(client string, facts catalog.Facts) (*catalog.Catalog, error) {
	cat, err := i.current.scope.Evaluate(facts, i.classes)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, errors.New("evaluator returned no catalog")
	}
	cat.Classes = catalog.MergeClasses(cat.Classes, i.classes)
	if client != "" {
		cat.Name = client
	}
	return cat, nil
}

// CandidateNames returns the node names tried for client: the full name, then the short name
// before the first dot when there is one.
func CandidateNames(client string) []string {
	names := []string{client}
	if short, _, found := strings.Cut(client, "."); found && short != "" {
		names = append(names, short)
	}
	return names
}

// classify passes configuration errors through and wraps everything else as a defect.
func classify(err error) error {
	if err == nil || errz.IsConfigurationError(err) || errors.Is(err, errz.ErrInternalDefect) {
		return err
	}
	return errz.NewInternalDefect(err)
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
