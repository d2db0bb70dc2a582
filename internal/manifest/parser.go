package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/atlanticdynamic/catalogd/internal/errz"
	"github.com/pelletier/go-toml/v2"
)

// file is the on-disk shape of a single manifest file.
type file struct {
	Imports   []string          `toml:"imports"`
	Includes  []string          `toml:"includes"`
	Variables map[string]any    `toml:"variables"`
	Resources []ResourceDecl    `toml:"resources"`
	Classes   map[string]*Class `toml:"classes"`
	Nodes     map[string]*Node  `toml:"nodes"`
}

// Parser turns the files of a Source into a Tree.
type Parser struct {
	source *Source
	logger *slog.Logger
}

// NewParser creates a parser reading from src.
func NewParser(src *Source, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{source: src, logger: logger.WithGroup("manifest.Parser")}
}

// Parse reads the root file and every file selected by its imports, transitively, and merges
// them into one Tree. Every returned error wraps errz.ErrManifestParse.
func (p *Parser) Parse() (*Tree, error) {
	tree := &Tree{
		Root:      p.source.Location(),
		Variables: map[string]any{},
		Classes:   map[string]*Class{},
		Nodes:     map[string]*Node{},
	}

	queue := []string{p.source.Location()}
	seen := map[string]struct{}{p.source.Location(): {}}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		fp, data, err := readFile(p.source.fs, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errz.ErrManifestParse, err)
		}
		tree.Files.Files = append(tree.Files.Files, fp)

		f, err := decodeFile(path, data)
		if err != nil {
			return nil, err
		}
		if err := tree.merge(path, f); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errz.ErrManifestParse, path, err)
		}

		for _, pattern := range f.Imports {
			resolved := p.source.resolvePattern(pattern)
			tree.Files.Patterns = append(tree.Files.Patterns, resolved)
			matches, err := p.source.glob(resolved)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", errz.ErrManifestParse, path, err)
			}
			if len(matches) == 0 {
				p.logger.Warn("Import pattern matched no files", "file", path, "pattern", pattern)
			}
			for _, m := range matches {
				if _, ok := seen[m]; ok {
					continue
				}
				seen[m] = struct{}{}
				queue = append(queue, m)
			}
		}
	}

	p.logger.Debug("Parsed manifest",
		"root", tree.Root,
		"files", len(tree.Files.Files),
		"classes", len(tree.Classes),
		"nodes", len(tree.Nodes))
	return tree, nil
}

// decodeFile decodes one file strictly, so misspelled keys are reported instead of ignored.
func decodeFile(path string, data []byte) (*file, error) {
	f := &file{}
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(f); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, fmt.Errorf("%w: %s:%d:%d: %s", errz.ErrManifestParse, path, row, col, decodeErr.Error())
		}
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return nil, fmt.Errorf("%w: %s: %s", errz.ErrManifestParse, path, strictErr.String())
		}
		return nil, fmt.Errorf("%w: %s: %w", errz.ErrManifestParse, path, err)
	}
	return f, nil
}

func (t *Tree) merge(path string, f *file) error {
	var errs []error

	t.Includes = append(t.Includes, f.Includes...)

	for k, v := range f.Variables {
		if _, dup := t.Variables[k]; dup {
			errs = append(errs, fmt.Errorf("variable %q defined more than once", k))
			continue
		}
		t.Variables[k] = v
	}

	for i, r := range f.Resources {
		if err := r.validate(); err != nil {
			errs = append(errs, fmt.Errorf("resource %d: %w", i, err))
			continue
		}
		t.Resources = append(t.Resources, r)
	}

	for _, name := range sortedKeys(f.Classes) {
		class := f.Classes[name]
		if class == nil {
			class = &Class{}
		}
		if prev, dup := t.Classes[name]; dup {
			errs = append(errs, fmt.Errorf("class %q already defined in %s", name, prev.File))
			continue
		}
		for i, r := range class.Resources {
			if err := r.validate(); err != nil {
				errs = append(errs, fmt.Errorf("class %q resource %d: %w", name, i, err))
			}
		}
		class.Name = name
		class.File = path
		t.Classes[name] = class
	}

	for _, name := range sortedKeys(f.Nodes) {
		node := f.Nodes[name]
		if node == nil {
			node = &Node{}
		}
		if prev, dup := t.Nodes[name]; dup {
			errs = append(errs, fmt.Errorf("node %q already defined in %s", name, prev.File))
			continue
		}
		for i, r := range node.Resources {
			if err := r.validate(); err != nil {
				errs = append(errs, fmt.Errorf("node %q resource %d: %w", name, i, err))
			}
		}
		node.Name = name
		node.File = path
		t.Nodes[name] = node
	}

	return errors.Join(errs...)
}

func (r ResourceDecl) validate() error {
	var errs []error
	if r.Type == "" {
		errs = append(errs, errors.New("resource type is required"))
	}
	if r.Title == "" {
		errs = append(errs, errors.New("resource title is required"))
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
