package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atlanticdynamic/catalogd/internal/catalog"
	"github.com/atlanticdynamic/catalogd/internal/format"
)

// loadFacts reads facts from path, decoded under formatName or, when that is empty, the
// scheme named by the file extension, then applies key=value overrides.
func loadFacts(path, formatName string, pairs []string) (catalog.Facts, error) {
	facts := catalog.Facts{}
	if path != "" {
		if formatName == "" {
			formatName = strings.TrimPrefix(filepath.Ext(path), ".")
		}
		scheme, err := format.Parse(formatName)
		if err != nil {
			return nil, fmt.Errorf("facts file %s: %w", path, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read facts: %w", err)
		}
		if err := scheme.Decode(data, &facts); err != nil {
			return nil, fmt.Errorf("failed to decode facts %s: %w", path, err)
		}
		if facts == nil {
			facts = catalog.Facts{}
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("fact %q must be key=value", pair)
		}
		facts[key] = value
	}
	return facts, nil
}
