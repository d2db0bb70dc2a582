package testutil

import (
	"embed"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

//go:embed testdata/site
var siteManifest embed.FS

// SiteRoot is the path of the root manifest written by WriteSiteManifest, relative to its dir.
const SiteRoot = "site.toml"

// WriteSiteManifest copies the example site manifest (a root file importing classes and
// nodes) into fsys under dir and returns the path of the root file.
func WriteSiteManifest(t *testing.T, fsys afero.Fs, dir string) string {
	t.Helper()
	err := fs.WalkDir(siteManifest, "testdata/site", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := siteManifest.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel("testdata/site", path)
		if err != nil {
			return err
		}
		target := filepath.Join(dir, rel)
		if err := fsys.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return afero.WriteFile(fsys, target, data, 0o644)
	})
	if err != nil {
		t.Fatalf("Failed to write site manifest: %v", err)
	}
	return filepath.Join(dir, SiteRoot)
}

// WriteManifest writes a single manifest file into fsys and returns its path.
func WriteManifest(t *testing.T, fsys afero.Fs, path, content string) string {
	t.Helper()
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create manifest dir: %v", err)
	}
	if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}
	return path
}
