package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

// Source locates the root manifest file on a filesystem.
type Source struct {
	fs   afero.Fs
	path string
}

// NewSource creates a Source for the root file at path. A nil filesystem means the host OS.
func NewSource(fsys afero.Fs, path string) *Source {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Source{fs: fsys, path: filepath.Clean(path)}
}

// Location returns the path of the root manifest file.
func (s *Source) Location() string {
	return s.path
}

// Fs returns the filesystem the source reads from.
func (s *Source) Fs() afero.Fs {
	return s.fs
}

// Exists reports whether the root manifest file is present and is not a directory.
func (s *Source) Exists() bool {
	info, err := s.fs.Stat(s.path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Changed reports whether any file of a previously parsed set differs from what is on disk
// now. Files whose modification time and size are unchanged are not read. Files that were
// touched are re-hashed, so rewriting identical content is not a change; their stored
// modification time and size are updated in files so the next check skips them again.
func (s *Source) Changed(files *FileSet) (bool, error) {
	if files == nil {
		return false, nil
	}
	for idx, prev := range files.Files {
		info, err := s.fs.Stat(prev.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return true, nil
			}
			return false, fmt.Errorf("stat %s: %w", prev.Path, err)
		}
		if info.ModTime().Equal(prev.ModTime) && info.Size() == prev.Size {
			continue
		}
		current, err := fingerprint(s.fs, prev.Path)
		if err != nil {
			return false, err
		}
		if current.Digest != prev.Digest {
			return true, nil
		}
		files.Files[idx] = current
	}

	for _, pattern := range files.Patterns {
		matches, err := afero.Glob(s.fs, pattern)
		if err != nil {
			return false, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			if !files.Contains(filepath.Clean(m)) {
				return true, nil
			}
		}
	}
	return false, nil
}

// resolvePattern makes an import pattern absolute relative to the directory of the root file.
func (s *Source) resolvePattern(pattern string) string {
	if filepath.IsAbs(pattern) {
		return filepath.Clean(pattern)
	}
	return filepath.Join(filepath.Dir(s.path), pattern)
}

// glob expands a resolved pattern into a sorted list of regular files.
func (s *Source) glob(pattern string) ([]string, error) {
	matches, err := afero.Glob(s.fs, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if info, err := s.fs.Stat(m); err == nil && !info.IsDir() {
			out = append(out, filepath.Clean(m))
		}
	}
	slices.Sort(out)
	return out, nil
}

func fingerprint(fsys afero.Fs, path string) (Fingerprint, error) {
	fp, _, err := readFile(fsys, path)
	return fp, err
}

// readFile reads a manifest file and fingerprints the bytes that were read.
func readFile(fsys afero.Fs, path string) (Fingerprint, []byte, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return Fingerprint{}, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return Fingerprint{}, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Fingerprint{
		Path:    path,
		ModTime: info.ModTime(),
		Size:    info.Size(),
		Digest:  blake3.Sum256(data),
	}, data, nil
}
