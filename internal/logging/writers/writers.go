// Package writers resolves a log output setting into an io.Writer.
package writers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriterType represents the type of writer to create
type WriterType string

const (
	WriterTypeStdout WriterType = "stdout"
	WriterTypeStderr WriterType = "stderr"
	WriterTypeFile   WriterType = "file"
)

// CreateWriter creates an io.Writer for an output setting:
//   - "stdout" or "" writes to os.Stdout
//   - "stderr" writes to os.Stderr
//   - "file:///var/log/catalogd.log" or "/var/log/catalogd.log" appends to the file,
//     creating parent directories as needed
func CreateWriter(output string) (io.Writer, error) {
	switch ParseWriterType(output) {
	case WriterTypeStdout:
		return os.Stdout, nil
	case WriterTypeStderr:
		return os.Stderr, nil
	}

	path := strings.TrimPrefix(output, "file://")
	if strings.Contains(path, "://") || !strings.ContainsAny(path, `/\`) {
		return nil, fmt.Errorf("unsupported output format: %s", output)
	}
	return openFile(path)
}

func openFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	return f, nil
}

// ParseWriterType determines the writer type from an output string
func ParseWriterType(output string) WriterType {
	switch output {
	case "", "stdout":
		return WriterTypeStdout
	case "stderr":
		return WriterTypeStderr
	default:
		return WriterTypeFile
	}
}
