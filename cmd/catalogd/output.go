package main

import (
	"io"

	"github.com/atlanticdynamic/catalogd/internal/format"
)

// writeNewline terminates text encodings so the shell prompt starts on its own line.
func writeNewline(w io.Writer, scheme format.Scheme) error {
	if scheme == format.SchemeJSON {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}
