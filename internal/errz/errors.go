// Package errz provides the shared error taxonomy for the compiler, the interpreter and the
// master service. Every failure leaving the interpreter is one of a small closed set of kinds,
// and the transports flatten them into a single protocol fault shape.
package errz

import "errors"

// Configuration errors. These are the caller-classifiable failures: the request could not be
// served because of the manifest or the request itself, not because of a defect in the server.
var (
	ErrConfigurationMissing = errors.New("manifest must exist")
	ErrManifestParse        = errors.New("could not parse manifest")
	ErrEvaluation           = errors.New("evaluation failed")
	ErrInvalidRequest       = errors.New("invalid request")
)

// Evaluation specific errors, always wrapped together with ErrEvaluation
var (
	ErrNodeNotFound      = errors.New("could not find node")
	ErrUndefinedClass    = errors.New("undefined class")
	ErrUndefinedVariable = errors.New("undefined variable")
	ErrDuplicateResource = errors.New("duplicate resource definition")
	ErrClassCycle        = errors.New("class inheritance cycle")
)

// Protocol errors
var (
	ErrUnsupportedFormat = errors.New("unavailable config format")
	ErrDecodeFacts       = errors.New("could not rebuild facts")
	ErrEncodeCatalog     = errors.New("could not encode catalog")
)

// ErrInternalDefect marks any failure that was not anticipated by the interpreter.
var ErrInternalDefect = errors.New("internal defect")
