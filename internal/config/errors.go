package config

import "errors"

var (
	ErrFailedToLoadConfig     = errors.New("failed to load config")
	ErrFailedToValidateConfig = errors.New("failed to validate config")
	ErrMissingRequiredField   = errors.New("missing required field")
	ErrInvalidValue           = errors.New("invalid value")
)
