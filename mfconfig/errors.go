package mfconfig

import (
	"errors"
	"fmt"
)

// Exported error categories returned by this package. Use errors.Is/As to
// detect them.
//   - ErrConfigParse: a text config value is not a valid YAML mapping.
//   - ErrUnsupportedValue: a config value is neither a mapping nor text.
//   - ErrFormat: failure to marshal a mapping to YAML.
//   - ErrWrite: failure to write the config file to disk.
//   - ErrRead: failure to read a persisted config file back.
var (
	ErrConfigParse      = errors.New("parse config string")
	ErrUnsupportedValue = errors.New("unsupported config value")
	ErrFormat           = errors.New("format config")
	ErrWrite            = errors.New("write to config file")
	ErrRead             = errors.New("read config file")
)

// ParseError reports a config string that could not be parsed as a YAML
// mapping. Err holds the underlying parser diagnostic.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Error while parsing provided MetricFlow config string: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is reports ErrConfigParse as a match so callers can test the category
// without unwrapping to the concrete type.
func (e *ParseError) Is(target error) bool { return target == ErrConfigParse }
