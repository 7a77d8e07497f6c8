// Package config loads evaluator settings from CUE files.
//
// A settings file is unified with the embedded #Config schema, which supplies
// defaults and rejects out-of-range values and unknown fields:
//
//	epsilon:        0.001
//	max_iterations: 200
//	workers:        8
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// Config holds the evaluator settings.
type Config struct {
	Epsilon       float64 `json:"epsilon"`
	MaxIterations int     `json:"max_iterations"`
	Workers       int     `json:"workers"`
	MaxJoinRows   int     `json:"max_join_rows"`
	LogLevel      string  `json:"log_level"`
}

// Error is returned when a settings file cannot be compiled or does not
// satisfy the schema.
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config %s: %s", e.Path, e.Message)
}

// Default returns the schema defaults.
func Default() (*Config, error) {
	return Parse("", nil)
}

// Load reads and validates the settings file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(path, data)
}

// Parse validates src against the schema. A nil src yields the defaults.
// filename is used in error positions only.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, &Error{Message: "invalid schema: " + cueerrors.Details(err, nil)}
	}
	value := schema.LookupPath(cue.ParsePath("#Config"))

	if src != nil {
		user := ctx.CompileBytes(src, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return nil, &Error{Path: filename, Message: cueerrors.Details(err, nil)}
		}
		value = value.Unify(user)
	}

	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, &Error{Path: filename, Message: cueerrors.Details(err, nil)}
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, &Error{Path: filename, Message: err.Error()}
	}
	return &cfg, nil
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
