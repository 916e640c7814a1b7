// Package logging builds the process-wide hclog logger.
package logging

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// Options selects the logger's sink and format.
type Options struct {
	Name   string
	Level  string
	JSON   bool
	Output io.Writer
}

// New returns a root logger. An unknown level falls back to info.
func New(opts Options) hclog.Logger {
	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       opts.Name,
		Level:      level,
		Output:     out,
		JSONFormat: opts.JSON,
	})
}
