// Package logging builds the zerolog loggers used across boardstream.
// Console output is used when the destination is a terminal and JSON
// otherwise; components receive a *zerolog.Logger and tag it with their
// name.
//
// Example usage:
//
//	logger := logging.NewLoggerFromConfig(&logging.Config{Level: "debug"})
//	reg := registry.New(verifier, logging.Component(&logger, "registry"))
package logging

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// ComponentKey is the field naming the subsystem that wrote an entry.
const ComponentKey = "component"

// Component returns a child of parent tagged with the component name. A
// nil parent yields a disabled logger.
func Component(parent *zerolog.Logger, name string) *zerolog.Logger {
	if parent == nil {
		nop := zerolog.Nop()
		return &nop
	}
	child := parent.With().Str(ComponentKey, name).Logger()
	return &child
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
