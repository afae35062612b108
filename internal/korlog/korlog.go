// Package korlog wires the process-wide zerolog.Logger: a human-readable
// console writer for local/dev runs, structured JSON for service runs.
package korlog

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu      sync.RWMutex
	current zerolog.Logger = newConsoleLogger(os.Stderr)
)

func newConsoleLogger(w io.Writer) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return zerolog.New(cw).With().Timestamp().Logger()
}

func newJSONLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// Configure sets the process-wide logger. json selects the JSON writer
// (service/prod-like runs); otherwise the console writer is used.
func Configure(json bool, level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	if json {
		current = newJSONLogger(os.Stdout)
	} else {
		current = newConsoleLogger(os.Stderr)
	}
	current = current.Level(level)
}

// Default returns the current process-wide logger.
func Default() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}
