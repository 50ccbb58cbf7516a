// Package logutils builds the process-wide zerolog logger.
package logutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// New parses level and returns a logger writing to file. The returned func
// closes the file and is never nil.
//
// An empty file means stderr, rendered for humans and colored only when
// stderr is a terminal. Files receive one JSON object per line.
func New(level, file string) (zerolog.Logger, func(), error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), func() {}, fmt.Errorf("log level %q: %w", level, err)
	}

	out, closeFn, err := sink(file)
	if err != nil {
		return zerolog.Nop(), func() {}, err
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), closeFn, nil
}

func sink(file string) (io.Writer, func(), error) {
	if file == "" {
		return zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
			NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
		}, func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
