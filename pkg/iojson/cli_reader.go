package iojson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// ErrNoInput is returned when no file was named and stdin is a terminal.
var ErrNoInput = errors.New("no input: pass --file or pipe JSON on stdin")

// FileReader decodes a JSON document of type T named by a --file flag.
// With no flag, or with "-", it reads piped stdin instead.
type FileReader[T any] struct {
	// Usage overrides the flag's help text.
	Usage string

	path  string
	stdin *os.File
}

func (fr *FileReader[T]) Flag() *cli.StringFlag {
	f := &cli.StringFlag{
		Name:        "file",
		Aliases:     []string{"f"},
		Usage:       "path to a JSON file, or - for stdin",
		Destination: &fr.path,
	}
	if fr.Usage != "" {
		f.Usage = fr.Usage
	}
	return f
}

func (fr *FileReader[T]) Read() (T, error) {
	r, closeFn, err := fr.open()
	if err != nil {
		var zero T
		return zero, err
	}
	defer closeFn()
	return Decode[T](r)
}

func (fr *FileReader[T]) open() (io.Reader, func(), error) {
	if fr.path != "" && fr.path != "-" {
		f, err := os.Open(fr.path)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", fr.path, err)
		}
		return f, func() { _ = f.Close() }, nil
	}

	in := fr.stdin
	if in == nil {
		in = os.Stdin
	}
	if term.IsTerminal(int(in.Fd())) {
		return nil, nil, ErrNoInput
	}
	return in, func() {}, nil
}

// Decode reads a single JSON value of type T from r.
func Decode[T any](r io.Reader) (T, error) {
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return v, fmt.Errorf("decode JSON: %w", err)
	}
	return v, nil
}
