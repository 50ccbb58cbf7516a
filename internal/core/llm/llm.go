// Package llm adapts text generation backends to a single streaming contract.
package llm

import (
	"context"
	"iter"
)

// Role identifies the speaker of a history turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one earlier exchange passed to the model as history.
type Turn struct {
	Role Role
	Text string
}

// Context carries everything besides the prompt that shapes a generation.
type Context struct {
	System  string
	History []Turn
}

// Generator produces a finite, non-restartable sequence of text fragments.
// A backend failure is yielded as a non-nil error and ends the sequence; it
// is never reported as a silently truncated stream.
type Generator interface {
	Generate(ctx context.Context, prompt string, gctx Context) iter.Seq2[string, error]
}

// Collect drains a generation into a single string.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var out []byte
	for chunk, err := range seq {
		if err != nil {
			return string(out), err
		}
		out = append(out, chunk...)
	}
	return string(out), nil
}

// Unavailable is a Generator whose every generation fails with Err. It stands
// in for a backend that could not be configured.
type Unavailable struct {
	Err error
}

func (u Unavailable) Generate(ctx context.Context, prompt string, gctx Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", u.Err)
	}
}
