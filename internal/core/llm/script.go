package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Reply is one scripted response. Text is split into chunks of ChunkSize
// bytes unless Chunks is given. A non-empty Error is yielded after the
// chunks to simulate a backend failure mid-stream.
type Reply struct {
	Text      string   `yaml:"text"`
	Chunks    []string `yaml:"chunks"`
	ChunkSize int      `yaml:"chunk_size"`
	Error     string   `yaml:"error"`
}

func (r Reply) chunks() []string {
	if len(r.Chunks) > 0 {
		return r.Chunks
	}
	size := r.ChunkSize
	if size <= 0 {
		size = 16
	}

	var out []string
	for text := r.Text; len(text) > 0; {
		n := min(size, len(text))
		out = append(out, text[:n])
		text = text[n:]
	}
	return out
}

// Call records a prompt received by a Script.
type Call struct {
	Prompt  string
	Context Context
}

// Script replays canned replies in order, looping when exhausted. It is used
// for offline runs and as the text source in tests.
type Script struct {
	mu      sync.Mutex
	replies []Reply
	next    int
	calls   []Call
}

// NewScript creates a Script that replays replies.
func NewScript(replies ...Reply) *Script {
	return &Script{replies: replies}
}

// LoadScript reads replies from a YAML file of the form:
//
//	replies:
//	  - text: "hello ---JSON_OPERATIONS--- {...}"
//	    chunk_size: 8
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	var doc struct {
		Replies []Reply `yaml:"replies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	if len(doc.Replies) == 0 {
		return nil, fmt.Errorf("script %s has no replies", path)
	}
	return NewScript(doc.Replies...), nil
}

func (s *Script) Generate(ctx context.Context, prompt string, gctx Context) iter.Seq2[string, error] {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Prompt: prompt, Context: gctx})
	var reply Reply
	if len(s.replies) > 0 {
		reply = s.replies[s.next%len(s.replies)]
		s.next++
	}
	s.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, chunk := range reply.chunks() {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
		if reply.Error != "" {
			yield("", errors.New(reply.Error))
		}
	}
}

// Calls returns the prompts received so far.
func (s *Script) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}
