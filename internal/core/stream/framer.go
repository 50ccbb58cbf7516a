// Package stream splits a model's streamed response into the conversational
// text shown to the user and the structured payload that trails it.
package stream

import "strings"

// Markers separate conversational text from a trailing JSON payload. A
// response carries at most one of them.
const (
	BlueprintMarker  = "---JSON_BLUEPRINT---"
	OperationsMarker = "---JSON_OPERATIONS---"
)

// PayloadKind identifies which payload, if any, a response is carrying.
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadBlueprint
	PayloadOperations
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadBlueprint:
		return "blueprint"
	case PayloadOperations:
		return "operations"
	default:
		return "none"
	}
}

// Frame is the classification of an accumulated buffer. Content is the
// conversational prefix that is safe to display. Tail is the raw text after
// the winning marker and is empty when Kind is PayloadNone.
type Frame struct {
	Content string
	Kind    PayloadKind
	Tail    string
}

// Classify splits buf. The blueprint marker is searched for first, so it wins
// over the operations marker when both are present.
func Classify(buf string) Frame {
	if i := strings.Index(buf, BlueprintMarker); i >= 0 {
		return Frame{
			Content: buf[:i],
			Kind:    PayloadBlueprint,
			Tail:    buf[i+len(BlueprintMarker):],
		}
	}
	if i := strings.Index(buf, OperationsMarker); i >= 0 {
		return Frame{
			Content: buf[:i],
			Kind:    PayloadOperations,
			Tail:    buf[i+len(OperationsMarker):],
		}
	}
	return Frame{Content: buf}
}

// Framer accumulates chunks and reclassifies the whole buffer after each one.
// The zero value is ready to use. A Framer is not safe for concurrent use.
type Framer struct {
	buf   strings.Builder
	frame Frame
}

// Write appends chunk and returns the classification of everything written
// so far.
func (f *Framer) Write(chunk string) Frame {
	f.buf.WriteString(chunk)
	f.frame = Classify(f.buf.String())
	return f.frame
}

// Frame returns the latest classification.
func (f *Framer) Frame() Frame { return f.frame }

// Text returns the raw accumulated buffer.
func (f *Framer) Text() string { return f.buf.String() }
