package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrSurfaceStopped is returned by Surface methods once Run has exited.
var ErrSurfaceStopped = errors.New("surface stopped")

// Outline is the highlight drawn around an element.
type Outline int

const (
	OutlineNone Outline = iota
	OutlineTransient
	OutlinePersistent
)

func (o Outline) String() string {
	switch o {
	case OutlineTransient:
		return "transient"
	case OutlinePersistent:
		return "persistent"
	default:
		return "none"
	}
}

// surfaceState is owned by the Run goroutine.
type surfaceState struct {
	armed    bool
	hovered  *Element
	selected *Element
}

// Surface is the isolated side of the channel, modelled as an actor: every
// state change runs on the Run goroutine, and other goroutines talk to it
// only through messages.
type Surface struct {
	send    SendFunc
	inbox   chan func(*surfaceState)
	stopped chan struct{}
}

// NewSurface creates a surface that reports to the host through send.
func NewSurface(send SendFunc) *Surface {
	return &Surface{
		send:    send,
		inbox:   make(chan func(*surfaceState)),
		stopped: make(chan struct{}),
	}
}

// Run processes messages until ctx is done.
func (s *Surface) Run(ctx context.Context) error {
	defer close(s.stopped)

	var st surfaceState
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.inbox:
			fn(&st)
		}
	}
}

// do runs fn on the actor goroutine and waits for it to finish.
func (s *Surface) do(fn func(*surfaceState) error) error {
	errc := make(chan error, 1)
	select {
	case s.inbox <- func(st *surfaceState) { errc <- fn(st) }:
	case <-s.stopped:
		return ErrSurfaceStopped
	}
	return <-errc
}

// Deliver handles a message sent by the host.
func (s *Surface) Deliver(m Message) error {
	return s.do(func(st *surfaceState) error {
		switch msg := m.(type) {
		case ToggleSelector:
			st.armed = msg.Enabled
			st.hovered = nil
			return nil
		case ClearSelection:
			st.selected = nil
			return nil
		default:
			return fmt.Errorf("%w: %s is not sent by the host", ErrUnknownMessage, m.Type())
		}
	})
}

// Hover moves the transient outline to e while picking is armed.
func (s *Surface) Hover(e *Element) error {
	return s.do(func(st *surfaceState) error {
		if st.armed {
			st.hovered = e
		}
		return nil
	})
}

// Click picks e when armed: the selection is reported to the host, picking
// is disarmed and e receives the persistent outline. It reports whether a
// selection was made.
func (s *Surface) Click(e *Element) (bool, error) {
	picked := false
	err := s.do(func(st *surfaceState) error {
		if !st.armed {
			return nil
		}
		st.armed = false
		st.hovered = nil
		st.selected = e
		picked = true

		return s.emit(ElementSelected{Selection: Selection{
			Selector: Selector(e),
			Text:     strings.TrimSpace(e.TextContent()),
		}})
	})
	return picked, err
}

// Log relays a console call.
func (s *Surface) Log(level string, args ...any) error {
	msg := Console{Level: NormalizeLevel(level), Message: FormatArgs(args...)}
	return s.do(func(*surfaceState) error { return s.emit(msg) })
}

// ReportError relays an uncaught error or rejection.
func (s *Surface) ReportError(err error) error {
	msg := Console{Level: LevelError, Message: formatError(err)}
	return s.do(func(*surfaceState) error { return s.emit(msg) })
}

// Outline reports the highlight currently drawn around e. The persistent
// outline of the selection takes precedence over hover highlighting.
func (s *Surface) Outline(e *Element) Outline {
	out := OutlineNone
	_ = s.do(func(st *surfaceState) error {
		switch {
		case e != nil && e == st.selected:
			out = OutlinePersistent
		case st.armed && e == st.hovered:
			out = OutlineTransient
		}
		return nil
	})
	return out
}

// Armed reports whether picking is active.
func (s *Surface) Armed() bool {
	armed := false
	_ = s.do(func(st *surfaceState) error {
		armed = st.armed
		return nil
	})
	return armed
}

func (s *Surface) emit(m Message) error {
	if s.send == nil {
		return nil
	}
	return s.send(m)
}
