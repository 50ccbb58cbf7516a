package sandbox

import (
	"errors"
	"fmt"
	"sync"
)

// Tab is a host panel. Only the console tab has protocol significance.
type Tab string

const (
	TabPreview Tab = "preview"
	TabCode    Tab = "code"
	TabConsole Tab = "console"
)

var ErrUnknownTab = errors.New("unknown tab")

func (t Tab) IsValid() bool {
	switch t {
	case TabPreview, TabCode, TabConsole:
		return true
	}
	return false
}

// SendFunc delivers a host message to the surface.
type SendFunc func(Message) error

// Update describes what changed in the host after receiving a message.
type Update struct {
	Entry     *LogEntry
	Raised    bool
	Selection *Selection
}

// Host is the host side of the channel. It owns the log window, the active
// tab and the last selection reported by the surface.
type Host struct {
	mu         sync.Mutex
	logs       *LogWindow
	active     Tab
	autoRaised bool
	selecting  bool
	selection  *Selection
	send       SendFunc
}

// NewHost creates a host whose log window holds maxEntries. send may be nil
// when no surface is attached; outbound messages are then dropped.
func NewHost(maxEntries int, send SendFunc) *Host {
	return &Host{
		logs:   NewLogWindow(maxEntries),
		active: TabPreview,
		send:   send,
	}
}

// Attach replaces the function used to reach the surface.
func (h *Host) Attach(send SendFunc) {
	h.mu.Lock()
	h.send = send
	h.mu.Unlock()
}

// Receive applies a message sent by the surface.
//
// The first error-level entry that arrives while another tab is active
// raises the console tab. Later errors do not steal focus again until the
// log is cleared.
func (h *Host) Receive(m Message) (Update, error) {
	switch msg := m.(type) {
	case Console:
		entry := h.logs.Append(LogEntry{Level: NormalizeLevel(string(msg.Level)), Message: msg.Message})

		h.mu.Lock()
		defer h.mu.Unlock()
		upd := Update{Entry: &entry}
		if entry.Level == LevelError && h.active != TabConsole && !h.autoRaised {
			h.active = TabConsole
			h.autoRaised = true
			upd.Raised = true
		}
		return upd, nil

	case ElementSelected:
		sel := msg.Selection

		h.mu.Lock()
		defer h.mu.Unlock()
		h.selection = &sel
		h.selecting = false
		return Update{Selection: &sel}, nil

	default:
		return Update{}, fmt.Errorf("%w: %s is not sent by the surface", ErrUnknownMessage, m.Type())
	}
}

// SetSelecting arms or disarms the element picker.
func (h *Host) SetSelecting(enabled bool) error {
	h.mu.Lock()
	h.selecting = enabled
	send := h.send
	h.mu.Unlock()

	return deliver(send, ToggleSelector{Enabled: enabled})
}

// ClearSelection forgets the current selection and removes its outline.
func (h *Host) ClearSelection() error {
	h.mu.Lock()
	h.selection = nil
	send := h.send
	h.mu.Unlock()

	return deliver(send, ClearSelection{})
}

func deliver(send SendFunc, m Message) error {
	if send == nil {
		return nil
	}
	return send(m)
}

// Selection returns a copy of the current selection, or nil.
func (h *Host) Selection() *Selection {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.selection == nil {
		return nil
	}
	sel := *h.selection
	return &sel
}

func (h *Host) Selecting() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.selecting
}

func (h *Host) ActiveTab() Tab {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// SetActiveTab records the panel the user switched to.
func (h *Host) SetActiveTab(t Tab) error {
	if !t.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownTab, t)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = t
	return nil
}

func (h *Host) Logs() []LogEntry { return h.logs.Entries() }

// Restore seeds the log window, typically from a checkpoint.
func (h *Host) Restore(entries []LogEntry) {
	for _, e := range entries {
		h.logs.Append(e)
	}
}

// RestoreSelection sets the selection without notifying the surface.
func (h *Host) RestoreSelection(sel *Selection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sel == nil {
		h.selection = nil
		return
	}
	cp := *sel
	h.selection = &cp
}

// ClearLogs empties the log window and re-enables console auto-raise.
func (h *Host) ClearLogs() {
	h.logs.Clear()

	h.mu.Lock()
	h.autoRaised = false
	h.mu.Unlock()
}
