// Package sandbox implements the message protocol between the host and the
// isolated preview surface: console relay and element picking.
package sandbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMessage is returned when decoding a message with an unrecognized
// type field.
var ErrUnknownMessage = errors.New("unknown sandbox message")

type MessageType string

const (
	TypeConsole         MessageType = "console"
	TypeElementSelected MessageType = "element-selected"
	TypeToggleSelector  MessageType = "toggle-selector"
	TypeClearSelection  MessageType = "clear-selection"
)

// Level is a console severity.
type Level string

const (
	LevelLog   Level = "log"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelDebug Level = "debug"
)

// NormalizeLevel maps s onto a known level. Anything unrecognized becomes
// LevelLog.
func NormalizeLevel(s string) Level {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelLog, LevelInfo, LevelWarn, LevelError, LevelDebug:
		return l
	case "warning":
		return LevelWarn
	default:
		return LevelLog
	}
}

// Message is one of Console, ElementSelected, ToggleSelector or
// ClearSelection.
type Message interface {
	Type() MessageType
}

// Console is sent by the surface for every console call and uncaught error.
type Console struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Selection describes the element the user picked.
type Selection struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

// ElementSelected is sent by the surface when the user clicks an element
// while picking is armed.
type ElementSelected struct {
	Selection
}

// ToggleSelector is sent by the host to arm or disarm picking.
type ToggleSelector struct {
	Enabled bool `json:"enabled"`
}

// ClearSelection is sent by the host to remove the persistent outline.
type ClearSelection struct{}

func (Console) Type() MessageType         { return TypeConsole }
func (ElementSelected) Type() MessageType { return TypeElementSelected }
func (ToggleSelector) Type() MessageType  { return TypeToggleSelector }
func (ClearSelection) Type() MessageType  { return TypeClearSelection }

// Encode writes m as a flat JSON object with a "type" field.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type(), err)
	}

	typ, _ := json.Marshal(m.Type())

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(typ)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Decode parses a message written by Encode or by the surface bridge.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode sandbox message: %w", err)
	}

	switch head.Type {
	case TypeConsole:
		var m struct {
			Level   string `json:"level"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return Console{Level: NormalizeLevel(m.Level), Message: m.Message}, nil
	case TypeElementSelected:
		var m ElementSelected
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return m, nil
	case TypeToggleSelector:
		var m ToggleSelector
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return m, nil
	case TypeClearSelection:
		return ClearSelection{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, head.Type)
	}
}
