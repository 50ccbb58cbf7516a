package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/colonyops/kiln/internal/core/blueprint"
	"github.com/colonyops/kiln/internal/core/fileop"
)

// ErrPayloadParse is returned when a completed payload cannot be decoded.
var ErrPayloadParse = errors.New("payload parse failure")

const fence = "```"

// Unfence extracts the body of a fenced code block spanning from the first
// fence to the last one, dropping an optional language tag. Text without a
// complete fence pair is returned trimmed.
func Unfence(raw string) string {
	first := strings.Index(raw, fence)
	last := strings.LastIndex(raw, fence)
	if first < 0 || first == last {
		return strings.TrimSpace(raw)
	}

	body := raw[first+len(fence) : last]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if isLangTag(strings.TrimSpace(body[:nl])) {
			body = body[nl+1:]
		}
	} else {
		body = strings.TrimLeft(body, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	return strings.TrimSpace(body)
}

func isLangTag(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '+':
		default:
			return false
		}
	}
	return true
}

// DecodeBlueprint parses a raw blueprint payload.
func DecodeBlueprint(raw string) (*blueprint.Blueprint, error) {
	var bp blueprint.Blueprint
	if err := json.Unmarshal([]byte(Unfence(raw)), &bp); err != nil {
		return nil, fmt.Errorf("%w: blueprint: %w", ErrPayloadParse, err)
	}
	if err := bp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: blueprint: %w", ErrPayloadParse, err)
	}
	bp.Normalize()
	return &bp, nil
}

// DecodeOperations parses a raw operations payload of the form
// {"operations": [...]}. An empty list is valid.
func DecodeOperations(raw string) ([]fileop.Operation, error) {
	var doc struct {
		Operations *[]fileop.Operation `json:"operations"`
	}
	if err := json.Unmarshal([]byte(Unfence(raw)), &doc); err != nil {
		return nil, fmt.Errorf("%w: operations: %w", ErrPayloadParse, err)
	}
	if doc.Operations == nil {
		return nil, fmt.Errorf("%w: operations: missing \"operations\" list", ErrPayloadParse)
	}
	ops := *doc.Operations
	if ops == nil {
		ops = []fileop.Operation{}
	}
	return ops, nil
}

// Payload is a decoded frame tail. Exactly one of Blueprint or Operations is
// set when Kind is not PayloadNone.
type Payload struct {
	Kind       PayloadKind
	Blueprint  *blueprint.Blueprint
	Operations []fileop.Operation
}

// Decode decodes the tail of a completed frame. A frame without a payload
// decodes to an empty Payload.
func Decode(f Frame) (Payload, error) {
	switch f.Kind {
	case PayloadBlueprint:
		bp, err := DecodeBlueprint(f.Tail)
		if err != nil {
			return Payload{}, err
		}
		return Payload{Kind: PayloadBlueprint, Blueprint: bp}, nil
	case PayloadOperations:
		ops, err := DecodeOperations(f.Tail)
		if err != nil {
			return Payload{}, err
		}
		return Payload{Kind: PayloadOperations, Operations: ops}, nil
	default:
		return Payload{}, nil
	}
}
