// Package description owns the parsed structure boundary.
//
// Ownership boundary:
// - read-only view of a parsed element description (Node)
// - in-memory description tree used for both input and output (Element)
// - typed attribute accessors with path-aware errors
// - YAML serialization of description trees
//
// Markup parsing and schema validation live outside this package; any
// decoder that produces a Node can feed the engine.
package description

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMissingAttr = errors.New("description: missing attribute")
	ErrBadAttr     = errors.New("description: malformed attribute")
)

// Node is one parsed element: a tag, attributes and ordered children.
type Node interface {
	Tag() string
	Path() string
	Attr(name string) (string, bool)
	HasAttr(name string) bool
	Children() []Node
}

// AttrError names the element path and attribute that failed to read.
type AttrError struct {
	Path string
	Attr string
	Err  error
}

func (e *AttrError) Error() string {
	return fmt.Sprintf("%s: attribute %q: %v", e.Path, e.Attr, e.Err)
}

func (e *AttrError) Unwrap() error {
	return e.Err
}

// String returns a required attribute.
func String(n Node, name string) (string, error) {
	v, ok := n.Attr(name)
	if !ok {
		return "", &AttrError{Path: n.Path(), Attr: name, Err: ErrMissingAttr}
	}
	return v, nil
}

// StringOr returns the attribute or def when absent.
func StringOr(n Node, name, def string) string {
	if v, ok := n.Attr(name); ok {
		return v
	}
	return def
}

// Uint reads an unsigned integer attribute (decimal or 0x hex).
func Uint(n Node, name string) (uint64, error) {
	raw, err := String(n, name)
	if err != nil {
		return 0, err
	}
	v, err := parseUintText(strings.TrimSpace(raw))
	if err != nil {
		return 0, &AttrError{Path: n.Path(), Attr: name, Err: fmt.Errorf("%w: %v", ErrBadAttr, err)}
	}
	return v, nil
}

// UintOr reads an optional unsigned attribute.
func UintOr(n Node, name string, def uint64) (uint64, error) {
	if !n.HasAttr(name) {
		return def, nil
	}
	return Uint(n, name)
}

// parseUintText accepts decimal or 0x hex. A leading zero is decimal.
func parseUintText(s string) (uint64, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

func parseIntText(s string) (int64, error) {
	body := s
	neg := false
	if strings.HasPrefix(body, "-") || strings.HasPrefix(body, "+") {
		neg = body[0] == '-'
		body = body[1:]
	}
	if len(body) > 2 && (body[:2] == "0x" || body[:2] == "0X") {
		u, err := strconv.ParseUint(body[2:], 16, 64)
		if err != nil {
			return 0, err
		}
		switch {
		case neg && u <= 1<<63:
			return -int64(u), nil
		case !neg && u <= math.MaxInt64:
			return int64(u), nil
		}
		return 0, fmt.Errorf("parsing %q: %w", s, strconv.ErrRange)
	}
	return strconv.ParseInt(s, 10, 64)
}

// Int reads a signed integer attribute (decimal or 0x hex).
func Int(n Node, name string) (int64, error) {
	raw, err := String(n, name)
	if err != nil {
		return 0, err
	}
	v, err := parseIntText(strings.TrimSpace(raw))
	if err != nil {
		return 0, &AttrError{Path: n.Path(), Attr: name, Err: fmt.Errorf("%w: %v", ErrBadAttr, err)}
	}
	return v, nil
}

// IntOr reads an optional signed attribute.
func IntOr(n Node, name string, def int64) (int64, error) {
	if !n.HasAttr(name) {
		return def, nil
	}
	return Int(n, name)
}

// Float reads a floating point attribute.
func Float(n Node, name string) (float64, error) {
	raw, err := String(n, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &AttrError{Path: n.Path(), Attr: name, Err: fmt.Errorf("%w: %v", ErrBadAttr, err)}
	}
	return v, nil
}

// FloatOr reads an optional floating point attribute.
func FloatOr(n Node, name string, def float64) (float64, error) {
	if !n.HasAttr(name) {
		return def, nil
	}
	return Float(n, name)
}

// Bool reads a boolean attribute ("true"/"false"/"1"/"0").
func Bool(n Node, name string) (bool, error) {
	raw, err := String(n, name)
	if err != nil {
		return false, err
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, &AttrError{Path: n.Path(), Attr: name, Err: fmt.Errorf("%w: %v", ErrBadAttr, err)}
	}
	return v, nil
}

// BoolOr reads an optional boolean attribute.
func BoolOr(n Node, name string, def bool) (bool, error) {
	if !n.HasAttr(name) {
		return def, nil
	}
	return Bool(n, name)
}

// FirstChild returns the first direct child with the given tag.
func FirstChild(n Node, tag string) (Node, bool) {
	for _, c := range n.Children() {
		if c.Tag() == tag {
			return c, true
		}
	}
	return nil, false
}
