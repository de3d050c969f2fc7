package element

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPathNotFound   = errors.New("element: path not found")
	ErrInvalidPath    = errors.New("element: invalid path")
	ErrPathIncomplete = errors.New("element: path not complete")
)

// PathNotFoundError reports the first segment of Path that did not resolve.
type PathNotFoundError struct {
	Path    string
	Segment string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("path not found: %s (no element %q)", e.Path, e.Segment)
}

func (e *PathNotFoundError) Unwrap() error {
	return ErrPathNotFound
}

// SplitPath breaks a slash separated path into its segments. A single leading
// slash is accepted; empty segments are not.
func SplitPath(path string) ([]string, error) {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "/")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return parts, nil
}

// FindDescendant resolves path below root by matching child names at each
// level. An empty path resolves to root itself.
func FindDescendant(root Node, path string) (Node, error) {
	if root == nil {
		return nil, ErrNilNode
	}
	parts, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	return descend(root, parts, path)
}

func descend(from Node, parts []string, path string) (Node, error) {
	cur := from
	for _, seg := range parts {
		next, ok := cur.FindChild(seg)
		if !ok {
			return nil, &PathNotFoundError{Path: path, Segment: seg}
		}
		cur = next
	}
	return cur, nil
}

// Locator resolves paths that start with the name of SubRoot.
type Locator struct {
	SubRoot Node
	Strict  bool
}

// Locate resolves "SubRoot/child/..." to the node below SubRoot. A path that
// stops at the sub-root (or is empty) is an error in strict mode and resolves
// to nil otherwise.
func (l Locator) Locate(path string) (Node, error) {
	if l.SubRoot == nil {
		return nil, ErrNilNode
	}
	parts, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		if l.Strict {
			return nil, fmt.Errorf("%w: %q", ErrPathIncomplete, path)
		}
		return nil, nil
	}
	if parts[0] != l.SubRoot.Name() {
		return nil, &PathNotFoundError{Path: path, Segment: parts[0]}
	}
	if len(parts) == 1 {
		if l.Strict {
			return nil, fmt.Errorf("%w: %q", ErrPathIncomplete, path)
		}
		return nil, nil
	}
	return descend(l.SubRoot, parts[1:], path)
}

// Walk visits root and its descendants depth first, parents before children.
// Returning false from fn skips the node's children.
func Walk(root Node, fn func(path string, n Node) bool) {
	if root == nil {
		return
	}
	walk("/"+root.Name(), root, fn)
}

func walk(path string, n Node, fn func(string, Node) bool) {
	if !fn(path, n) {
		return
	}
	for i := 0; i < n.NbChildren(); i++ {
		child := n.Child(i)
		walk(path+"/"+child.Name(), child, fn)
	}
}

// Trail returns the nodes from root down to the node addressed by path,
// root included. The path is relative to root.
func Trail(root Node, path string) ([]Node, error) {
	parts, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(parts)+1)
	out = append(out, root)
	cur := root
	for _, seg := range parts {
		next, ok := cur.FindChild(seg)
		if !ok {
			return nil, &PathNotFoundError{Path: path, Segment: seg}
		}
		out = append(out, next)
		cur = next
	}
	return out, nil
}

// Path returns the slash path of target, starting with root's name. The tree
// has no parent links, so the search runs down from root.
func Path(root, target Node) (string, bool) {
	var found string
	Walk(root, func(path string, n Node) bool {
		if found != "" {
			return false
		}
		if n == target {
			found = path
			return false
		}
		return true
	})
	return found, found != ""
}
