package engine

import (
	"encoding/hex"
	"fmt"
	"strings"
)

func (e *Engine) ListElements(path string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.structure.ListElements(path)
}

// ListParameters returns the parameter paths below path.
func (e *Engine) ListParameters(path string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return applier{e: e}.Expand(path)
}

func (e *Engine) DumpElement(path string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.structure.Dump(path)
}

// ElementSize is the blackboard footprint of path in bytes.
func (e *Engine) ElementSize(path string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, err := e.structure.Resolve(path)
	if err != nil {
		return 0, err
	}
	return inst.Size(), nil
}

// Properties renders the property sheet of path as "Key: Value" lines.
func (e *Engine) Properties(path string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	props, err := e.structure.Properties(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(props))
	for _, p := range props {
		out = append(out, fmt.Sprintf("%s: %s", p.Key, p.Value))
	}
	return out, nil
}

// ElementBytes is the hex dump of path's blackboard region, one byte per
// pair separated by spaces.
func (e *Engine) ElementBytes(path string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.structure.Bytes(path)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(b))
	for i := range b {
		parts[i] = hex.EncodeToString(b[i : i+1])
	}
	return strings.Join(parts, " "), nil
}

func (e *Engine) GetParameter(path string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.structure.Get(path)
}

// SetParameter writes a value in tuning mode and, with auto-sync on, pushes
// it to the owning backends.
func (e *Engine) SetParameter(path, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.tuning {
		return ErrTuningRequired
	}
	set, err := e.structure.Set(path, value)
	if err != nil {
		return err
	}
	e.logger.Debug().Str("path", path).Str("value", value).Msg("parameter set")
	if !e.autoSync {
		return nil
	}
	return e.runSync("set", set, false)
}
