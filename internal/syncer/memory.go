package syncer

import (
	"fmt"
	"sync"
)

const (
	MemoryType = "Memory"

	// MappingRegister names the hardware register an element is mapped to.
	MappingRegister = "Register"
)

// MemoryBackend simulates hardware with an in-process register image. Each
// element mapped with "Register:<name>" gets its own syncer; the rest of the
// subsystem is pushed as one block under the subsystem path.
type MemoryBackend struct {
	mu        sync.Mutex
	subsystem string
	registers map[string][]byte
	faults    map[string]error
	writes    map[string]int
}

func NewMemoryBackend(cfg PluginConfig) (Backend, error) {
	return &MemoryBackend{
		subsystem: cfg.Subsystem,
		registers: make(map[string][]byte),
		faults:    make(map[string]error),
		writes:    make(map[string]int),
	}, nil
}

func (b *MemoryBackend) Type() string {
	return MemoryType
}

func (b *MemoryBackend) DefaultSyncer(t Target) (Syncer, error) {
	return b.syncerFor(t.Path(), t), nil
}

func (b *MemoryBackend) MapElement(t Target) (Syncer, error) {
	raw, _ := t.Mapping()
	reg, ok, err := MappingValue(raw, MappingRegister)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Path(), err)
	}
	if !ok {
		return nil, nil
	}
	if reg == "" {
		return nil, fmt.Errorf("%w: %s: empty register name", ErrMappingRejected, t.Path())
	}
	return b.syncerFor(reg, t), nil
}

func (b *MemoryBackend) syncerFor(name string, t Target) Syncer {
	return &regionSyncer{
		name:   name,
		offset: t.Offset(),
		size:   t.Size(),
		push:   b.store,
		pull:   b.load,
	}
}

func (b *MemoryBackend) store(name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults[name]; err != nil {
		return err
	}
	b.registers[name] = data
	b.writes[name]++
	return nil
}

func (b *MemoryBackend) load(name string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.registers[name]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

// Register returns a copy of the bytes last pushed to name.
func (b *MemoryBackend) Register(name string) ([]byte, bool) {
	data, ok, _ := b.load(name)
	return data, ok
}

// Poke overwrites a register as hardware would; the next pull-back reads it.
func (b *MemoryBackend) Poke(name string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	b.registers[name] = buf
}

// SetFault makes pushes to name fail with err; nil clears it.
func (b *MemoryBackend) SetFault(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.faults, name)
		return
	}
	b.faults[name] = err
}

// Writes reports how many successful pushes name received.
func (b *MemoryBackend) Writes(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes[name]
}

func (b *MemoryBackend) Close() error {
	return nil
}
