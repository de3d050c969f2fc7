// Package blackboard owns the live binary image of every parameter value.
//
// Ownership boundary:
// - one contiguous byte buffer per tree build
// - region addressed reads and writes (byte offset, bit offset, bit width)
// - bounds checking only; value semantics belong to the type layer
//
// Values are stored little-endian. The buffer is not synchronized: callers
// serialize access through the engine's mutual exclusion boundary.
package blackboard

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const MaxBitWidth = 32

var (
	ErrOutOfBounds   = errors.New("blackboard: region out of bounds")
	ErrInvalidRegion = errors.New("blackboard: invalid region")
)

// Region is the storage of one leaf value.
type Region struct {
	Offset    int
	BitOffset uint
	BitWidth  uint
}

// ByteRegion spans whole bytes starting at offset.
func ByteRegion(offset, size int) Region {
	return Region{Offset: offset, BitWidth: uint(size) * 8}
}

// Bytes is the number of bytes touched by the region.
func (r Region) Bytes() int {
	return int((r.BitOffset + r.BitWidth + 7) / 8)
}

// End is the first byte offset after the region.
func (r Region) End() int {
	return r.Offset + r.Bytes()
}

func (r Region) String() string {
	if r.BitOffset == 0 && r.BitWidth%8 == 0 {
		return fmt.Sprintf("[%d..%d)", r.Offset, r.End())
	}
	return fmt.Sprintf("[%d+%db:%db]", r.Offset, r.BitOffset, r.BitWidth)
}

func (r Region) validate() error {
	if r.Offset < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrInvalidRegion, r.Offset)
	}
	if r.BitWidth == 0 || r.BitOffset+r.BitWidth > MaxBitWidth {
		return fmt.Errorf("%w: bit offset %d width %d", ErrInvalidRegion, r.BitOffset, r.BitWidth)
	}
	return nil
}

// Blackboard is the shared value buffer.
type Blackboard struct {
	data []byte
}

// New allocates a zeroed blackboard of size bytes.
func New(size int) *Blackboard {
	if size < 0 {
		size = 0
	}
	return &Blackboard{data: make([]byte, size)}
}

func (b *Blackboard) Size() int {
	return len(b.data)
}

// Extend grows the buffer by n zeroed bytes and returns the offset of the new
// space. Only tree construction calls it; assigned offsets never move.
func (b *Blackboard) Extend(n int) int {
	offset := len(b.data)
	if n > 0 {
		b.data = append(b.data, make([]byte, n)...)
	}
	return offset
}

func (b *Blackboard) check(offset, n int) error {
	if offset < 0 || n < 0 || offset+n > len(b.data) {
		return fmt.Errorf("%w: [%d..%d) of %d bytes", ErrOutOfBounds, offset, offset+n, len(b.data))
	}
	return nil
}

// Read returns the raw bits of r, right aligned.
func (b *Blackboard) Read(r Region) (uint32, error) {
	if err := r.validate(); err != nil {
		return 0, err
	}
	n := r.Bytes()
	if err := b.check(r.Offset, n); err != nil {
		return 0, err
	}
	var word [4]byte
	copy(word[:], b.data[r.Offset:r.Offset+n])
	v := binary.LittleEndian.Uint32(word[:])
	return (v >> r.BitOffset) & mask(r.BitWidth), nil
}

// Write stores the low BitWidth bits of v into r. Bits outside the region are
// preserved; bits of v above the width are an error.
func (b *Blackboard) Write(r Region, v uint32) error {
	if err := r.validate(); err != nil {
		return err
	}
	m := mask(r.BitWidth)
	if v&^m != 0 {
		return fmt.Errorf("%w: value %#x wider than %d bits", ErrInvalidRegion, v, r.BitWidth)
	}
	n := r.Bytes()
	if err := b.check(r.Offset, n); err != nil {
		return err
	}
	var word [4]byte
	copy(word[:], b.data[r.Offset:r.Offset+n])
	cur := binary.LittleEndian.Uint32(word[:])
	cur = (cur &^ (m << r.BitOffset)) | (v << r.BitOffset)
	binary.LittleEndian.PutUint32(word[:], cur)
	copy(b.data[r.Offset:r.Offset+n], word[:n])
	return nil
}

// ReadBytes copies n bytes at offset.
func (b *Blackboard) ReadBytes(offset, n int) ([]byte, error) {
	if err := b.check(offset, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b.data[offset:offset+n])
	return out, nil
}

// WriteBytes copies src to offset.
func (b *Blackboard) WriteBytes(offset int, src []byte) error {
	if err := b.check(offset, len(src)); err != nil {
		return err
	}
	copy(b.data[offset:], src)
	return nil
}

func mask(width uint) uint32 {
	if width >= 32 {
		return 0xFFFFFFFF
	}
	return (uint32(1) << width) - 1
}
