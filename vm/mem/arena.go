// Package mem implements the bump allocator described in spec §4.2: a
// single arena of 32-bit words from which every heap object (list, string,
// byte array) is carved. Objects are never individually freed; Clear resets
// the whole arena at once.
package mem

import (
	"errors"

	"blockvm/vm/value"
)

// HeaderWords is the number of words every object's header occupies.
const HeaderWords = 1

// GlobalVarCount is the size of the fixed global-variable table allocated
// at Init time (spec §4.2 "Startup").
const GlobalVarCount = 25

// ErrInsufficientMemory is returned by Alloc when the arena is exhausted.
// Primitives observe this and must propagate it via their own fail path
// (spec §4.2 "Failure mode"); the allocator itself never panics on it.
var ErrInsufficientMemory = errors.New("insufficientMemoryError")

// header packs a class tag into the low byte and the data word count into
// the remaining 24 bits. This is a design choice left unspecified by
// spec.md beyond "encodes a class/type identifier and the number of
// following data words" — 24 bits of size comfortably covers every target
// arena size in spec's tens-of-kilobytes range.
type header uint32

func packHeader(class value.Class, wordCount uint32) header {
	return header(uint32(class) | wordCount<<8)
}

func (h header) class() value.Class    { return value.Class(h & 0xFF) }
func (h header) wordCount() uint32     { return uint32(h) >> 8 }
func (h *header) setWordCount(n uint32) {
	*h = packHeader(h.class(), n)
}

// Object is a live handle into the arena: the word address of its header,
// plus a borrowed slice over its data words. The slice aliases the arena's
// backing array, so writes through it mutate the object in place. Object
// values are only valid until the next Clear, and must be re-fetched via
// Arena.At after any call that may Resize or Alloc (spec §4.4 GC-safety
// discipline; see the design note on arena-relative addressing in §9).
type Object struct {
	Addr  uint32 // word address of the header, i.e. value.Addr(ref)/4
	Class value.Class
	Data  []int32
}

// Arena is the bump-allocated heap. Addressing is in 32-bit words
// internally; Value heap references are byte addresses (word*4) so that
// they can never collide with the value.Nil/False/True singletons, which
// live at byte addresses 0/4/8.
type Arena struct {
	words []int32
	free  uint32 // word index of the next free slot
	start uint32 // word index reserved past the singleton addresses
	end   uint32 // one past the last usable word index

	Globals [GlobalVarCount]value.Value
}

// Init allocates a fresh arena of wordCount words. If the arena would begin
// at or before the fixed singleton addresses (0, 4, 8 => words 0-2), it is
// offset by 3 words so no heap object can ever be placed there, per spec
// §4.2 "Startup".
func Init(wordCount uint32) *Arena {
	a := &Arena{words: make([]int32, wordCount)}
	a.start = 0
	if a.start*4 <= 8 {
		a.start = 3
	}
	a.free = a.start
	a.end = wordCount
	return a
}

// Clear resets the free pointer to the start of the heap. It does not zero
// existing words; callers are responsible for dropping all outstanding
// Object references before calling Clear (spec §3 "Lifecycle", §5 "Memory
// reset discipline").
func (a *Arena) Clear() {
	a.free = a.start
}

// Cap reports the arena's total word capacity, including the reserved
// prefix before start.
func (a *Arena) Cap() uint32 {
	return uint32(len(a.words))
}

// Alloc carves out a new object of wordCount data words, all initialized to
// fill, and stamps its header. Returns ErrInsufficientMemory without
// mutating free if the arena cannot satisfy the request.
func (a *Arena) Alloc(class value.Class, wordCount uint32, fill int32) (Object, error) {
	need := HeaderWords + wordCount
	if a.free+need > a.end {
		return Object{}, ErrInsufficientMemory
	}

	addr := a.free
	a.free += need

	for i := uint32(0); i < wordCount; i++ {
		a.words[addr+HeaderWords+i] = fill
	}
	a.words[addr] = int32(packHeader(class, wordCount))

	return a.At(addr), nil
}

// At re-derives an Object handle from a word address. Call this after any
// Alloc/Resize that may have moved the backing array's growth point, rather
// than holding onto a stale Data slice.
func (a *Arena) At(addr uint32) Object {
	h := header(a.words[addr])
	wc := h.wordCount()
	return Object{
		Addr:  addr,
		Class: h.class(),
		Data:  a.words[addr+HeaderWords : addr+HeaderWords+wc],
	}
}

// Ref converts a word address into the Value heap reference pointing at it.
func Ref(addr uint32) value.Value {
	return value.FromAddr(addr * 4)
}

// Deref converts a Value heap reference back into a word address. Callers
// must have checked value.IsHeapRef first.
func Deref(v value.Value) uint32 {
	return value.Addr(v) / 4
}

// ClassOf implements spec §4.1's classOf: immediates report the Integer
// pseudo-class, singletons report Boolean/nil, and heap references are
// decoded from their header.
func (a *Arena) ClassOf(v value.Value) value.Class {
	switch {
	case value.IsInt(v):
		return value.ClassInteger
	case v == value.Nil:
		return value.ClassNil
	case value.IsBoolean(v):
		return value.ClassBoolean
	default:
		return a.At(Deref(v)).Class
	}
}

// Resize grows or shrinks the object at addr to hold newWordCount data
// words. Shrinking always happens in place. When addr is the most recently
// allocated object (i.e. its end coincides with free) and there is room, it
// also grows in place. Otherwise a fresh object is allocated and the
// header + overlapping data are copied. Per spec §4.2, callers MUST re-fetch
// every reference they hold via At after calling Resize, since the old
// Object.Data slice may now describe unrelated or truncated memory.
func (a *Arena) Resize(addr uint32, newWordCount uint32) (Object, error) {
	old := a.At(addr)
	oldEnd := addr + HeaderWords + uint32(len(old.Data))

	if oldEnd != a.free && newWordCount <= uint32(len(old.Data)) {
		a.words[addr] = int32(packHeader(old.Class, newWordCount))
		return a.At(addr), nil
	}

	if oldEnd == a.free {
		need := int64(newWordCount) - int64(len(old.Data))
		if need > 0 && a.free+uint32(need) > a.end {
			return Object{}, ErrInsufficientMemory
		}

		if need > 0 {
			for i := uint32(len(old.Data)); i < newWordCount; i++ {
				a.words[addr+HeaderWords+i] = 0
			}
		}
		a.free = uint32(int64(a.free) + need)
		a.words[addr] = int32(packHeader(old.Class, newWordCount))
		return a.At(addr), nil
	}

	fresh, err := a.Alloc(old.Class, newWordCount, 0)
	if err != nil {
		return Object{}, err
	}
	// a.Alloc may have been satisfied out of the same backing array that
	// `old` aliases; re-fetch old by address rather than reuse the stale
	// slice captured before the allocation.
	old = a.At(addr)
	n := copy(fresh.Data, old.Data)
	_ = n
	return fresh, nil
}
