// Package value defines the tagged-value encoding shared by the object
// allocator, the data primitives, and the wire protocol's typed values.
//
// A Value is a native 32-bit word. The low bit distinguishes immediates
// (small integers and the three fixed singletons) from heap references:
//
//	bit0 == 1  -> small integer, payload is value>>1 (arithmetic shift)
//	bit0 == 0  -> either a fixed singleton (0, 4, 8) or a heap byte address
package value

import "fmt"

// Value is the one machine unit every primitive and wire message exchanges.
type Value int32

// Fixed singleton addresses. No heap object may ever occupy these.
const (
	Nil   Value = 0
	False Value = 4
	True  Value = 8
)

// FirstHeapAddr is the lowest byte address the allocator may hand out.
// mem.Init enforces this by offsetting the arena if needed.
const FirstHeapAddr = 12

// IntMin and IntMax bound the range Obj2Int(Int2Obj(n)) == n is guaranteed
// for; see spec §4.1 on big-immediate encoding for values outside this range.
const (
	IntMin = -(1 << 30)
	IntMax = (1 << 30) - 1
)

// IsInt reports whether v is a small-integer immediate rather than a
// singleton or heap reference.
func IsInt(v Value) bool {
	return v&1 == 1
}

// IsBoolean reports whether v is exactly the True or False singleton.
func IsBoolean(v Value) bool {
	return v == True || v == False
}

// IsNil reports whether v is the Nil singleton.
func IsNil(v Value) bool {
	return v == Nil
}

// IsHeapRef reports whether v is neither a small integer nor a singleton,
// i.e. it is a byte address pointing at an object header.
func IsHeapRef(v Value) bool {
	return !IsInt(v) && !IsBoolean(v) && v != Nil
}

// Obj2Int decodes a small-integer immediate by an arithmetic shift right.
// Behavior is undefined (per spec) if v is not IsInt.
func Obj2Int(v Value) int32 {
	return int32(v) >> 1
}

// Int2Obj encodes n as a small-integer immediate. Callers are responsible
// for staying within [IntMin, IntMax]; values outside that range still
// round-trip at the bit level but lose the top bit under Obj2Int.
func Int2Obj(n int32) Value {
	return Value(n<<1) | 1
}

// Bool2Obj maps a Go bool onto the True/False singletons.
func Bool2Obj(b bool) Value {
	if b {
		return True
	}
	return False
}

// Obj2Bool decodes the True/False singletons. Panics if v is not a boolean;
// callers must check IsBoolean first (primitives instead call fail with
// needsBooleanError).
func Obj2Bool(v Value) bool {
	switch v {
	case True:
		return true
	case False:
		return false
	default:
		panic(fmt.Sprintf("value: %d is not a boolean", v))
	}
}

// Addr returns the heap byte address a reference points at. Callers must
// have already checked IsHeapRef.
func Addr(v Value) uint32 {
	return uint32(v)
}

// FromAddr builds a heap reference pointing at the given byte address.
func FromAddr(addr uint32) Value {
	return Value(addr)
}

func (v Value) String() string {
	switch {
	case v == Nil:
		return "nil"
	case v == True:
		return "true"
	case v == False:
		return "false"
	case IsInt(v):
		return fmt.Sprintf("%d", Obj2Int(v))
	default:
		return fmt.Sprintf("obj@%d", Addr(v))
	}
}
