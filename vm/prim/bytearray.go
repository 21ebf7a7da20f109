package prim

import (
	"blockvm/vm/mem"
	"blockvm/vm/value"
	"blockvm/vm/wire"
)

// byteArrayLength is always 4*wordCount: byte arrays carry no sub-word
// length field (spec §3 "ByteArray"). addLast/delete below therefore grow
// or shrink by a whole word at a time, rounding the logical length to the
// next/previous multiple of 4 — the only representation the data model
// allows without a count word.
func byteArrayLength(obj mem.Object) int {
	return len(obj.Data) * 4
}

// NewByteArray allocates a zeroed byte array of nBytes logical length,
// rounded up to a whole word (spec §3).
func NewByteArray(arena *mem.Arena, nBytes int) (value.Value, error) {
	obj, err := arena.Alloc(value.ClassByteArray, wordsForBytes(nBytes), 0)
	if err != nil {
		return value.Nil, fail(wire.InsufficientMemory)
	}
	return mem.Ref(obj.Addr), nil
}

func requireByteArray(arena *mem.Arena, v value.Value) (mem.Object, error) {
	if !value.IsHeapRef(v) {
		return mem.Object{}, fail(wire.NeedsArrayError)
	}
	obj := arena.At(mem.Deref(v))
	if obj.Class != value.ClassByteArray {
		return mem.Object{}, fail(wire.NeedsArrayError)
	}
	return obj, nil
}

func getByteArrayByte(obj mem.Object, idx1Based int) byte {
	return wordsToBytes(obj.Data)[idx1Based-1]
}

func setByteArrayByte(obj mem.Object, idx1Based int, b byte) {
	wordIdx := (idx1Based - 1) / 4
	shift := uint(((idx1Based - 1) % 4) * 8)
	u := uint32(obj.Data[wordIdx])
	u = (u &^ (0xFF << shift)) | uint32(b)<<shift
	obj.Data[wordIdx] = int32(u)
}

func newByteArraySet() *Set {
	s := NewSet("byteArray")

	s.Add("length", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		obj, err := requireByteArray(arena, args[0])
		if err != nil {
			return value.Nil, err
		}
		return value.Int2Obj(int32(byteArrayLength(obj))), nil
	})

	s.Add("at", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		obj, err := requireByteArray(arena, args[1])
		if err != nil {
			return value.Nil, err
		}
		idx, err := resolveStringIndex(arena, args[0], byteArrayLength(obj))
		if err != nil {
			return value.Nil, err
		}
		return value.Int2Obj(int32(getByteArrayByte(obj, idx))), nil
	})

	s.Add("atPut", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		obj, err := requireByteArray(arena, args[1])
		if err != nil {
			return value.Nil, err
		}
		b, err := requireByteValue(args[2])
		if err != nil {
			return value.Nil, err
		}

		if isSentinelString(arena, args[0], "all") {
			for i := 1; i <= byteArrayLength(obj); i++ {
				setByteArrayByte(obj, i, b)
			}
			return value.False, nil
		}

		idx, err := resolveStringIndex(arena, args[0], byteArrayLength(obj))
		if err != nil {
			return value.Nil, err
		}
		setByteArrayByte(obj, idx, b)
		return value.False, nil
	})

	s.Add("addLast", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		b, err := requireByteValue(args[0])
		if err != nil {
			return value.Nil, err
		}
		obj, err := requireByteArray(arena, args[1])
		if err != nil {
			return value.Nil, err
		}

		oldLen := byteArrayLength(obj)
		resized, rerr := arena.Resize(obj.Addr, uint32(len(obj.Data)+1))
		if rerr != nil {
			return value.Nil, fail(wire.InsufficientMemory)
		}
		setByteArrayByte(resized, oldLen+1, b)
		return value.False, nil
	})

	s.Add("delete", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		obj, err := requireByteArray(arena, args[1])
		if err != nil {
			return value.Nil, err
		}

		if isSentinelString(arena, args[0], "all") {
			_, rerr := arena.Resize(obj.Addr, 0)
			if rerr != nil {
				return value.Nil, fail(wire.InsufficientMemory)
			}
			return value.False, nil
		}

		length := byteArrayLength(obj)
		idx := length
		if !isSentinelString(arena, args[0], "last") {
			idx, err = resolveStringIndex(arena, args[0], length)
			if err != nil {
				return value.Nil, err
			}
		}

		for i := idx; i < length; i++ {
			setByteArrayByte(obj, i, getByteArrayByte(obj, i+1))
		}
		_, rerr := arena.Resize(obj.Addr, uint32(len(obj.Data)-1))
		if rerr != nil {
			return value.Nil, fail(wire.InsufficientMemory)
		}
		return value.False, nil
	})

	s.Add("copyFromTo", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		obj, err := requireByteArray(arena, args[0])
		if err != nil {
			return value.Nil, err
		}
		if !value.IsInt(args[1]) {
			return value.Nil, fail(wire.NeedsIntegerError)
		}
		start := int(value.Obj2Int(args[1]))

		length := byteArrayLength(obj)
		end := length
		if argCount >= 3 {
			if !value.IsInt(args[2]) {
				return value.Nil, fail(wire.NeedsIntegerError)
			}
			end = int(value.Obj2Int(args[2]))
		}
		if end > length {
			end = length
		}
		n := end - start + 1
		if n < 0 {
			n = 0
		}

		out, aerr := NewByteArray(arena, n)
		if aerr != nil {
			return value.Nil, aerr
		}
		outObj := arena.At(mem.Deref(out))
		obj, _ = requireByteArray(arena, args[0]) // re-fetch after Alloc
		for i := 0; i < n; i++ {
			setByteArrayByte(outObj, i+1, getByteArrayByte(obj, start+i))
		}
		return out, nil
	})

	return s
}

// ByteArrayBytes returns the raw packed bytes of a byte-array object, for
// callers outside this package that need the flat view (the wire protocol's
// bytearray typed-value encoding, SPEC_FULL §4.6).
func ByteArrayBytes(obj mem.Object) []byte {
	return wordsToBytes(obj.Data)
}

// NewByteArrayFromBytes allocates a byte array sized to hold b and copies
// it in, the mirror of ByteArrayBytes for decoding a wire bytearray body
// back into the arena.
func NewByteArrayFromBytes(arena *mem.Arena, b []byte) (value.Value, error) {
	v, err := NewByteArray(arena, len(b))
	if err != nil {
		return value.Nil, err
	}
	obj := arena.At(mem.Deref(v))
	packBytesIntoWords(obj.Data, b)
	return v, nil
}

func requireByteValue(v value.Value) (byte, error) {
	if !value.IsInt(v) {
		return 0, fail(wire.ByteArrayStoreError)
	}
	n := value.Obj2Int(v)
	if n < 0 || n > 255 {
		return 0, fail(wire.ByteArrayStoreError)
	}
	return byte(n), nil
}
