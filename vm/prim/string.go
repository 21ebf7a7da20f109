package prim

import (
	"strconv"
	"strings"

	"blockvm/vm/mem"
	"blockvm/vm/value"
	"blockvm/vm/wire"
)

// NewString allocates a NUL-terminated UTF-8 string object (spec §3, §4.4).
func NewString(arena *mem.Arena, s string) (value.Value, error) {
	raw := append([]byte(s), 0) // + NUL terminator
	wc := wordsForBytes(len(raw))
	obj, err := arena.Alloc(value.ClassString, wc, 0)
	if err != nil {
		return value.Nil, fail(wire.InsufficientMemory)
	}
	packBytesIntoWords(obj.Data, raw)
	return mem.Ref(obj.Addr), nil
}

// stringByteLen scans the last data word for the NUL terminator, per spec
// §4.4 ("the byte length is derived by scanning the last data word...").
func stringByteLen(data []int32) int {
	if len(data) == 0 {
		return 0
	}
	all := wordsToBytes(data)
	lastWordStart := (len(data) - 1) * 4
	for i := lastWordStart; i < len(all); i++ {
		if all[i] == 0 {
			return i
		}
	}
	// No NUL found in the last word is a malformed string (invariant
	// violation); fall back to the full buffer rather than panic.
	return len(all)
}

// StringBytes returns the logical (NUL-excluded) byte content of a string
// object, accepting both ClassString and ClassStaticString (see §4.5/§9 on
// statically-allocated strings decoding identically to heap ones).
func StringBytes(obj mem.Object) []byte {
	all := wordsToBytes(obj.Data)
	return all[:stringByteLen(obj.Data)]
}

func isStringClass(c value.Class) bool {
	return c == value.ClassString || c == value.ClassStaticString
}

func newStringSet() *Set {
	s := NewSet("string")

	s.Add("length", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		obj := arena.At(mem.Deref(args[0]))
		if !isStringClass(obj.Class) {
			return value.Nil, fail(wire.NeedsStringError)
		}
		return value.Int2Obj(int32(utf8Length(StringBytes(obj)))), nil
	})

	s.Add("at", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		idxArg, strArg := args[0], args[1]
		obj := arena.At(mem.Deref(strArg))
		if !isStringClass(obj.Class) {
			return value.Nil, fail(wire.NeedsStringError)
		}
		buf := StringBytes(obj)

		idx, err := resolveStringIndex(arena, idxArg, utf8Length(buf))
		if err != nil {
			return value.Nil, err
		}

		start, end, ok := utf8ByteOffsetForCodepoint(buf, idx)
		if !ok {
			return value.Nil, fail(wire.IndexOutOfRangeError)
		}
		return NewString(arena, string(buf[start:end]))
	})

	s.Add("copyFromTo", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		obj := arena.At(mem.Deref(args[0]))
		if !isStringClass(obj.Class) {
			return value.Nil, fail(wire.NeedsStringError)
		}
		buf := StringBytes(obj)
		n := utf8Length(buf)

		if !value.IsInt(args[1]) {
			return value.Nil, fail(wire.NeedsIntegerError)
		}
		start := int(value.Obj2Int(args[1]))

		end := n
		if argCount >= 3 {
			if !value.IsInt(args[2]) {
				return value.Nil, fail(wire.NeedsIntegerError)
			}
			end = int(value.Obj2Int(args[2]))
		}
		if end > n {
			end = n
		}
		if start < 1 || start > end+1 {
			return NewString(arena, "")
		}

		startByte, _, ok := utf8ByteOffsetForCodepoint(buf, start)
		if !ok {
			return NewString(arena, "")
		}
		_, endByte, ok := utf8ByteOffsetForCodepoint(buf, end)
		if !ok {
			return NewString(arena, "")
		}
		return NewString(arena, string(buf[startByte:endByte]))
	})

	s.Add("findInString", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		needleObj := arena.At(mem.Deref(args[0]))
		haystackObj := arena.At(mem.Deref(args[1]))
		if !isStringClass(needleObj.Class) || !isStringClass(haystackObj.Class) {
			return value.Nil, fail(wire.NeedsStringError)
		}
		needle := string(StringBytes(needleObj))
		haystack := StringBytes(haystackObj)

		startByte := 0
		if argCount >= 3 {
			if !value.IsInt(args[2]) {
				return value.Nil, fail(wire.NeedsIntegerError)
			}
			startIdx := int(value.Obj2Int(args[2]))
			if startIdx > utf8Length(haystack) {
				return value.Int2Obj(-1), nil
			}
			if startIdx >= 1 {
				off, _, ok := utf8ByteOffsetForCodepoint(haystack, startIdx)
				if ok {
					startByte = off
				}
			}
		}

		if needle == "" {
			return value.Int2Obj(1), nil
		}

		idx := strings.Index(string(haystack[startByte:]), needle)
		if idx < 0 {
			return value.Int2Obj(-1), nil
		}
		return value.Int2Obj(int32(startByte + idx + 1)), nil
	})

	s.Add("join", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		return joinPrimitive(arena, args)
	})

	s.Add("joinStrings", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		listObj := arena.At(mem.Deref(args[0]))
		if listObj.Class != value.ClassList {
			return value.Nil, fail(wire.NeedsArrayError)
		}
		sep := ""
		if argCount >= 2 {
			sepObj := arena.At(mem.Deref(args[1]))
			if !isStringClass(sepObj.Class) {
				return value.Nil, fail(wire.NeedsStringError)
			}
			sep = string(StringBytes(sepObj))
		}

		count := int(value.Obj2Int(value.Value(listObj.Data[0])))
		parts := make([]string, count)
		for i := 0; i < count; i++ {
			// Re-fetch in case NewString allocations relocate the list;
			// GC-safety discipline (spec §4.4).
			listObj = arena.At(mem.Deref(args[0]))
			parts[i] = formatValueAsText(arena, value.Value(listObj.Data[1+i]))
		}
		return NewString(arena, strings.Join(parts, sep))
	})

	return s
}

// resolveStringIndex handles the "last"/"random" sentinel string indices
// shared between list.at and string.at (spec §4.4).
func resolveStringIndex(arena *mem.Arena, idxArg value.Value, length int) (int, error) {
	if value.IsInt(idxArg) {
		idx := int(value.Obj2Int(idxArg))
		if idx < 1 || idx > length {
			return 0, fail(wire.IndexOutOfRangeError)
		}
		return idx, nil
	}

	obj := arena.At(mem.Deref(idxArg))
	if !isStringClass(obj.Class) {
		return 0, fail(wire.NeedsIntegerIndexError)
	}
	switch string(StringBytes(obj)) {
	case "last":
		if length == 0 {
			return 0, fail(wire.IndexOutOfRangeError)
		}
		return length, nil
	case "random":
		if length == 0 {
			return 0, fail(wire.IndexOutOfRangeError)
		}
		return 1 + randIntn(length), nil
	default:
		return 0, fail(wire.NeedsIntegerIndexError)
	}
}

// formatValueAsText renders int/bool/string values the way join/joinStrings
// need for their canonical text forms (spec §4.4).
func formatValueAsText(arena *mem.Arena, v value.Value) string {
	switch {
	case value.IsInt(v):
		return strconv.FormatInt(int64(value.Obj2Int(v)), 10)
	case v == value.True:
		return "true"
	case v == value.False:
		return "false"
	case v == value.Nil:
		return ""
	default:
		obj := arena.At(mem.Deref(v))
		if isStringClass(obj.Class) {
			return string(StringBytes(obj))
		}
		return ""
	}
}

func joinPrimitive(arena *mem.Arena, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return NewString(arena, "")
	}

	first := arena.At(mem.Deref(args[0]))
	switch {
	case first.Class == value.ClassList:
		totalLen := 0
		lists := make([]mem.Object, len(args))
		for i, a := range args {
			obj := arena.At(mem.Deref(a))
			if obj.Class != value.ClassList {
				return value.Nil, fail(wire.JoinArgsNotSameType)
			}
			lists[i] = obj
			totalLen += int(value.Obj2Int(value.Value(obj.Data[0])))
		}

		out, err := arena.Alloc(value.ClassList, uint32(totalLen)+1, 0)
		if err != nil {
			return value.Nil, fail(wire.InsufficientMemory)
		}
		out.Data[0] = int32(value.Int2Obj(int32(totalLen)))
		pos := 1
		for i := range args {
			lists[i] = arena.At(mem.Deref(args[i])) // re-fetch after Alloc
			n := int(value.Obj2Int(value.Value(lists[i].Data[0])))
			copy(out.Data[pos:pos+n], lists[i].Data[1:1+n])
			pos += n
		}
		return mem.Ref(out.Addr), nil

	case isStringClass(first.Class):
		var sb strings.Builder
		for _, a := range args {
			if value.IsInt(a) || a == value.True || a == value.False {
				sb.WriteString(formatValueAsText(arena, a))
				continue
			}
			obj := arena.At(mem.Deref(a))
			if !isStringClass(obj.Class) {
				return value.Nil, fail(wire.NeedsStringError)
			}
			sb.Write(StringBytes(obj))
		}
		return NewString(arena, sb.String())

	default:
		return value.Nil, fail(wire.NeedsIndexable)
	}
}
