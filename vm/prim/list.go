package prim

import (
	"blockvm/vm/mem"
	"blockvm/vm/value"
	"blockvm/vm/wire"
)

// listCount reads the tagged count out of word 0 (spec §3 "List").
func listCount(obj mem.Object) int {
	return int(value.Obj2Int(value.Value(obj.Data[0])))
}

// listCapacity is the number of item slots (reserved + occupied), i.e. the
// data words minus the count slot itself.
func listCapacity(obj mem.Object) int {
	return len(obj.Data) - 1
}

func setListCount(obj mem.Object, n int) {
	obj.Data[0] = int32(value.Int2Obj(int32(n)))
}

// newListSet registers the growable-list primitives (spec §4.4).
func newListSet() *Set {
	s := NewSet("list")

	s.Add("makeList", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		obj, err := arena.Alloc(value.ClassList, uint32(argCount)+1, 0)
		if err != nil {
			return value.Nil, fail(wire.InsufficientMemory)
		}
		setListCount(obj, argCount)
		for i, a := range args {
			obj.Data[1+i] = int32(a)
		}
		return mem.Ref(obj.Addr), nil
	})

	s.Add("newArray", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		capacity := 2
		if argCount >= 1 {
			if !value.IsInt(args[0]) {
				return value.Nil, fail(wire.NeedsIntegerError)
			}
			if n := int(value.Obj2Int(args[0])); n > capacity {
				capacity = n
			}
		}
		obj, err := arena.Alloc(value.ClassList, uint32(capacity)+1, 0)
		if err != nil {
			return value.Nil, fail(wire.InsufficientMemory)
		}
		setListCount(obj, 0)
		return mem.Ref(obj.Addr), nil
	})

	s.Add("length", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		obj, err := requireList(arena, args[0])
		if err != nil {
			return value.Nil, err
		}
		return value.Value(obj.Data[0]), nil
	})

	s.Add("at", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		obj, err := requireList(arena, args[1])
		if err != nil {
			return value.Nil, err
		}
		idx, err := resolveStringIndex(arena, args[0], listCount(obj))
		if err != nil {
			return value.Nil, err
		}
		return value.Value(obj.Data[idx]), nil
	})

	s.Add("atPut", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		obj, err := requireList(arena, args[1])
		if err != nil {
			return value.Nil, err
		}
		newVal := args[2]

		if isSentinelString(arena, args[0], "all") {
			count := listCount(obj)
			for i := 0; i < count; i++ {
				obj.Data[1+i] = int32(newVal)
			}
			return value.False, nil
		}

		idx, err := resolveStringIndex(arena, args[0], listCount(obj))
		if err != nil {
			return value.Nil, err
		}
		obj.Data[idx] = int32(newVal)
		return value.False, nil
	})

	s.Add("addLast", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		item := args[0]
		obj, err := requireList(arena, args[1])
		if err != nil {
			return value.Nil, err
		}

		count, capacity := listCount(obj), listCapacity(obj)
		if count == capacity {
			growBy := count / 3
			if growBy > 100 {
				growBy = 100
			}
			if growBy < 3 {
				growBy = 3
			}
			resized, rerr := arena.Resize(obj.Addr, uint32(capacity+growBy)+1)
			if rerr != nil {
				return value.Nil, fail(wire.InsufficientMemory)
			}
			obj = resized
		}

		obj.Data[1+count] = int32(item)
		setListCount(obj, count+1)
		return value.False, nil
	})

	s.Add("delete", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		obj, err := requireList(arena, args[1])
		if err != nil {
			return value.Nil, err
		}
		count := listCount(obj)

		if isSentinelString(arena, args[0], "all") {
			for i := range obj.Data[1:] {
				obj.Data[1+i] = 0
			}
			setListCount(obj, 0)
			return value.False, nil
		}

		idx := 0
		if isSentinelString(arena, args[0], "last") {
			idx = count
		} else {
			idx, err = resolveStringIndex(arena, args[0], count)
			if err != nil {
				return value.Nil, err
			}
		}

		for i := idx; i < count; i++ {
			obj.Data[i] = obj.Data[i+1]
		}
		obj.Data[count] = 0
		setListCount(obj, count-1)
		return value.False, nil
	})

	s.Add("copyFromTo", func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error) {
		obj, err := requireList(arena, args[0])
		if err != nil {
			return value.Nil, err
		}
		if !value.IsInt(args[1]) {
			return value.Nil, fail(wire.NeedsIntegerError)
		}
		start := int(value.Obj2Int(args[1]))

		count := listCount(obj)
		end := count
		if argCount >= 3 {
			if !value.IsInt(args[2]) {
				return value.Nil, fail(wire.NeedsIntegerError)
			}
			end = int(value.Obj2Int(args[2]))
		}
		if end > count {
			end = count
		}

		n := end - start + 1
		if n < 0 {
			n = 0
		}

		out, aerr := arena.Alloc(value.ClassList, uint32(n)+1, 0)
		if aerr != nil {
			return value.Nil, fail(wire.InsufficientMemory)
		}
		setListCount(out, n)
		if n > 0 {
			obj, _ = requireList(arena, args[0]) // re-fetch after Alloc
			copy(out.Data[1:1+n], obj.Data[start:start+n])
		}
		return mem.Ref(out.Addr), nil
	})

	return s
}

func requireList(arena *mem.Arena, v value.Value) (mem.Object, error) {
	if !value.IsHeapRef(v) {
		return mem.Object{}, fail(wire.NeedsArrayError)
	}
	obj := arena.At(mem.Deref(v))
	if obj.Class != value.ClassList {
		return mem.Object{}, fail(wire.NeedsArrayError)
	}
	return obj, nil
}

func isSentinelString(arena *mem.Arena, v value.Value, want string) bool {
	if value.IsInt(v) || !value.IsHeapRef(v) {
		return false
	}
	obj := arena.At(mem.Deref(v))
	return isStringClass(obj.Class) && string(StringBytes(obj)) == want
}
