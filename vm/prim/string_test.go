package prim

import (
	"testing"

	"blockvm/vm/mem"
	"blockvm/vm/value"
	"blockvm/vm/wire"
)

func TestStringLengthASCII(t *testing.T) {
	a, r := newTestArena()
	v, _ := NewString(a, "hello")

	got, err := r.Invoke(a, "string", "length", []value.Value{v})
	assert(t, err == nil, "length failed: %v", err)
	assert(t, value.Obj2Int(got) == 5, "expected 5, got %d", value.Obj2Int(got))
}

// TestStringLengthUTF8 exercises multi-byte codepoints: "héllo" has 5
// codepoints but 6 bytes (é is two UTF-8 bytes).
func TestStringLengthUTF8(t *testing.T) {
	a, r := newTestArena()
	v, _ := NewString(a, "héllo")

	got, err := r.Invoke(a, "string", "length", []value.Value{v})
	assert(t, err == nil, "length failed: %v", err)
	assert(t, value.Obj2Int(got) == 5, "expected 5 codepoints, got %d", value.Obj2Int(got))
}

func TestStringAtUTF8(t *testing.T) {
	a, r := newTestArena()
	v, _ := NewString(a, "héllo")

	got, err := r.Invoke(a, "string", "at", []value.Value{value.Int2Obj(2), v})
	assert(t, err == nil, "at failed: %v", err)
	obj := a.At(mem.Deref(got))
	assert(t, string(StringBytes(obj)) == "é", "expected codepoint 2 = 'é', got %q", string(StringBytes(obj)))
}

func TestStringAtOutOfRange(t *testing.T) {
	a, r := newTestArena()
	v, _ := NewString(a, "hi")

	_, err := r.Invoke(a, "string", "at", []value.Value{value.Int2Obj(10), v})
	assert(t, err == wire.IndexOutOfRangeError, "expected indexOutOfRangeError, got %v", err)
}

func TestStringCopyFromTo(t *testing.T) {
	a, r := newTestArena()
	v, _ := NewString(a, "hello world")

	out, err := r.Invoke(a, "string", "copyFromTo", []value.Value{v, value.Int2Obj(1), value.Int2Obj(5)})
	assert(t, err == nil, "copyFromTo failed: %v", err)
	obj := a.At(mem.Deref(out))
	assert(t, string(StringBytes(obj)) == "hello", "expected 'hello', got %q", string(StringBytes(obj)))
}

func TestFindInStringBasic(t *testing.T) {
	a, r := newTestArena()
	needle, _ := NewString(a, "lo")
	haystack, _ := NewString(a, "hello")

	got, err := r.Invoke(a, "string", "findInString", []value.Value{needle, haystack})
	assert(t, err == nil, "findInString failed: %v", err)
	assert(t, value.Obj2Int(got) == 4, "expected index 4, got %d", value.Obj2Int(got))
}

func TestFindInStringNotFound(t *testing.T) {
	a, r := newTestArena()
	needle, _ := NewString(a, "zz")
	haystack, _ := NewString(a, "hello")

	got, err := r.Invoke(a, "string", "findInString", []value.Value{needle, haystack})
	assert(t, err == nil, "findInString failed: %v", err)
	assert(t, value.Obj2Int(got) == -1, "expected -1, got %d", value.Obj2Int(got))
}

func TestFindInStringEmptyNeedle(t *testing.T) {
	a, r := newTestArena()
	needle, _ := NewString(a, "")
	haystack, _ := NewString(a, "hello")

	got, err := r.Invoke(a, "string", "findInString", []value.Value{needle, haystack})
	assert(t, err == nil, "findInString failed: %v", err)
	assert(t, value.Obj2Int(got) == 1, "expected 1 for empty needle, got %d", value.Obj2Int(got))
}

func TestJoinStringsConcatenates(t *testing.T) {
	a, r := newTestArena()
	s1, _ := NewString(a, "foo")
	s2, _ := NewString(a, "bar")

	got, err := r.Invoke(a, "string", "join", []value.Value{s1, s2})
	assert(t, err == nil, "join failed: %v", err)
	obj := a.At(mem.Deref(got))
	assert(t, string(StringBytes(obj)) == "foobar", "expected 'foobar', got %q", string(StringBytes(obj)))
}

func TestJoinMixesIntAndBoolAsText(t *testing.T) {
	a, r := newTestArena()
	s1, _ := NewString(a, "x=")

	got, err := r.Invoke(a, "string", "join", []value.Value{s1, value.Int2Obj(42), value.True})
	assert(t, err == nil, "join failed: %v", err)
	obj := a.At(mem.Deref(got))
	assert(t, string(StringBytes(obj)) == "x=42true", "expected 'x=42true', got %q", string(StringBytes(obj)))
}

func TestJoinListsConcatenatesElements(t *testing.T) {
	a, r := newTestArena()
	l1, _ := r.Invoke(a, "list", "makeList", []value.Value{value.Int2Obj(1), value.Int2Obj(2)})
	l2, _ := r.Invoke(a, "list", "makeList", []value.Value{value.Int2Obj(3)})

	got, err := r.Invoke(a, "string", "join", []value.Value{l1, l2})
	assert(t, err == nil, "join failed: %v", err)

	length, _ := r.Invoke(a, "list", "length", []value.Value{got})
	assert(t, value.Obj2Int(length) == 3, "expected length 3, got %d", value.Obj2Int(length))
}

func TestJoinStringsWithSeparator(t *testing.T) {
	a, r := newTestArena()
	sa, _ := NewString(a, "a")
	sb, _ := NewString(a, "b")
	sc, _ := NewString(a, "c")
	list, _ := r.Invoke(a, "list", "makeList", []value.Value{sa, sb, sc})
	sep, _ := NewString(a, ",")

	got, err := r.Invoke(a, "string", "joinStrings", []value.Value{list, sep})
	assert(t, err == nil, "joinStrings failed: %v", err)
	obj := a.At(mem.Deref(got))
	assert(t, string(StringBytes(obj)) == "a,b,c", "expected 'a,b,c', got %q", string(StringBytes(obj)))
}
