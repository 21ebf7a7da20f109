package mem

import (
	"testing"

	"blockvm/vm/internal/testutil"
	"blockvm/vm/value"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	testutil.Assert(t, cond, format, args...)
}

func TestInitOffsetsPastSingletons(t *testing.T) {
	a := Init(1024)
	assert(t, a.start*4 > 8, "arena start %d must be past byte address 8", a.start*4)
	assert(t, a.free == a.start, "free should start at the reserved start")
}

func TestAllocStampsHeaderAndZeroes(t *testing.T) {
	a := Init(64)
	obj, err := a.Alloc(value.ClassList, 4, 0)
	assert(t, err == nil, "alloc failed: %v", err)
	assert(t, obj.Class == value.ClassList, "wrong class: %v", obj.Class)
	assert(t, len(obj.Data) == 4, "wrong word count: %d", len(obj.Data))
	for i, w := range obj.Data {
		assert(t, w == 0, "word %d not zeroed: %d", i, w)
	}
}

func TestAllocFailsAtEndWithoutCorruptingFree(t *testing.T) {
	a := Init(8)
	freeBefore := a.free
	_, err := a.Alloc(value.ClassList, 100, 0)
	assert(t, err == ErrInsufficientMemory, "expected insufficient memory, got %v", err)
	assert(t, a.free == freeBefore, "free pointer must not move on failed alloc")
}

func TestClearResetsFree(t *testing.T) {
	a := Init(64)
	_, err := a.Alloc(value.ClassList, 4, 0)
	assert(t, err == nil, "alloc failed: %v", err)
	a.Clear()
	assert(t, a.free == a.start, "clear must reset free to start")

	_, err = a.Alloc(value.ClassList, 10, 0)
	assert(t, err == nil, "alloc after clear should succeed: %v", err)
}

func TestInt2ObjObj2IntRoundTrip(t *testing.T) {
	for _, n := range []int32{0, 1, -1, value.IntMin, value.IntMax, 12345, -98765} {
		v := value.Int2Obj(n)
		assert(t, value.Obj2Int(v) == n, "round trip failed for %d, got %d", n, value.Obj2Int(v))
	}
}

func TestSingletonsDistinctFromIntZero(t *testing.T) {
	zero := value.Int2Obj(0)
	assert(t, zero != value.Nil, "int 0 must not equal nil")
	assert(t, zero != value.False, "int 0 must not equal false")
	assert(t, zero != value.True, "int 0 must not equal true")
}

func TestResizeGrowsInPlaceAtTopOfHeap(t *testing.T) {
	a := Init(64)
	obj, err := a.Alloc(value.ClassList, 2, 0)
	assert(t, err == nil, "alloc failed: %v", err)
	obj.Data[0] = 111
	obj.Data[1] = 222

	grown, err := a.Resize(obj.Addr, 5)
	assert(t, err == nil, "resize failed: %v", err)
	assert(t, len(grown.Data) == 5, "wrong size after resize: %d", len(grown.Data))
	assert(t, grown.Data[0] == 111 && grown.Data[1] == 222, "resize must preserve existing data")
	assert(t, grown.Data[2] == 0, "new capacity must be zeroed")
}

func TestResizeRelocatesWhenNotAtTop(t *testing.T) {
	a := Init(64)
	first, err := a.Alloc(value.ClassList, 2, 0)
	assert(t, err == nil, "alloc failed: %v", err)
	first.Data[0] = 7

	// Allocate a second object so `first` is no longer at the top of heap.
	_, err = a.Alloc(value.ClassList, 2, 0)
	assert(t, err == nil, "alloc failed: %v", err)

	resized, err := a.Resize(first.Addr, 4)
	assert(t, err == nil, "resize failed: %v", err)
	assert(t, resized.Addr != first.Addr, "relocated object should have a new address")
	assert(t, resized.Data[0] == 7, "relocation must preserve data")
}
