package prim

import "math/rand"

// randIntn backs the "random" sentinel index accepted by list.at/string.at
// (spec §4.4). A package-level source is fine here: primitives are
// single-threaded and non-reentrant (spec §5).
func randIntn(n int) int {
	return rand.Intn(n)
}
