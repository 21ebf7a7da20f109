// Package prim implements the primitive registry and the data primitives
// (lists, strings, byte arrays) from spec §4.3/§4.4.
package prim

import (
	"fmt"

	"blockvm/vm/mem"
	"blockvm/vm/value"
	"blockvm/vm/wire"
)

// Handler is the native implementation of one primitive. argCount is
// len(args); it is passed explicitly because real device firmware hands a
// raw stack pointer rather than a slice header, and keeping the parameter
// mirrors that contract (spec §4.3).
type Handler func(arena *mem.Arena, argCount int, args []value.Value) (value.Value, error)

// Set is a namespaced table of primitives, e.g. the "list" set holds
// at/atPut/addLast/etc (spec §4.3 "primitiveSet(name) -> {entries}").
type Set struct {
	Name    string
	entries map[string]Handler
}

// NewSet creates an empty named primitive set.
func NewSet(name string) *Set {
	return &Set{Name: name, entries: make(map[string]Handler)}
}

// Add registers handler under name within this set.
func (s *Set) Add(name string, h Handler) {
	s.entries[name] = h
}

// Lookup finds a handler by name within this set.
func (s *Set) Lookup(name string) (Handler, bool) {
	h, ok := s.entries[name]
	return h, ok
}

// Registry maps set names to primitive sets (spec §4.3).
type Registry struct {
	sets map[string]*Set
}

// NewRegistry builds a registry with the list/string/bytearray sets
// pre-registered, since every conforming device needs them (spec §4.4).
func NewRegistry() *Registry {
	r := &Registry{sets: make(map[string]*Set)}
	r.Register(newListSet())
	r.Register(newStringSet())
	r.Register(newByteArraySet())
	return r
}

// Register adds (or replaces) a named primitive set.
func (r *Registry) Register(s *Set) {
	r.sets[s.Name] = s
}

// Invoke looks up setName.primName and calls it with args. Returning the
// False singleton is the convention for statement-style primitives with no
// meaningful result (spec §4.3).
func (r *Registry) Invoke(arena *mem.Arena, setName, primName string, args []value.Value) (value.Value, error) {
	set, ok := r.sets[setName]
	if !ok {
		return value.Nil, fmt.Errorf("prim: no such set %q", setName)
	}
	h, ok := set.Lookup(primName)
	if !ok {
		return value.Nil, fmt.Errorf("prim: no such primitive %s.%s", setName, primName)
	}
	return h(arena, len(args), args)
}

// fail is the primitive-level equivalent of spec §4.2's fail(errorCode):
// primitives never panic or abort the VM, they return a wire.ErrorCode
// which satisfies error and is propagated by the caller as a taskError.
func fail(code wire.ErrorCode) error {
	return code
}
