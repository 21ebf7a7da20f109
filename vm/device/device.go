// Package device implements the device side of the wire protocol's
// opcode dispatch loop, binding object memory, the primitive registry, and
// the radio peripheral together (SPEC_FULL §4.8). It is deliberately not a
// bytecode interpreter: spec.md §1 scopes the interpreter's opcode set out,
// so a chunk's body is an opaque blob whose only device-side handling here
// is start/stop bookkeeping, value reporting, and error reporting.
package device

import (
	"encoding/binary"
	"sort"
	"sync"

	"blockvm/vm/mem"
	"blockvm/vm/prim"
	"blockvm/vm/radio"
	"blockvm/vm/value"
	"blockvm/vm/wire"
)

// Version is the string the device reports for getVersion (spec §4.6).
const Version = "blockvm-device/1"

// TaskState mirrors the run-state the device reports to the host via
// taskStarted/taskDone/taskError (spec §4.6 opcode table).
type TaskState int

const (
	TaskIdle TaskState = iota
	TaskRunning
	TaskDone
	TaskError
)

// Task is the device's bookkeeping for one uploaded chunk.
type Task struct {
	ChunkID   byte
	Type      wire.ChunkType
	Code      []byte
	State     TaskState
	ErrorCode wire.ErrorCode
}

// Device binds the object memory, primitive registry, and radio peripheral
// behind the wire protocol's device-side opcode dispatch (SPEC_FULL §4.8).
// Radio may be nil for tests that don't exercise the radio opcodes.
type Device struct {
	mu sync.Mutex

	Arena    *mem.Arena
	Registry *prim.Registry
	Radio    *radio.Radio

	tasks map[byte]*Task
}

// New builds a device with a fresh arena of arenaWords words and the
// standard list/string/bytearray primitive sets (spec §4.2, §4.4).
func New(arenaWords uint32, r *radio.Radio) *Device {
	return &Device{
		Arena:    mem.Init(arenaWords),
		Registry: prim.NewRegistry(),
		Radio:    r,
		tasks:    make(map[byte]*Task),
	}
}

// Handle dispatches one incoming host message and returns zero or more
// device->host reply messages (spec §4.6 opcode table, §8 S1/S2/S6).
func (d *Device) Handle(msg wire.Message) []wire.Message {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch msg.Opcode {
	case wire.OpChunkCode:
		return d.chunkCode(msg)
	case wire.OpDeleteChunk:
		delete(d.tasks, msg.ChunkID)
		return nil
	case wire.OpStartChunk:
		return d.startChunk(msg.ChunkID)
	case wire.OpStopChunk:
		return d.stopChunk(msg.ChunkID)
	case wire.OpStartAll:
		return d.startAll()
	case wire.OpStopAll:
		return d.stopAll()
	case wire.OpDeleteAllCode:
		d.tasks = make(map[byte]*Task)
		d.Arena.Clear()
		return nil
	case wire.OpSystemReset:
		d.tasks = make(map[byte]*Task)
		d.Arena.Clear()
		return nil
	case wire.OpGetVar:
		return d.getVar(msg.ChunkID)
	case wire.OpSetVar:
		return d.setVar(msg.ChunkID, msg.Body)
	case wire.OpGetVersion:
		return []wire.Message{{Opcode: wire.OpVersion, Body: wire.EncodeString(Version)}}
	case wire.OpPing:
		// Echo, per spec §8 S3 "device echoes [250, 26, 0]".
		return []wire.Message{{Opcode: wire.OpPing}}
	case wire.OpBroadcast:
		// Fanning broadcast out to whenBroadcastReceived tasks is
		// interpreter territory (spec §1 out-of-scope); the wire-level
		// round trip itself is exercised at the wire.Reader layer (§8 S6).
		return nil
	default:
		return nil
	}
}

func (d *Device) chunkCode(msg wire.Message) []wire.Message {
	if len(msg.Body) < 1 {
		return nil
	}
	d.tasks[msg.ChunkID] = &Task{
		ChunkID: msg.ChunkID,
		Type:    wire.ChunkType(msg.Body[0]),
		Code:    append([]byte(nil), msg.Body[1:]...),
		State:   TaskIdle,
	}
	return nil
}

// startChunk runs the task's start-of-life transition. ChunkReporter
// chunks additionally produce a value via evalReporter and report it with
// taskReturnedValue, since there is no bytecode interpreter to actually
// execute the chunk's body (spec §8 S1 command lifecycle, S2 reporter
// result).
func (d *Device) startChunk(id byte) []wire.Message {
	t, ok := d.tasks[id]
	if !ok {
		return []wire.Message{{Opcode: wire.OpTaskError, ChunkID: id, Body: []byte{byte(wire.BadChunkIndexError)}}}
	}

	t.State = TaskRunning
	out := []wire.Message{{Opcode: wire.OpTaskStarted, ChunkID: id}}

	if t.Type == wire.ChunkReporter {
		result, err := evalReporter(t.Code)
		if err != nil {
			t.State = TaskError
			t.ErrorCode = err.(wire.ErrorCode)
			out = append(out, wire.Message{Opcode: wire.OpTaskError, ChunkID: id, Body: []byte{byte(t.ErrorCode)}})
			return out
		}
		out = append(out, wire.Message{Opcode: wire.OpTaskReturnedValue, ChunkID: id, Body: wire.EncodeInt(result)})
	}

	t.State = TaskDone
	out = append(out, wire.Message{Opcode: wire.OpTaskDone, ChunkID: id})
	return out
}

// evalReporter stands in for the out-of-scope bytecode interpreter: a
// ChunkReporter's body is the 4-byte LE literal it evaluates to, the
// simplest opaque-blob convention that still lets taskReturnedValue be
// exercised end-to-end (SPEC_FULL §4.8).
func evalReporter(code []byte) (int32, error) {
	if len(code) < 4 {
		return 0, wire.UnspecifiedError
	}
	return int32(binary.LittleEndian.Uint32(code[:4])), nil
}

func (d *Device) stopChunk(id byte) []wire.Message {
	t, ok := d.tasks[id]
	if !ok || t.State != TaskRunning {
		return nil
	}
	t.State = TaskDone
	return []wire.Message{{Opcode: wire.OpTaskDone, ChunkID: id}}
}

func (d *Device) startAll() []wire.Message {
	var out []wire.Message
	for _, id := range d.sortedChunkIDs() {
		out = append(out, d.startChunk(id)...)
	}
	return out
}

func (d *Device) stopAll() []wire.Message {
	var out []wire.Message
	for _, id := range d.sortedChunkIDs() {
		out = append(out, d.stopChunk(id)...)
	}
	return out
}

func (d *Device) sortedChunkIDs() []byte {
	ids := make([]byte, 0, len(d.tasks))
	for id := range d.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// getVar and setVar repurpose the message's ChunkID byte as a global
// variable index: spec §4.6 gives getVar/setVar no body field for the
// index, and the fixed 25-slot global table (spec §4.2) comfortably fits
// in one byte, so reusing the header field avoids inventing a new frame
// shape (see DESIGN.md Open Question).
func (d *Device) getVar(idx byte) []wire.Message {
	if int(idx) >= len(d.Arena.Globals) {
		return []wire.Message{{Opcode: wire.OpTaskError, ChunkID: idx, Body: []byte{byte(wire.IndexOutOfRangeError)}}}
	}
	body, err := encodeValue(d.Arena, d.Arena.Globals[idx])
	if err != nil {
		return nil
	}
	return []wire.Message{{Opcode: wire.OpVarValue, ChunkID: idx, Body: body}}
}

func (d *Device) setVar(idx byte, body []byte) []wire.Message {
	if int(idx) >= len(d.Arena.Globals) {
		return nil
	}
	tv, err := wire.DecodeTypedValue(body)
	if err != nil {
		return nil
	}
	v, err := decodeValue(d.Arena, tv)
	if err != nil {
		return nil
	}
	d.Arena.Globals[idx] = v
	return nil
}

func encodeValue(arena *mem.Arena, v value.Value) ([]byte, error) {
	switch {
	case value.IsInt(v):
		return wire.EncodeInt(value.Obj2Int(v)), nil
	case value.IsBoolean(v):
		return wire.EncodeBool(value.Obj2Bool(v)), nil
	case value.IsNil(v):
		return wire.EncodeBool(false), nil
	default:
		obj := arena.At(mem.Deref(v))
		switch obj.Class {
		case value.ClassByteArray:
			return wire.EncodeByteArray(prim.ByteArrayBytes(obj)), nil
		case value.ClassString, value.ClassStaticString:
			return wire.EncodeString(string(prim.StringBytes(obj))), nil
		default:
			// Lists have no typed-value wire encoding (spec §4.6); report
			// them as the false singleton rather than fail the message.
			return wire.EncodeBool(false), nil
		}
	}
}

func decodeValue(arena *mem.Arena, tv wire.TypedValue) (value.Value, error) {
	switch tv.Type {
	case wire.TypeInteger:
		return value.Int2Obj(tv.Int), nil
	case wire.TypeBoolean:
		return value.Bool2Obj(tv.Bool), nil
	case wire.TypeString:
		return prim.NewString(arena, tv.Str)
	case wire.TypeByteArray:
		return prim.NewByteArrayFromBytes(arena, tv.Blob)
	default:
		return value.Nil, wire.UnspecifiedError
	}
}
