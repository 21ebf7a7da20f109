package device

import (
	"testing"

	"blockvm/vm/internal/testutil"
	"blockvm/vm/radio"
	"blockvm/vm/wire"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	testutil.Assert(t, cond, format, args...)
}

// TestChunkUploadAndRun exercises spec §8 S1: a command chunk is uploaded
// then started, and the device reports taskStarted followed by taskDone.
func TestChunkUploadAndRun(t *testing.T) {
	d := New(256, nil)

	body := []byte{byte(wire.ChunkCommand)}
	d.Handle(wire.Message{Opcode: wire.OpChunkCode, ChunkID: 0, Body: body})

	replies := d.Handle(wire.Message{Opcode: wire.OpStartChunk, ChunkID: 0})
	assert(t, len(replies) == 2, "expected taskStarted+taskDone, got %d replies", len(replies))
	assert(t, replies[0].Opcode == wire.OpTaskStarted, "expected taskStarted first, got %v", replies[0].Opcode)
	assert(t, replies[1].Opcode == wire.OpTaskDone, "expected taskDone second, got %v", replies[1].Opcode)
}

// TestReporterReturnsValue exercises spec §8 S2: a reporter chunk whose body
// encodes the literal 42 reports taskReturnedValue(42) then taskDone.
func TestReporterReturnsValue(t *testing.T) {
	d := New(256, nil)

	body := append([]byte{byte(wire.ChunkReporter)}, 42, 0, 0, 0)
	d.Handle(wire.Message{Opcode: wire.OpChunkCode, ChunkID: 7, Body: body})

	replies := d.Handle(wire.Message{Opcode: wire.OpStartChunk, ChunkID: 7})
	assert(t, len(replies) == 3, "expected taskStarted+taskReturnedValue+taskDone, got %d", len(replies))
	assert(t, replies[1].Opcode == wire.OpTaskReturnedValue, "expected taskReturnedValue, got %v", replies[1].Opcode)

	tv, err := wire.DecodeTypedValue(replies[1].Body)
	assert(t, err == nil, "decode failed: %v", err)
	assert(t, tv.Type == wire.TypeInteger && tv.Int == 42, "expected 42, got %+v", tv)
}

// TestResyncDiscardsJunkBeforeValidFrame exercises spec §8 S6: junk bytes
// ahead of a valid short frame must be discarded by wire.Reader, and the
// surviving message still dispatches correctly through Device.Handle.
func TestResyncDiscardsJunkBeforeValidFrame(t *testing.T) {
	d := New(256, nil)
	d.Handle(wire.Message{Opcode: wire.OpChunkCode, ChunkID: 3, Body: []byte{byte(wire.ChunkCommand)}})

	var r wire.Reader
	junk := []byte{0x00, 0xFF, 0x42}
	valid := wire.Encode(wire.Message{Opcode: wire.OpStartChunk, ChunkID: 3})
	r.Feed(append(append([]byte{}, junk...), valid...))

	msg, ok := r.Next()
	assert(t, ok, "expected a message to survive resync")
	assert(t, msg.Opcode == wire.OpStartChunk && msg.ChunkID == 3, "expected startChunk(3), got %+v", msg)

	replies := d.Handle(msg)
	assert(t, len(replies) == 2 && replies[1].Opcode == wire.OpTaskDone, "expected taskStarted+taskDone, got %+v", replies)
}

// TestPingEchoesAndVersionReports exercises the ping echo the host's
// liveness loop relies on, and the getVersion reply.
func TestPingEchoesAndVersionReports(t *testing.T) {
	d := New(256, nil)

	pingReplies := d.Handle(wire.Message{Opcode: wire.OpPing})
	assert(t, len(pingReplies) == 1 && pingReplies[0].Opcode == wire.OpPing, "expected ping echo")

	verReplies := d.Handle(wire.Message{Opcode: wire.OpGetVersion})
	assert(t, len(verReplies) == 1 && verReplies[0].Opcode == wire.OpVersion, "expected a version reply")
	tv, err := wire.DecodeTypedValue(verReplies[0].Body)
	assert(t, err == nil && tv.Type == wire.TypeString && tv.Str == Version, "expected version string %q, got %+v (err %v)", Version, tv, err)
}

// TestGetSetVarRoundTrips exercises the ChunkID-as-variable-index
// convention: setVar followed by getVar on the same index round-trips an
// integer global.
func TestGetSetVarRoundTrips(t *testing.T) {
	d := New(256, nil)

	d.Handle(wire.Message{Opcode: wire.OpSetVar, ChunkID: 2, Body: wire.EncodeInt(99)})
	replies := d.Handle(wire.Message{Opcode: wire.OpGetVar, ChunkID: 2})
	assert(t, len(replies) == 1 && replies[0].Opcode == wire.OpVarValue, "expected varValue reply")

	tv, err := wire.DecodeTypedValue(replies[0].Body)
	assert(t, err == nil && tv.Int == 99, "expected 99, got %+v (err %v)", tv, err)
}

// TestDeleteAllCodeClearsTasks confirms deleteAllCode drops every task so a
// subsequent startChunk reports badChunkIndexError.
func TestDeleteAllCodeClearsTasks(t *testing.T) {
	d := New(256, nil)
	d.Handle(wire.Message{Opcode: wire.OpChunkCode, ChunkID: 0, Body: []byte{byte(wire.ChunkCommand)}})
	d.Handle(wire.Message{Opcode: wire.OpDeleteAllCode})

	replies := d.Handle(wire.Message{Opcode: wire.OpStartChunk, ChunkID: 0})
	assert(t, len(replies) == 1 && replies[0].Opcode == wire.OpTaskError, "expected taskError after deleteAllCode, got %+v", replies)
}

// TestDeviceHoldsRadio confirms a Device built with a real radio.Radio keeps
// it reachable, grounding the wire+radio binding spec §4.8 names.
func TestDeviceHoldsRadio(t *testing.T) {
	r := radio.New(1)
	d := New(256, r)
	assert(t, d.Radio == r, "expected Device to retain the radio it was built with")
}
