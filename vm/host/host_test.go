package host

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"blockvm/vm/device"
	"blockvm/vm/internal/testutil"
	"blockvm/vm/wire"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	testutil.Assert(t, cond, format, args...)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PingGrace = 10 * time.Millisecond
	cfg.PingMissLimit = 3
	return cfg
}

// wireDeviceEcho runs a tiny device-side pump against one pipe half: it
// feeds bytes into a device.Device and writes back whatever replies the
// device produces, including the ping opcode's own echo (spec §8 S3 "device
// echoes [250, 26, 0]").
func wireDeviceEcho(t *testing.T, tr Transport, dev *device.Device, stopPingAfter int) {
	t.Helper()
	go func() {
		var reader wire.Reader
		buf := make([]byte, 256)
		pings := 0
		for {
			n, err := tr.Read(buf)
			if err != nil {
				return
			}
			reader.Feed(buf[:n])
			for {
				msg, ok := reader.Next()
				if !ok {
					break
				}
				if msg.Opcode == wire.OpPing {
					pings++
					if stopPingAfter > 0 && pings > stopPingAfter {
						continue // simulate the board going silent
					}
				}
				for _, reply := range dev.Handle(msg) {
					if _, err := tr.Write(wire.Encode(reply)); err != nil {
						return
					}
				}
			}
		}
	}()
}

// TestConnectionStatusGoesLiveThenBoardNotResponding exercises spec §8 S3:
// a live device answers pings and ConnectionStatus reports connected; once
// it stops answering, three missed pings flip the status to
// boardNotResponding.
func TestConnectionStatusGoesLiveThenBoardNotResponding(t *testing.T) {
	cfg := testConfig()
	h := New(cfg, zap.NewNop().Sugar())

	hostSide, deviceSide := NewPipePair()
	dev := device.New(256, nil)
	wireDeviceEcho(t, deviceSide, dev, 2) // stop answering after 2 pings

	h.Attach(hostSide)
	defer h.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.ConnectionStatus() != Connected && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert(t, h.ConnectionStatus() == Connected, "expected connected once pings are answered")

	deadline = time.Now().Add(2 * time.Second)
	for h.ConnectionStatus() != BoardNotResponding && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert(t, h.ConnectionStatus() == BoardNotResponding, "expected boardNotResponding after 3 missed pings")
}

// TestUploadStartReportsHighlightAndResult drives a real device.Device over
// a pipe end to end: upload assigns a chunk id, start fires the highlight
// hook on taskStarted/taskDone, and a reporter chunk's taskReturnedValue
// reaches the result hook (spec §4.7, §8 S1/S2).
func TestUploadStartReportsHighlightAndResult(t *testing.T) {
	cfg := testConfig()
	h := New(cfg, zap.NewNop().Sugar())

	hostSide, deviceSide := NewPipePair()
	dev := device.New(256, nil)
	wireDeviceEcho(t, deviceSide, dev, 0)

	var highlights []bool
	var results []wire.TypedValue
	h.OnHighlight(func(chunkID byte, running bool) { highlights = append(highlights, running) })
	h.OnResult(func(chunkID byte, tv wire.TypedValue, ec wire.ErrorCode) { results = append(results, tv) })

	h.Attach(hostSide)
	defer h.Close()

	// chunk body: type byte (reporter) + 4-byte LE literal result (spec
	// SPEC_FULL §4.8's canned-result convention for reporter chunks, since
	// the bytecode interpreter is out of scope).
	body := []byte{0, 0, 0, 0}
	id, err := h.Upload("block-1", wire.ChunkReporter, true, body)
	assert(t, err == nil, "upload failed: %v", err)
	assert(t, h.Start(id) == nil, "start failed")

	deadline := time.Now().Add(2 * time.Second)
	for len(results) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert(t, len(highlights) >= 2, "expected at least start+done highlight callbacks, got %d", len(highlights))
	assert(t, len(results) == 1, "expected one reported result, got %d", len(results))
	assert(t, results[0].Int == 0, "expected canned literal 0, got %d", results[0].Int)
}

// TestChunkIDsReuseOnlyAfterDeleteAllCode exercises spec §4.6's host-side
// assignment rule directly against ChunkTable.
func TestChunkIDsReuseOnlyAfterDeleteAllCode(t *testing.T) {
	table := NewChunkTable()
	a := table.Assign("block-a", false)
	b := table.Assign("block-b", false)
	assert(t, a == 0 && b == 1, "expected sequential ids 0,1, got %d,%d", a, b)

	again := table.Assign("block-a", false)
	assert(t, again == a, "re-saving the same block must keep its id")

	table.Reset()
	fresh := table.Assign("block-c", false)
	assert(t, fresh == 0, "ids must restart from zero after Reset, got %d", fresh)
}
