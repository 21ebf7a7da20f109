package host

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"blockvm/vm/wire"
)

var errNotAttached = errors.New("host: no transport attached")

// HighlightFunc is invoked whenever a task's running state changes, so a
// caller can highlight the block with the matching chunk id (spec §4.7).
type HighlightFunc func(chunkID byte, running bool)

// ResultFunc is invoked when the device reports a returned value, an
// ambient output/var value, or an error for a chunk, so a caller can show
// it as a hint on the block (spec §4.7). errCode is wire.NoError unless the
// report came from a taskError message.
type ResultFunc func(chunkID byte, tv wire.TypedValue, errCode wire.ErrorCode)

// Host is the host-side counterpart to the wire protocol: it owns the
// transport, assigns chunk ids, tracks liveness via periodic pings, and
// forwards device-originated messages to the highlight/result hooks (spec
// §4.7).
type Host struct {
	cfg Config
	log *zap.SugaredLogger

	Chunks *ChunkTable
	live   *liveness

	trMu   sync.Mutex
	tr     Transport
	reader wire.Reader

	hookMu      sync.Mutex
	onHighlight HighlightFunc
	onResult    ResultFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Host from cfg. A nil logger gets a production zap logger
// (spec §7 "structured, leveled logging"); tests typically pass
// zap.NewNop().Sugar() instead.
func New(cfg Config, log *zap.SugaredLogger) *Host {
	if log == nil {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		log = l.Sugar()
	}
	return &Host{
		cfg:    cfg,
		log:    log,
		Chunks: NewChunkTable(),
		live:   newLiveness(cfg.PingMissLimit),
	}
}

// OnHighlight registers the callback for task running-state changes.
func (h *Host) OnHighlight(f HighlightFunc) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.onHighlight = f
}

// OnResult registers the callback for returned values, ambient output, and
// errors.
func (h *Host) OnResult(f ResultFunc) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.onResult = f
}

// Attach binds an already-open transport and starts the receive pump and
// the ping-liveness loop (spec §4.7, §8 S3).
func (h *Host) Attach(tr Transport) {
	h.setTransport(tr)
	h.live.opened()

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.wg.Add(2)
	go h.readLoop(ctx)
	go h.pingLoop(ctx)
}

func (h *Host) setTransport(tr Transport) {
	h.trMu.Lock()
	defer h.trMu.Unlock()
	h.tr = tr
}

func (h *Host) transport() Transport {
	h.trMu.Lock()
	defer h.trMu.Unlock()
	return h.tr
}

// OpenSerial opens and attaches a real serial port (spec §6 "115200 8N1").
func (h *Host) OpenSerial() error {
	tr, err := OpenSerial(h.cfg)
	if err != nil {
		h.log.Warnw("serial open failed", "port", h.cfg.Port, "err", err)
		return err
	}
	h.Attach(tr)
	return nil
}

// Close stops the receive pump and ping loop and closes the transport.
func (h *Host) Close() error {
	if h.cancel != nil {
		h.cancel()
	}
	// Closing the transport first unblocks a readLoop parked in tr.Read.
	var err error
	if tr := h.transport(); tr != nil {
		err = tr.Close()
	}
	h.wg.Wait()
	h.live.closed()
	return err
}

// ConnectionStatus reports the tri-state liveness indicator (spec §4.7).
func (h *Host) ConnectionStatus() ConnectionStatus {
	return h.live.status()
}

// Send frames and writes one message to the device.
func (h *Host) Send(msg wire.Message) error {
	tr := h.transport()
	if tr == nil {
		return errNotAttached
	}
	_, err := tr.Write(wire.Encode(msg))
	if err != nil {
		h.log.Warnw("write failed", "err", err)
	}
	return err
}

// Upload assigns (or reuses) a chunk id for blockKey, uploads code as a
// chunkCode message, and returns the id the caller uses for subsequent
// startChunk/stopChunk (spec §4.6).
func (h *Host) Upload(blockKey string, chunkType wire.ChunkType, isExpression bool, code []byte) (byte, error) {
	id := h.Chunks.Assign(blockKey, isExpression)
	body := make([]byte, 0, 1+len(code))
	body = append(body, byte(chunkType))
	body = append(body, code...)
	return id, h.Send(wire.Message{Opcode: wire.OpChunkCode, ChunkID: id, Body: body})
}

// Start sends startChunk for chunkID.
func (h *Host) Start(chunkID byte) error {
	return h.Send(wire.Message{Opcode: wire.OpStartChunk, ChunkID: chunkID})
}

// Stop sends stopChunk for chunkID.
func (h *Host) Stop(chunkID byte) error {
	return h.Send(wire.Message{Opcode: wire.OpStopChunk, ChunkID: chunkID})
}

// StartAll sends startAll.
func (h *Host) StartAll() error { return h.Send(wire.Message{Opcode: wire.OpStartAll}) }

// StopAll sends stopAll.
func (h *Host) StopAll() error { return h.Send(wire.Message{Opcode: wire.OpStopAll}) }

// DeleteAllCode clears the device's chunks and resets the host's chunk-id
// table so ids are reused from zero (spec §4.6).
func (h *Host) DeleteAllCode() error {
	h.Chunks.Reset()
	return h.Send(wire.Message{Opcode: wire.OpDeleteAllCode})
}

func (h *Host) readLoop(ctx context.Context) {
	defer h.wg.Done()
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tr := h.transport()
		if tr == nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		n, err := tr.Read(buf)
		if err != nil {
			h.log.Debugw("read error, waiting for reconnect", "err", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		h.reader.Feed(buf[:n])
		for {
			msg, ok := h.reader.Next()
			if !ok {
				break
			}
			h.handle(msg)
		}
	}
}

func (h *Host) handle(msg wire.Message) {
	switch msg.Opcode {
	case wire.OpPing:
		h.live.pongReceived()
	case wire.OpTaskStarted:
		h.fireHighlight(msg.ChunkID, true)
	case wire.OpTaskDone:
		h.fireHighlight(msg.ChunkID, false)
	case wire.OpTaskReturnedValue, wire.OpOutputValue, wire.OpVarValue:
		if tv, err := wire.DecodeTypedValue(msg.Body); err == nil {
			h.fireResult(msg.ChunkID, tv, wire.NoError)
		}
	case wire.OpTaskError:
		if len(msg.Body) > 0 {
			h.fireResult(msg.ChunkID, wire.TypedValue{}, wire.ErrorCode(msg.Body[0]))
		}
	}
}

func (h *Host) fireHighlight(id byte, running bool) {
	h.hookMu.Lock()
	f := h.onHighlight
	h.hookMu.Unlock()
	if f != nil {
		f(id, running)
	}
}

func (h *Host) fireResult(id byte, tv wire.TypedValue, ec wire.ErrorCode) {
	h.hookMu.Lock()
	f := h.onResult
	h.hookMu.Unlock()
	if f != nil {
		f(id, tv, ec)
	}
}

// pingLoop sends a ping every PingInterval and, if no pong arrives within
// PingGrace afterward, records a miss (spec §4.7, §8 S3: "If three echoes
// are missed, connectionStatus == boardNotResponding").
func (h *Host) pingLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pongBefore := h.live.lastPongSnapshot()
			if err := h.Send(wire.Message{Opcode: wire.OpPing}); err != nil {
				h.live.closed()
				go h.reconnect(ctx)
				continue
			}

			grace := time.NewTimer(h.cfg.PingGrace)
			select {
			case <-ctx.Done():
				grace.Stop()
				return
			case <-grace.C:
				if h.live.lastPongSnapshot().Equal(pongBefore) {
					h.live.pingTimedOut()
					h.log.Warnw("ping missed", "consecutive", h.live.missedCount())
				}
			}
		}
	}
}

// reconnect retries opening the serial port with an exponential backoff
// instead of a hand-rolled sleep loop (spec §7), grounded in the same
// reconnect-after-disconnect shape other_examples/manifests/nasa-jpl-
// golaborate uses for instrument links. It swaps the live transport in
// place rather than re-attaching, since readLoop/pingLoop already run for
// the lifetime of the Host.
func (h *Host) reconnect(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0

	_ = backoff.Retry(func() error {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		tr, err := OpenSerial(h.cfg)
		if err != nil {
			return err
		}
		if old := h.transport(); old != nil {
			old.Close()
		}
		h.setTransport(tr)
		h.live.opened()
		return nil
	}, b)
}
