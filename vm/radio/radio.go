// Package radio simulates the micro:bit nRF51 radio primitives: a
// packet-buffer ring shared with a (simulated) DMA/ISR producer, a lazily
// initialized state machine, and the MakeCode typed-message framing layer
// (spec §4.5).
package radio

import (
	"sync"
	"time"

	"github.com/snksoft/crc"

	"blockvm/vm/mem"
	"blockvm/vm/prim"
)

// PacketSize is the nRF51's fixed maximum payload, spec §4.5/§7.
const PacketSize = 32

// MaxPackets is the ring buffer depth; must stay a power of two so index
// arithmetic can use a mask instead of a modulo (spec §4.5 "power of two").
const MaxPackets = 8

// BaseAddress is the fixed nRF51 base address 'uBit' (spec §4.5/§7).
const BaseAddress = 0x75626974

// State is the radio's lazily-initialized lifecycle state (spec §4.5).
type State int

const (
	Uninitialized State = iota
	Receiving
	Transmitting
	Disabled
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Receiving:
		return "receiving"
	case Transmitting:
		return "transmitting"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

var crc16Table = crc.NewTable(crc.CRC16)

// crcTrailerSize is the 16-bit on-air CRC the hardware appends after the
// logical payload; it rides outside the PacketSize budget (spec §4.5/§7
// "16-bit CRC excluding address").
const crcTrailerSize = 2

type packetSlot struct {
	data [PacketSize + crcTrailerSize]byte
	n    int
	rssi int32
	good bool
}

// Radio is one endpoint's software model of the nRF51 peripheral. It talks
// to peers through an Ether, which stands in for the 2.4 GHz channel.
type Radio struct {
	mu sync.Mutex

	state   State
	group   byte
	power   byte
	channel byte

	ring        [MaxPackets]packetSlot
	producer    int
	consumer    int
	queuedCount int

	deviceID  uint32
	startedAt time.Time

	ether   *Ether
	current decodedMessage
}

type decodedMessage struct {
	msgType          string
	receivedInteger  int32
	receivedString   mem.Object
	signalStrength   int32
}

// New creates a radio endpoint with the given firmware-information device
// ID (spec §4.5 "Outbound framing"). It remains Uninitialized until
// Initialize is called, per the lazy-init contract.
func New(deviceID uint32) *Radio {
	return &Radio{state: Uninitialized, deviceID: deviceID}
}

// Initialize performs the lazy first-use setup: defaults group=0,
// channel=7, enters Receiving, and joins ether (spec §4.5).
func (r *Radio) Initialize(ether *Ether) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Uninitialized {
		return
	}
	r.group = 0
	r.channel = 7
	r.power = 0
	r.startedAt = time.Now()
	r.ether = ether
	r.state = Receiving
	ether.join(r)
}

// deliver is the simulated ISR entry point: the ether calls this directly
// (standing in for the hardware END event) with a frame tuned to this
// radio's group/channel. It applies the saturate-and-drop-newest overflow
// policy from spec §4.5 "Ordering".
func (r *Radio) deliver(raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Disabled {
		return
	}

	good := checkCRC(raw)
	if r.queuedCount >= MaxPackets {
		// ISR contract: refuse to advance receivedPacketCount past
		// MaxPackets; the arrival is dropped (spec §4.5 "Ordering").
		return
	}

	slot := &r.ring[r.producer]
	slot.n = copy(slot.data[:], raw)
	slot.good = good
	if good {
		slot.rssi = -negotiatedRSSI()
	} else {
		slot.rssi = 0
	}

	r.producer = (r.producer + 1) % MaxPackets
	r.queuedCount++
}

// negotiatedRSSI stands in for a hardware RSSI sample; real hardware
// returns a negative dBm reading, so the ISR negates it into
// radioSignalStrength (spec §4.5). We return a small fixed magnitude since
// there's no real antenna to sample.
func negotiatedRSSI() int32 {
	return 42
}

func checkCRC(raw []byte) bool {
	if len(raw) < 2 {
		return false
	}
	payload, want := raw[:len(raw)-2], raw[len(raw)-2:]
	got := crc.CalculateCRC(crc16Table, payload)
	return byte(got) == want[0] && byte(got>>8) == want[1]
}

func appendCRC(payload []byte) []byte {
	sum := crc.CalculateCRC(crc16Table, payload)
	return append(payload, byte(sum), byte(sum>>8))
}

// SetGroup sets the group prefix 0..255; applies without a state change
// (spec §4.5).
func (r *Radio) SetGroup(g byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.group = g
}

// SetPower sets the TX power level 0..7; applies without a state change.
func (r *Radio) SetPower(p byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p > 7 {
		p = 7
	}
	r.power = p
}

// SetChannel sets the 2.4 GHz channel 0..83. Changing it requires the
// Receiving->Disabled->Receiving transition (spec §4.5).
func (r *Radio) SetChannel(ch byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch > 83 {
		ch = 83
	}
	r.state = Disabled
	r.channel = ch
	r.state = Receiving
}

// State reports the current lifecycle state.
func (r *Radio) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// sendPacket is the synchronous transmit path: disable the receiver, push
// the payload onto the ether, and return to Receiving (spec §4.5).
func (r *Radio) sendPacket(payload []byte) {
	r.mu.Lock()
	group, channel, ether := r.group, r.channel, r.ether
	r.state = Transmitting
	r.mu.Unlock()

	framed := appendCRC(payload)
	ether.transmit(r, group, channel, framed)

	r.mu.Lock()
	r.state = Receiving
	r.mu.Unlock()
}

// MessageReceived dequeues the oldest ring slot (if any), decodes it as a
// MakeCode frame, and reports whether one was available (spec §4.5, §8 S5).
func (r *Radio) MessageReceived() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.queuedCount == 0 {
		return false
	}
	slot := r.ring[r.consumer]
	r.consumer = (r.consumer + 1) % MaxPackets
	r.queuedCount--

	if !slot.good {
		r.current = decodedMessage{signalStrength: 0}
		return false
	}

	payload := slot.data[:slot.n-crcTrailerSize]
	msg, ok := decodeMakeCodeFrame(payload)
	if !ok {
		return false
	}
	msg.signalStrength = slot.rssi
	r.current = msg
	return true
}

// ReceivedMessageType returns "integer", "pair", "string", "double",
// "doublePair", or "" if nothing has been received yet.
func (r *Radio) ReceivedMessageType() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.msgType
}

// ReceivedInteger returns the last decoded integer payload (Integer,
// Pair, or rounded Double/DoublePair types).
func (r *Radio) ReceivedInteger() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.receivedInteger
}

// ReceivedStringObject returns the last decoded string payload as a
// statically allocated string object living outside the bump arena
// (spec §4.5, §9 "statically allocated objects"). Binding this into a
// heap Value for the interpreter to push is the dispatch loop's job
// (§4.8); the object decodes via prim.StringBytes exactly like an
// arena-backed string, since decoding depends only on Class and Data.
func (r *Radio) ReceivedStringObject() mem.Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.receivedString
}

// ReceivedStringText is a host-side convenience for reading the decoded
// string directly as a Go string.
func (r *Radio) ReceivedStringText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(prim.StringBytes(r.current.receivedString))
}

// SignalStrength returns the RSSI (negated, so a live reading is negative)
// of the most recently received packet, or 0 if none has arrived.
func (r *Radio) SignalStrength() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.signalStrength
}

// Close disables the radio so the ether stops delivering to it.
func (r *Radio) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Disabled
}
