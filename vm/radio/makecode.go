package radio

import (
	"encoding/binary"
	"math"
	"time"

	"blockvm/vm/mem"
	"blockvm/vm/value"
)

// MakeCode frame type bytes (spec §4.5 table).
const (
	typeInteger    = 0
	typePair       = 1
	typeString     = 2
	typeDouble     = 4
	typeDoublePair = 5
)

// maxStaticStringBytes caps extracted strings at 19 bytes plus the NUL
// terminator (spec §4.5 "Extracted strings are capped at 19 bytes").
const maxStaticStringBytes = 19

// protocolByte/versionByte identify a MakeCode-compatible frame.
const (
	protocolByte = 1
	versionByte  = 1
)

// isMakeCodeFrame reports whether raw (the on-air payload, CRC already
// stripped) parses as a MakeCode frame per spec §4.5.
func isMakeCodeFrame(raw []byte) bool {
	return len(raw) >= 12 && raw[1] == protocolByte && raw[3] == versionByte
}

func decodeMakeCodeFrame(raw []byte) (decodedMessage, bool) {
	if !isMakeCodeFrame(raw) {
		return decodedMessage{}, false
	}

	switch raw[4] {
	case typeInteger:
		if len(raw) < 17 {
			return decodedMessage{}, false
		}
		return decodedMessage{
			msgType:         "integer",
			receivedInteger: int32(binary.LittleEndian.Uint32(raw[13:17])),
		}, true

	case typePair:
		if len(raw) < 18 {
			return decodedMessage{}, false
		}
		return decodedMessage{
			msgType:         "pair",
			receivedInteger: int32(binary.LittleEndian.Uint32(raw[13:17])),
			receivedString:  newStaticString(extractString(raw, 17, 18)),
		}, true

	case typeString:
		if len(raw) < 14 {
			return decodedMessage{}, false
		}
		return decodedMessage{
			msgType:        "string",
			receivedString: newStaticString(extractString(raw, 13, 14)),
		}, true

	case typeDouble:
		if len(raw) < 21 {
			return decodedMessage{}, false
		}
		d := math.Float64frombits(binary.LittleEndian.Uint64(raw[13:21]))
		return decodedMessage{
			msgType:         "double",
			receivedInteger: int32(math.Round(d)),
		}, true

	case typeDoublePair:
		if len(raw) < 22 {
			return decodedMessage{}, false
		}
		d := math.Float64frombits(binary.LittleEndian.Uint64(raw[13:21]))
		return decodedMessage{
			msgType:         "doublePair",
			receivedInteger: int32(math.Round(d)),
			receivedString:  newStaticString(extractString(raw, 21, 22)),
		}, true

	default:
		return decodedMessage{}, false
	}
}

// extractString reads a length-prefixed string starting at lenOffset (the
// length byte) with its bytes at bytesOffset, capping extraction at
// maxStaticStringBytes regardless of what the length byte claims — a guard
// against a malformed or adversarial length field, per spec §4.5 "Extracted
// strings are capped at 19 bytes".
func extractString(raw []byte, lenOffset, bytesOffset int) string {
	n := int(raw[lenOffset])
	if n > maxStaticStringBytes {
		n = maxStaticStringBytes
	}
	end := bytesOffset + n
	if end > len(raw) {
		end = len(raw)
	}
	if end < bytesOffset {
		return ""
	}
	return string(raw[bytesOffset:end])
}

// initMakeCodePacket builds the common outbound header: length, protocol,
// group, version, type, a 4-byte LE timestamp, and a 4-byte LE device ID
// (spec §4.5 "Outbound framing"). The source's initMakeCodePacket returns
// an unused int; this returns only the buffer (spec §9).
func (r *Radio) initMakeCodePacket(msgType byte, bodyLen int) []byte {
	r.mu.Lock()
	group := r.group
	elapsedMs := uint32(time.Since(r.startedAt).Milliseconds())
	deviceID := r.deviceID
	r.mu.Unlock()

	total := 13 + bodyLen
	buf := make([]byte, total)
	buf[0] = byte(total)
	buf[1] = protocolByte
	buf[2] = group
	buf[3] = versionByte
	buf[4] = msgType
	binary.LittleEndian.PutUint32(buf[5:9], elapsedMs)
	binary.LittleEndian.PutUint32(buf[9:13], deviceID)
	return buf
}

// SendInteger transmits a MakeCode Integer frame.
func (r *Radio) SendInteger(n int32) {
	buf := r.initMakeCodePacket(typeInteger, 4)
	binary.LittleEndian.PutUint32(buf[13:17], uint32(n))
	r.sendPacket(buf)
}

// SendString transmits a MakeCode String frame (spec §8 S5).
func (r *Radio) SendString(s string) {
	body := clampToPacket(s, 14)
	buf := r.initMakeCodePacket(typeString, 1+len(body))
	buf[13] = byte(len(body))
	copy(buf[14:], body)
	r.sendPacket(buf)
}

// SendPair transmits a MakeCode Pair (integer + string) frame.
func (r *Radio) SendPair(n int32, s string) {
	body := clampToPacket(s, 18)
	buf := r.initMakeCodePacket(typePair, 5+len(body))
	binary.LittleEndian.PutUint32(buf[13:17], uint32(n))
	buf[17] = byte(len(body))
	copy(buf[18:], body)
	r.sendPacket(buf)
}

// SendDouble transmits a MakeCode Double frame.
func (r *Radio) SendDouble(d float64) {
	buf := r.initMakeCodePacket(typeDouble, 8)
	binary.LittleEndian.PutUint64(buf[13:21], math.Float64bits(d))
	r.sendPacket(buf)
}

// SendDoublePair transmits a MakeCode DoublePair (double + string) frame.
func (r *Radio) SendDoublePair(d float64, s string) {
	body := clampToPacket(s, 22)
	buf := r.initMakeCodePacket(typeDoublePair, 9+len(body))
	binary.LittleEndian.PutUint64(buf[13:21], math.Float64bits(d))
	buf[21] = byte(len(body))
	copy(buf[22:], body)
	r.sendPacket(buf)
}

// clampToPacket truncates s so the outbound frame never exceeds the
// nRF51's 32-byte maximum payload (spec §4.5/§7 "Packet size 32 bytes"),
// given the fixed header-plus-length-byte overhead preceding the string
// bytes for this frame type.
func clampToPacket(s string, overhead int) []byte {
	b := []byte(s)
	if max := PacketSize - overhead; len(b) > max {
		b = b[:max]
	}
	return b
}

// newStaticString builds a ClassStaticString object backed by its own
// word slice rather than an arena allocation, per spec §4.5/§9: the radio's
// receivedString/messageTypeString stay off the bump heap to avoid pressure
// on the allocator from high-frequency packet arrivals. prim.StringBytes
// decodes it identically to an arena-backed string, since decoding only
// depends on Class and Data, not provenance.
func newStaticString(s string) mem.Object {
	raw := append([]byte(s), 0)
	wc := (len(raw) + 3) / 4
	data := make([]int32, wc)
	for i := range data {
		var u uint32
		for j := 0; j < 4; j++ {
			idx := i*4 + j
			if idx < len(raw) {
				u |= uint32(raw[idx]) << (8 * j)
			}
		}
		data[i] = int32(u)
	}
	return mem.Object{Class: value.ClassStaticString, Data: data}
}
