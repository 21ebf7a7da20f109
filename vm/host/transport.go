package host

import (
	"io"
	"path/filepath"
	"sort"

	"github.com/tarm/serial"
)

// Transport is anything the host can frame wire messages over: a real
// serial port, or an in-memory pipe for tests and single-process
// host+device wiring (spec §6, SPEC_FULL §6 "io.Pipe-backed transport").
type Transport interface {
	io.ReadWriteCloser
}

// OpenSerial opens a real serial port at cfg's baud rate (spec §6 "115200
// 8N1"), grounded in github.com/tarm/serial the way
// other_examples/manifests/nasa-jpl-golaborate opens an instrument link
// over a point-to-point serial connection.
func OpenSerial(cfg Config) (Transport, error) {
	return serial.OpenPort(&serial.Config{Name: cfg.Port, Baud: cfg.Baud})
}

// portGlobs are the device-path patterns a micro:bit-class board typically
// enumerates under on Linux and macOS. tarm/serial has no portable port
// listing API, so EnumeratePorts falls back to globbing these well-known
// patterns rather than a hand-rolled device-bus scan (see DESIGN.md for why
// no third-party enumeration library from the pack could serve this).
var portGlobs = []string{
	"/dev/ttyACM*",
	"/dev/ttyUSB*",
	"/dev/cu.usbmodem*",
}

// EnumeratePorts lists candidate serial device paths (spec §4.7 "serial
// port enumeration").
func EnumeratePorts() []string {
	var out []string
	for _, pattern := range portGlobs {
		matches, _ := filepath.Glob(pattern)
		out = append(out, matches...)
	}
	sort.Strings(out)
	return out
}
