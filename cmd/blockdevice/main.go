// Command blockdevice runs the device side of the wire protocol against a
// real serial port: it opens the port, builds a device.Device, and pumps
// frames in a read/dispatch/write loop (spec §4.8, §6).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tarm/serial"

	"blockvm/vm/device"
	"blockvm/vm/radio"
	"blockvm/vm/wire"
)

func main() {
	port := flag.String("port", "", "serial port device path, e.g. /dev/ttyACM0")
	baud := flag.Int("baud", 115200, "serial baud rate")
	arenaWords := flag.Uint("arena-words", 4096, "heap arena size in 32-bit words")
	deviceID := flag.Uint("radio-device-id", 1, "this device's radio identity")
	flag.Parse()

	if *port == "" {
		fmt.Println("Usage: blockdevice -port <device path> [-baud 115200] [-arena-words 4096]")
		os.Exit(1)
	}

	sp, err := serial.OpenPort(&serial.Config{Name: *port, Baud: *baud})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer sp.Close()

	dev := device.New(uint32(*arenaWords), radio.New(uint32(*deviceID)))

	var reader wire.Reader
	buf := make([]byte, 256)
	for {
		n, err := sp.Read(buf)
		if err != nil {
			fmt.Println(err)
			return
		}
		reader.Feed(buf[:n])
		for {
			msg, ok := reader.Next()
			if !ok {
				break
			}
			for _, reply := range dev.Handle(msg) {
				if _, err := sp.Write(wire.Encode(reply)); err != nil {
					fmt.Println(err)
					return
				}
			}
		}
	}
}
