// Command blockhost is the host-side CLI counterpart to blockdevice: it
// wraps vm/host.Host in a handful of cobra subcommands for driving a board
// from a terminal (spec §4.7).
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"blockvm/vm/host"
	"blockvm/vm/wire"
)

var (
	portFlag string
	baudFlag int
)

func newHost() (*host.Host, *zap.Logger) {
	log, err := zap.NewProduction()
	if err != nil {
		log = zap.NewNop()
	}
	cfg := host.DefaultConfig()
	if portFlag != "" {
		cfg.Port = portFlag
	}
	if baudFlag != 0 {
		cfg.Baud = baudFlag
	}
	return host.New(cfg, log.Sugar()), log
}

func main() {
	root := &cobra.Command{
		Use:   "blockhost",
		Short: "Drive a blockvm device over serial",
	}
	root.PersistentFlags().StringVar(&portFlag, "port", "", "serial port device path")
	root.PersistentFlags().IntVar(&baudFlag, "baud", 0, "serial baud rate override")

	root.AddCommand(portsCmd(), uploadCmd(), startCmd(), stopCmd(), pingCmd())

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List candidate serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range host.EnumeratePorts() {
				fmt.Println(p)
			}
			return nil
		},
	}
}

func uploadCmd() *cobra.Command {
	var chunkType int
	var isExpression bool
	var blockKey string
	cmd := &cobra.Command{
		Use:   "upload <hex-bytes>",
		Short: "Upload a chunk's code and print the assigned chunk id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := hexDecode(args[0])
			if err != nil {
				return err
			}
			h, log := newHost()
			defer log.Sync()
			if err := h.OpenSerial(); err != nil {
				return err
			}
			defer h.Close()

			id, err := h.Upload(blockKey, wire.ChunkType(chunkType), isExpression, code)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	cmd.Flags().IntVar(&chunkType, "type", int(wire.ChunkCommand), "chunk type (1=command .. 6=whenBroadcastReceived)")
	cmd.Flags().BoolVar(&isExpression, "expression", false, "treat this chunk as a reporter expression")
	cmd.Flags().StringVar(&blockKey, "block", "", "stable key identifying the source block")
	return cmd
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <chunk-id>",
		Short: "Start a previously uploaded chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			h, log := newHost()
			defer log.Sync()
			if err := h.OpenSerial(); err != nil {
				return err
			}
			defer h.Close()
			return h.Start(byte(id))
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <chunk-id>",
		Short: "Stop a running chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			h, log := newHost()
			defer log.Sync()
			if err := h.OpenSerial(); err != nil {
				return err
			}
			defer h.Close()
			return h.Stop(byte(id))
		},
	}
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Report the current connection status",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, log := newHost()
			defer log.Sync()
			if err := h.OpenSerial(); err != nil {
				return err
			}
			defer h.Close()
			fmt.Println(h.ConnectionStatus())
			return nil
		},
	}
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even length")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		b, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(b)
	}
	return out, nil
}
