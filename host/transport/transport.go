// Package transport is a minimal serial writer for the MCU command batches
// stepcompress/steppersync produce. It is deliberately not a full duplex
// Klipper-protocol driver: response decoding, dictionary retrieval, and the
// length/seq/crc wire framing are all out of scope for this motion core and
// are left to whatever host process owns the actual MCU link. Adapted from
// the teacher's host/serial package, trimmed to the one thing a motion core
// needs: a place to write an already-encoded command batch.
package transport

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// Config holds the serial port parameters for the MCU link.
type Config struct {
	Device string
	Baud   int

	// ReadTimeout is in milliseconds; 0 means blocking reads.
	ReadTimeout int
}

// DefaultConfig returns Klipper's conventional USB-CDC serial settings.
func DefaultConfig(device string) *Config {
	return &Config{Device: device, Baud: 250000, ReadTimeout: 100}
}

// Writer is an open serial link a pipeline's flushed MCU command batch can
// be written to.
type Writer struct {
	port *serial.Port
}

// Open opens the serial device described by cfg.
func Open(cfg *Config) (*Writer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("transport: config cannot be nil")
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Device, err)
	}
	return &Writer{port: port}, nil
}

// WriteBatch writes a batch's messages to the serial link in order, each as
// its raw encoded payload with no additional framing.
func (w *Writer) WriteBatch(batch [][]byte) error {
	for _, data := range batch {
		if _, err := w.port.Write(data); err != nil {
			return fmt.Errorf("transport: write: %w", err)
		}
	}
	return nil
}

// Close closes the underlying serial port.
func (w *Writer) Close() error {
	return w.port.Close()
}
