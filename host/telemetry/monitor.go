package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"flyer/host/serial"
	"flyer/protocol"
)

// Sink receives every decoded telemetry record
type Sink interface {
	Write(rec protocol.Telemetry) error
	Close() error
}

// Stats counts what the monitor has seen on the link
type Stats struct {
	Bytes   uint64
	Records uint64
	Skipped uint64 // Noise bytes discarded while resynchronising
}

// Monitor reads the flight controller's telemetry stream, decodes records and
// fans them out to sinks.
type Monitor struct {
	// Source of raw bytes
	source io.ReadCloser

	// Stream decoding
	fifo    *protocol.FifoBuffer
	decoder protocol.TelemetryDecoder

	sinks []Sink
	log   zerolog.Logger

	// StopOnEOF ends Run at end of input (replaying a capture file).
	// A serial port with a read timeout reports EOF on every quiet interval.
	StopOnEOF bool

	bytes   uint64
	records uint64
	skipped uint64

	// Connection state
	connected bool
}

// NewMonitor creates a monitor reading from source
func NewMonitor(source io.ReadCloser, log zerolog.Logger) *Monitor {
	return &Monitor{
		source:    source,
		fifo:      protocol.NewFifoBuffer(4 * protocol.TelemetrySize * 16),
		log:       log,
		connected: source != nil,
	}
}

// Connect opens the telemetry serial port and returns a monitor reading it
func Connect(cfg *serial.Config, log zerolog.Logger) (*Monitor, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry port: %w", err)
	}
	if err := port.Flush(); err != nil {
		log.Warn().Err(err).Msg("Could not flush telemetry port")
	}
	log.Info().Str("device", cfg.Device).Int("baud", cfg.Baud).Msg("Telemetry port open")
	return NewMonitor(port, log), nil
}

// AddSink registers a sink; records are delivered to sinks in order
func (m *Monitor) AddSink(s Sink) {
	m.sinks = append(m.sinks, s)
}

// Run reads and decodes until ctx is cancelled or the source fails.
// A sink error is logged and does not stop the monitor.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.connected {
		return fmt.Errorf("telemetry source not connected")
	}

	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := m.source.Read(buf)
		if n > 0 {
			m.feed(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if m.StopOnEOF {
					return nil
				}
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("telemetry read failed: %w", err)
		}
	}
}

// feed pushes raw bytes through the decoder. Bytes beyond the FIFO's free
// space are decoded in further passes so nothing is dropped.
func (m *Monitor) feed(data []byte) {
	atomic.AddUint64(&m.bytes, uint64(len(data)))
	for len(data) > 0 {
		n := m.fifo.Write(data)
		data = data[n:]
		for _, rec := range m.decoder.Decode(m.fifo) {
			atomic.AddUint64(&m.records, 1)
			m.dispatch(rec)
		}
		if n == 0 && m.fifo.Free() == 0 {
			// Full of undecodable bytes; a tag never spans this much
			m.fifo.Pop(m.fifo.Available())
		}
	}
	atomic.StoreUint64(&m.skipped, m.decoder.Skipped)
}

func (m *Monitor) dispatch(rec protocol.Telemetry) {
	for _, s := range m.sinks {
		if err := s.Write(rec); err != nil {
			m.log.Warn().Err(err).Msg("Telemetry sink write failed")
		}
	}
}

// Stats returns link counters
func (m *Monitor) Stats() Stats {
	return Stats{
		Bytes:   atomic.LoadUint64(&m.bytes),
		Records: atomic.LoadUint64(&m.records),
		Skipped: atomic.LoadUint64(&m.skipped),
	}
}

// ReportEvery logs link counters at the given interval until ctx ends
func (m *Monitor) ReportEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := m.Stats()
			m.log.Info().
				Uint64("bytes", s.Bytes).
				Uint64("records", s.Records).
				Uint64("skipped", s.Skipped).
				Msg("Telemetry link")
		}
	}
}

// Close closes the source and every sink
func (m *Monitor) Close() error {
	var firstErr error
	if m.source != nil {
		if err := m.source.Close(); err != nil {
			firstErr = err
		}
	}
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.connected = false
	return firstErr
}

// IsConnected returns whether the monitor has an open source
func (m *Monitor) IsConnected() bool {
	return m.connected
}
