package telemetry

import (
	"bufio"
	"io"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"flyer/protocol"
)

// LogSink writes records to a zerolog logger. Every record is logged at
// debug level; one in Every is promoted to info.
type LogSink struct {
	log   zerolog.Logger
	Every uint64

	n uint64
}

// NewLogSink creates a log sink promoting one record in every
func NewLogSink(log zerolog.Logger, every uint64) *LogSink {
	return &LogSink{log: log, Every: every}
}

func (s *LogSink) Write(rec protocol.Telemetry) error {
	s.n++
	level := zerolog.DebugLevel
	if s.Every > 0 && s.n%s.Every == 0 {
		level = zerolog.InfoLevel
	}
	s.log.WithLevel(level).
		Int16("pitch_gyro", rec.PitchGyro).
		Int16("yaw_gyro", rec.YawGyro).
		Int16("roll_gyro", rec.RollGyro).
		Int16("pitch", rec.Pitch).
		Int16("yaw", rec.Yaw).
		Int16("roll", rec.Roll).
		Int16("throttle", rec.Throttle).
		Msg("Telemetry")
	return nil
}

func (s *LogSink) Close() error {
	return nil
}

// CSVHeader names the CSV columns in wire order
const CSVHeader = "pitch_gyro,yaw_gyro,roll_gyro,pitch,yaw,roll,throttle"

// CSVSink writes one comma-separated line per record
type CSVSink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	line   []byte
}

// NewCSVSink writes a header line, then records, to w.
// If w is an io.Closer it is closed with the sink.
func NewCSVSink(w io.Writer, header bool) (*CSVSink, error) {
	s := &CSVSink{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	if header {
		if _, err := s.w.WriteString(CSVHeader + "\n"); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *CSVSink) Write(rec protocol.Telemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.line = s.line[:0]
	for i, v := range rec.Fields() {
		if i > 0 {
			s.line = append(s.line, ',')
		}
		s.line = strconv.AppendInt(s.line, int64(v), 10)
	}
	s.line = append(s.line, '\n')
	_, err := s.w.Write(s.line)
	return err
}

// Flush pushes buffered lines to the underlying writer
func (s *CSVSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

func (s *CSVSink) Close() error {
	err := s.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
