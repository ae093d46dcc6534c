package protocol

import "encoding/binary"

// Telemetry record layout: the 16-bit tag 0xDEAD followed by seven signed
// 16-bit fields, all little-endian.
const (
	TelemetrySync   = 0xDEAD
	TelemetryFields = 7
	TelemetrySize   = 2 + 2*TelemetryFields

	telemetrySyncLo = byte(TelemetrySync & 0xFF)
	telemetrySyncHi = byte(TelemetrySync >> 8)
)

// Telemetry is one control cycle's diagnostic record: raw gyro readings
// before zero removal and raw stick widths, in wire order.
type Telemetry struct {
	PitchGyro int16 `json:"pitch_gyro"`
	YawGyro   int16 `json:"yaw_gyro"`
	RollGyro  int16 `json:"roll_gyro"`
	Pitch     int16 `json:"pitch"`
	Yaw       int16 `json:"yaw"`
	Roll      int16 `json:"roll"`
	Throttle  int16 `json:"throttle"`
}

// Fields returns the record values in wire order
func (t Telemetry) Fields() [TelemetryFields]int16 {
	return [TelemetryFields]int16{
		t.PitchGyro, t.YawGyro, t.RollGyro,
		t.Pitch, t.Yaw, t.Roll, t.Throttle,
	}
}

// EncodeTelemetry writes one tagged record to output
func EncodeTelemetry(output OutputBuffer, t Telemetry) {
	var buf [TelemetrySize]byte
	binary.LittleEndian.PutUint16(buf[0:], TelemetrySync)
	for i, v := range t.Fields() {
		binary.LittleEndian.PutUint16(buf[2+2*i:], uint16(v))
	}
	output.Output(buf[:])
}

func decodeTelemetry(b []byte) Telemetry {
	field := func(i int) int16 {
		return int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return Telemetry{
		PitchGyro: field(0),
		YawGyro:   field(1),
		RollGyro:  field(2),
		Pitch:     field(3),
		Yaw:       field(4),
		Roll:      field(5),
		Throttle:  field(6),
	}
}

// TelemetryDecoder extracts records from a byte stream, resynchronising on
// the tag after noise or a dropped byte.
type TelemetryDecoder struct {
	// Skipped counts bytes discarded while hunting for a tag
	Skipped uint64
}

// Decode consumes every complete record available in input. A trailing
// partial record, or a lone first tag byte, is left for the next call.
func (d *TelemetryDecoder) Decode(input InputBuffer) []Telemetry {
	data := input.Data()
	var records []Telemetry
	pos := 0

	for pos < len(data) {
		sync := -1
		for i := pos; i+1 < len(data); i++ {
			if data[i] == telemetrySyncLo && data[i+1] == telemetrySyncHi {
				sync = i
				break
			}
		}
		if sync < 0 {
			keep := len(data)
			if data[len(data)-1] == telemetrySyncLo {
				keep--
			}
			d.Skipped += uint64(keep - pos)
			pos = keep
			break
		}
		d.Skipped += uint64(sync - pos)
		pos = sync

		if len(data)-pos < TelemetrySize {
			break
		}
		records = append(records, decodeTelemetry(data[pos+2:pos+TelemetrySize]))
		pos += TelemetrySize
	}

	input.Pop(pos)
	return records
}
