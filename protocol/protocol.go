// Package protocol implements the flyer telemetry wire format and the byte
// buffers shared by the firmware and the host tools.
package protocol

// Version represents the flyer firmware version
const Version = "0.1.0"

// MessageMax is the size of a scratch output buffer; one telemetry record
// plus headroom for a debug line.
const MessageMax = 64
