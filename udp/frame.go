// Package udp implements UDP datagram framing per RFC 768.
package udp

import (
	"encoding/binary"
	"errors"

	"github.com/soypat/badscan/internal/crc"
	"github.com/soypat/badscan/ipv4"
)

const sizeHeader = 8

var (
	errShortBuf = errors.New("udp: short buffer")
	errBadLen   = errors.New("udp: bad length field")
	errShort    = errors.New("udp: buffer shorter than length field")
)

// NewFrame wraps buf as a Frame. buf must be at least 8 bytes.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeader {
		return Frame{}, errShortBuf
	}
	return Frame{buf: buf}, nil
}

// Frame is a thin accessor over a UDP datagram. See RFC 768.
type Frame struct {
	buf []byte
}

// RawData returns the underlying buffer the frame was created with.
func (ufrm Frame) RawData() []byte { return ufrm.buf }

func (ufrm Frame) SourcePort() uint16 { return binary.BigEndian.Uint16(ufrm.buf[0:2]) }
func (ufrm Frame) SetSourcePort(p uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[0:2], p)
}
func (ufrm Frame) DestinationPort() uint16 { return binary.BigEndian.Uint16(ufrm.buf[2:4]) }
func (ufrm Frame) SetDestinationPort(p uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[2:4], p)
}
func (ufrm Frame) Length() uint16 { return binary.BigEndian.Uint16(ufrm.buf[4:6]) }
func (ufrm Frame) SetLength(l uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[4:6], l)
}
func (ufrm Frame) CRC() uint16 { return binary.BigEndian.Uint16(ufrm.buf[6:8]) }
func (ufrm Frame) SetCRC(cs uint16) {
	binary.BigEndian.PutUint16(ufrm.buf[6:8], cs)
}

// Payload returns the UDP payload, bounded by the Length field.
func (ufrm Frame) Payload() []byte {
	l := ufrm.Length()
	return ufrm.buf[sizeHeader:l]
}

// ClearHeader zeros the fixed 8-byte header.
func (ufrm Frame) ClearHeader() {
	for i := range ufrm.buf[:sizeHeader] {
		ufrm.buf[i] = 0
	}
}

// ValidateSize returns a non-nil error if the Length field is inconsistent
// with RFC 768's minimum or with the underlying buffer.
func (ufrm Frame) ValidateSize() error {
	l := ufrm.Length()
	if l < sizeHeader {
		return errBadLen
	}
	if int(l) > len(ufrm.buf) {
		return errShort
	}
	return nil
}

// CalculateIPv4Checksum computes the UDP checksum over the pseudo-header
// derived from ifrm plus this datagram's header and payload.
func (ufrm Frame) CalculateIPv4Checksum(ifrm ipv4.Frame) uint16 {
	var c crc.CRC791
	ifrm.CRCWriteUDPPseudo(&c)
	c.AddUint16(ufrm.Length()) // pseudo-header length contribution; CRCWriteUDPPseudo omits it.
	c.AddUint16(ufrm.SourcePort())
	c.AddUint16(ufrm.DestinationPort())
	c.AddUint16(ufrm.Length()) // the UDP header's own length field.
	return crc.NeverZero(c.PayloadSum16(ufrm.Payload()))
}
