// Package tcp implements TCP segment framing per RFC 9293 and its TLV
// option encoding, enough to build and parse segments by hand without a
// kernel TCP stack.
package tcp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const sizeHeader = 20

// Flags holds the 9 control bits of the TCP header.
type Flags uint16

const (
	FlagFIN Flags = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
	FlagECE
	FlagCWR
	FlagNS
)

// Mask clears any bits outside the 9 defined control bits.
func (f Flags) Mask() Flags { return f & 0x1ff }

func (f Flags) String() string {
	var b []byte
	add := func(set bool, c byte) {
		if set {
			b = append(b, c)
		}
	}
	add(f&FlagSYN != 0, 'S')
	add(f&FlagACK != 0, 'A')
	add(f&FlagFIN != 0, 'F')
	add(f&FlagRST != 0, 'R')
	add(f&FlagPSH != 0, 'P')
	if len(b) == 0 {
		return "(none)"
	}
	return string(b)
}

var (
	errShortBuf = errors.New("tcp: short buffer")
	errBadOff   = errors.New("tcp: bad data offset")
	errShort    = errors.New("tcp: buffer shorter than data offset")
)

// NewFrame wraps buf as a Frame. buf must be at least 20 bytes.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeader {
		return Frame{}, errShortBuf
	}
	return Frame{buf: buf}, nil
}

// Frame is a thin accessor over a TCP segment. See RFC 9293.
type Frame struct {
	buf []byte
}

// RawData returns the underlying buffer the frame was created with.
func (tfrm Frame) RawData() []byte { return tfrm.buf }

func (tfrm Frame) SourcePort() uint16 { return binary.BigEndian.Uint16(tfrm.buf[0:2]) }
func (tfrm Frame) SetSourcePort(p uint16) {
	binary.BigEndian.PutUint16(tfrm.buf[0:2], p)
}
func (tfrm Frame) DestinationPort() uint16 { return binary.BigEndian.Uint16(tfrm.buf[2:4]) }
func (tfrm Frame) SetDestinationPort(p uint16) {
	binary.BigEndian.PutUint16(tfrm.buf[2:4], p)
}
func (tfrm Frame) Seq() uint32 { return binary.BigEndian.Uint32(tfrm.buf[4:8]) }
func (tfrm Frame) SetSeq(v uint32) {
	binary.BigEndian.PutUint32(tfrm.buf[4:8], v)
}
func (tfrm Frame) Ack() uint32 { return binary.BigEndian.Uint32(tfrm.buf[8:12]) }
func (tfrm Frame) SetAck(v uint32) {
	binary.BigEndian.PutUint32(tfrm.buf[8:12], v)
}

// OffsetAndFlags returns the data offset (in 32-bit words) and control flags.
func (tfrm Frame) OffsetAndFlags() (offset uint8, flags Flags) {
	v := binary.BigEndian.Uint16(tfrm.buf[12:14])
	return uint8(v >> 12), Flags(v).Mask()
}

// SetOffsetAndFlags sets the data offset (in 32-bit words) and control flags.
func (tfrm Frame) SetOffsetAndFlags(offset uint8, flags Flags) {
	v := uint16(offset)<<12 | uint16(flags.Mask())
	binary.BigEndian.PutUint16(tfrm.buf[12:14], v)
}

// HeaderLength returns the data-offset-derived header length in bytes,
// options included. Performs no validation.
func (tfrm Frame) HeaderLength() int {
	offset, _ := tfrm.OffsetAndFlags()
	return 4 * int(offset)
}

func (tfrm Frame) WindowSize() uint16 { return binary.BigEndian.Uint16(tfrm.buf[14:16]) }
func (tfrm Frame) SetWindowSize(w uint16) {
	binary.BigEndian.PutUint16(tfrm.buf[14:16], w)
}
func (tfrm Frame) CRC() uint16 { return binary.BigEndian.Uint16(tfrm.buf[16:18]) }
func (tfrm Frame) SetCRC(cs uint16) {
	binary.BigEndian.PutUint16(tfrm.buf[16:18], cs)
}
func (tfrm Frame) UrgentPtr() uint16 { return binary.BigEndian.Uint16(tfrm.buf[18:20]) }
func (tfrm Frame) SetUrgentPtr(up uint16) {
	binary.BigEndian.PutUint16(tfrm.buf[18:20], up)
}

// Payload returns the segment data, excluding TCP options.
func (tfrm Frame) Payload() []byte {
	return tfrm.buf[tfrm.HeaderLength():]
}

// Options returns the TLV-encoded options section. May be zero length.
func (tfrm Frame) Options() []byte {
	return tfrm.buf[sizeHeader:tfrm.HeaderLength()]
}

// ClearHeader zeros the fixed 20-byte header.
func (tfrm Frame) ClearHeader() {
	for i := range tfrm.buf[:sizeHeader] {
		tfrm.buf[i] = 0
	}
}

// ValidateSize returns a non-nil error if the header's data offset is
// inconsistent with RFC 9293's minimum or the underlying buffer.
func (tfrm Frame) ValidateSize() error {
	off := tfrm.HeaderLength()
	if off < sizeHeader {
		return errBadOff
	}
	if off > len(tfrm.buf) {
		return errShort
	}
	return nil
}

func (tfrm Frame) String() string {
	_, flags := tfrm.OffsetAndFlags()
	return fmt.Sprintf("TCP :%d -> :%d %s seq=%d ack=%d wnd=%d", tfrm.SourcePort(), tfrm.DestinationPort(), flags, tfrm.Seq(), tfrm.Ack(), tfrm.WindowSize())
}
