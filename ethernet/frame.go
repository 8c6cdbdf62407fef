// Package ethernet implements the thin Ethernet II framing used to wrap
// outbound IPv4 datagrams and unwrap inbound ones.
package ethernet

import (
	"encoding/binary"
	"errors"
	"strconv"
)

const sizeHeaderNoVLAN = 14

// AppendAddr appends the colon-separated hex text of hwAddr to dst.
func AppendAddr(dst []byte, hwAddr [6]byte) []byte {
	for i, b := range hwAddr {
		if i != 0 {
			dst = append(dst, ':')
		}
		if b < 16 {
			dst = append(dst, '0')
		}
		dst = strconv.AppendUint(dst, uint64(b), 16)
	}
	return dst
}

// BroadcastAddr returns the all-ones broadcast hardware address.
func BroadcastAddr() [6]byte {
	return [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

// Type is an EtherType (or, for values <=1500, the 802.3 payload length).
type Type uint16

// IsSize reports whether the field should be interpreted as an 802.3
// payload length rather than an EtherType.
func (et Type) IsSize() bool { return et <= 1500 }

const (
	TypeIPv4 Type = 0x0800
	TypeARP  Type = 0x0806
	TypeIPv6 Type = 0x86DD
	TypeVLAN Type = 0x8100
)

var (
	errShort     = errors.New("ethernet: frame too short")
	errShortVLAN = errors.New("ethernet: short VLAN tag")
)

// NewFrame wraps buf as a Frame. buf must be at least 14 bytes.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeaderNoVLAN {
		return Frame{}, errShort
	}
	return Frame{buf: buf}, nil
}

// Frame is a thin accessor over an Ethernet II frame, preamble excluded
// (the first byte is the destination address).
type Frame struct {
	buf []byte
}

// RawData returns the underlying buffer the frame was created with.
func (efrm Frame) RawData() []byte { return efrm.buf }

// HeaderLength returns 14, or 18 for a VLAN-tagged frame.
func (efrm Frame) HeaderLength() int {
	if efrm.IsVLAN() {
		return 18
	}
	return sizeHeaderNoVLAN
}

// Payload returns the frame's data, with correct handling of 802.3 length
// fields versus EtherType fields.
func (efrm Frame) Payload() []byte {
	hl := efrm.HeaderLength()
	et := efrm.EtherTypeOrSize()
	if et.IsSize() {
		return efrm.buf[hl : hl+int(et)]
	}
	return efrm.buf[hl:]
}

// DestinationHardwareAddr returns the frame's target MAC address.
func (efrm Frame) DestinationHardwareAddr() *[6]byte { return (*[6]byte)(efrm.buf[0:6]) }

// SourceHardwareAddr returns the frame's sender MAC address.
func (efrm Frame) SourceHardwareAddr() *[6]byte { return (*[6]byte)(efrm.buf[6:12]) }

// IsBroadcast reports whether the destination address is ff:ff:ff:ff:ff:ff.
func (efrm Frame) IsBroadcast() bool {
	d := efrm.DestinationHardwareAddr()
	return *d == BroadcastAddr()
}

// EtherTypeOrSize returns the raw value of the type/length field.
func (efrm Frame) EtherTypeOrSize() Type {
	return Type(binary.BigEndian.Uint16(efrm.buf[12:14]))
}

// SetEtherType sets the type/length field.
func (efrm Frame) SetEtherType(v Type) {
	binary.BigEndian.PutUint16(efrm.buf[12:14], uint16(v))
}

// IsVLAN reports whether the type field is the 802.1Q tag marker.
func (efrm Frame) IsVLAN() bool { return efrm.EtherTypeOrSize() == TypeVLAN }

// ClearHeader zeros the fixed (non-VLAN, non-payload) header bytes.
func (efrm Frame) ClearHeader() {
	for i := range efrm.buf[:sizeHeaderNoVLAN] {
		efrm.buf[i] = 0
	}
}

// ValidateSize returns a non-nil error if efrm's declared length fields
// are inconsistent with the size of the underlying buffer.
func (efrm Frame) ValidateSize() error {
	sz := efrm.EtherTypeOrSize()
	if sz.IsSize() && len(efrm.buf) < sizeHeaderNoVLAN+int(sz) {
		return errShort
	}
	if sz == TypeVLAN && len(efrm.buf) < 18 {
		return errShortVLAN
	}
	return nil
}
