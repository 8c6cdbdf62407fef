// Package ipv4 implements IPv4 header framing per RFC 791, including the
// pseudo-header checksum contributions used by TCP and UDP.
package ipv4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/soypat/badscan/internal/crc"
)

const sizeHeader = 20

// IPProto is an IP protocol number, as carried in the IPv4 Protocol field.
type IPProto uint8

const (
	IPProtoICMP IPProto = 1
	IPProtoTCP  IPProto = 6
	IPProtoUDP  IPProto = 17
)

func (p IPProto) String() string {
	switch p {
	case IPProtoICMP:
		return "ICMP"
	case IPProtoTCP:
		return "TCP"
	case IPProtoUDP:
		return "UDP"
	default:
		return fmt.Sprintf("proto(%d)", uint8(p))
	}
}

// ToS is the IPv4 Type of Service / DSCP+ECN byte.
type ToS uint8

// Flags holds the 3 flag bits and 13-bit fragment offset of the IPv4 header.
type Flags uint16

// IsEvil reports the reserved/"evil" bit described in RFC 3514.
func (f Flags) IsEvil() bool { return f&0x8000 != 0 }

// DontFragment reports the DF bit.
func (f Flags) DontFragment() bool { return f&0x4000 != 0 }

// MoreFragments reports the MF bit.
func (f Flags) MoreFragments() bool { return f&0x2000 != 0 }

// FragmentOffset returns the 13-bit fragment offset, in units of 8 bytes.
func (f Flags) FragmentOffset() uint16 { return uint16(f) & 0x1fff }

var (
	errShortBuf   = errors.New("ipv4: short buffer")
	errBadTL      = errors.New("ipv4: bad total length")
	errShort      = errors.New("ipv4: buffer shorter than total length")
	errBadIHL     = errors.New("ipv4: bad IHL")
	errBadVersion = errors.New("ipv4: bad version")
)

// NewFrame wraps buf as a Frame. buf must be at least 20 bytes.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeader {
		return Frame{}, errShortBuf
	}
	return Frame{buf: buf}, nil
}

// Frame is a thin accessor over an IPv4 header and payload. See RFC 791.
type Frame struct {
	buf []byte
}

// RawData returns the underlying buffer the frame was created with.
func (ifrm Frame) RawData() []byte { return ifrm.buf }

func (ifrm Frame) ihl() uint8     { return ifrm.buf[0] & 0xf }
func (ifrm Frame) version() uint8 { return ifrm.buf[0] >> 4 }

// HeaderLength returns the IHL-derived header length in bytes, options included.
func (ifrm Frame) HeaderLength() int { return int(ifrm.ihl()) * 4 }

// VersionAndIHL returns the version and IHL nibbles of the first header byte.
func (ifrm Frame) VersionAndIHL() (version, ihl uint8) {
	v := ifrm.buf[0]
	return v >> 4, v & 0xf
}

// SetVersionAndIHL sets the version and IHL nibbles of the first header byte.
func (ifrm Frame) SetVersionAndIHL(version, ihl uint8) { ifrm.buf[0] = version<<4 | ihl&0xf }

func (ifrm Frame) ToS() ToS            { return ToS(ifrm.buf[1]) }
func (ifrm Frame) SetToS(tos ToS)      { ifrm.buf[1] = byte(tos) }
func (ifrm Frame) TotalLength() uint16 { return binary.BigEndian.Uint16(ifrm.buf[2:4]) }
func (ifrm Frame) SetTotalLength(tl uint16) {
	binary.BigEndian.PutUint16(ifrm.buf[2:4], tl)
}
func (ifrm Frame) ID() uint16         { return binary.BigEndian.Uint16(ifrm.buf[4:6]) }
func (ifrm Frame) SetID(id uint16)    { binary.BigEndian.PutUint16(ifrm.buf[4:6], id) }
func (ifrm Frame) Flags() Flags       { return Flags(binary.BigEndian.Uint16(ifrm.buf[6:8])) }
func (ifrm Frame) SetFlags(f Flags)   { binary.BigEndian.PutUint16(ifrm.buf[6:8], uint16(f)) }
func (ifrm Frame) TTL() uint8         { return ifrm.buf[8] }
func (ifrm Frame) SetTTL(ttl uint8)   { ifrm.buf[8] = ttl }
func (ifrm Frame) Protocol() IPProto  { return IPProto(ifrm.buf[9]) }
func (ifrm Frame) SetProtocol(p IPProto) { ifrm.buf[9] = uint8(p) }
func (ifrm Frame) CRC() uint16        { return binary.BigEndian.Uint16(ifrm.buf[10:12]) }
func (ifrm Frame) SetCRC(cs uint16)   { binary.BigEndian.PutUint16(ifrm.buf[10:12], cs) }

// CalculateHeaderCRC computes the IPv4 header checksum over the current
// header contents (the CRC field itself is skipped).
func (ifrm Frame) CalculateHeaderCRC() uint16 {
	var c crc.CRC791
	c.WriteEven(ifrm.buf[0:10])
	c.WriteEven(ifrm.buf[12:20])
	return c.Sum16()
}

// CRCWriteTCPPseudo feeds the TCP pseudo-header fields derived from this
// IPv4 header into c.
func (ifrm Frame) CRCWriteTCPPseudo(c *crc.CRC791) {
	src, dst := ifrm.SourceAddr(), ifrm.DestinationAddr()
	c.WriteEven(src[:])
	c.WriteEven(dst[:])
	c.AddUint16(ifrm.TotalLength() - 4*uint16(ifrm.ihl()))
	c.AddUint16(uint16(ifrm.Protocol()))
}

// CRCWriteUDPPseudo feeds the UDP pseudo-header fields derived from this
// IPv4 header into c.
func (ifrm Frame) CRCWriteUDPPseudo(c *crc.CRC791) {
	src, dst := ifrm.SourceAddr(), ifrm.DestinationAddr()
	c.WriteEven(src[:])
	c.WriteEven(dst[:])
	c.AddUint16(uint16(ifrm.Protocol()))
}

// SourceAddr returns a pointer into the frame's source address bytes.
func (ifrm Frame) SourceAddr() *[4]byte { return (*[4]byte)(ifrm.buf[12:16]) }

// DestinationAddr returns a pointer into the frame's destination address bytes.
func (ifrm Frame) DestinationAddr() *[4]byte { return (*[4]byte)(ifrm.buf[16:20]) }

// Payload returns the IPv4 payload, bounded by TotalLength.
func (ifrm Frame) Payload() []byte {
	off := ifrm.HeaderLength()
	l := ifrm.TotalLength()
	return ifrm.buf[off:l]
}

// Options returns the header's variable-length options section.
func (ifrm Frame) Options() []byte {
	off := ifrm.HeaderLength()
	return ifrm.buf[sizeHeader:off]
}

// ClearHeader zeros the fixed 20-byte header.
func (ifrm Frame) ClearHeader() {
	for i := range ifrm.buf[:sizeHeader] {
		ifrm.buf[i] = 0
	}
}

// ValidateSize returns a non-nil error if the frame's declared lengths are
// inconsistent with the underlying buffer or with RFC 791's minimums.
func (ifrm Frame) ValidateSize() error {
	ihl := ifrm.ihl()
	tl := ifrm.TotalLength()
	if tl < sizeHeader {
		return errBadTL
	}
	if int(tl) > len(ifrm.buf) {
		return errShort
	}
	if ihl < 5 {
		return errBadIHL
	}
	if ifrm.version() != 4 {
		return errBadVersion
	}
	return nil
}

func (ifrm Frame) String() string {
	dst := netip.AddrFrom4(*ifrm.DestinationAddr())
	src := netip.AddrFrom4(*ifrm.SourceAddr())
	return fmt.Sprintf("IP %s SRC=%s DST=%s LEN=%d TTL=%d ID=%d", ifrm.Protocol(), src, dst, ifrm.TotalLength(), ifrm.TTL(), ifrm.ID())
}
