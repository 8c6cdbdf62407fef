// Package slp implements the client-speaks-first half of the Minecraft
// Server List Ping handshake over TCP, port 25565. Wire format grounded
// on the original protocols/slp.rs and utils.rs (VarInt encoder)
// references; response parsing is declared out of scope by spec.md §4.3.3
// and is not implemented here.
package slp

import "github.com/soypat/badscan"

const (
	protocolVersion = 47
	nextStateStatus = 1
)

// Protocol implements protocol.TCPProtocol for Minecraft SLP. It always
// has data to send once the shadow handshake completes, so InitialPacket
// never returns ok=false.
type Protocol struct {
	hostname string
	port     uint16
	hello    []byte
}

// New builds an SLP protocol plug-in. hostname and port are embedded in
// the handshake sub-packet as the server address the client claims to be
// connecting through; they do not need to match the real target.
func New(hostname string, port uint16) *Protocol {
	return &Protocol{
		hostname: hostname,
		port:     port,
		hello:    buildHelloPacket(hostname, port, protocolVersion),
	}
}

func (p *Protocol) Name() string        { return "SLP" }
func (p *Protocol) DefaultPort() uint16 { return 25565 }

// InitialPacket returns the concatenated handshake + status-request
// payload to push once the shadow TCP handshake completes.
func (p *Protocol) InitialPacket(dest badscan.Target) ([]byte, bool) {
	return p.hello, true
}

// buildHelloPacket renders the two length-prefixed sub-packets the
// original generate_hello_packet concatenates: a handshake (id 0x00)
// followed by an empty status request (id 0x00).
func buildHelloPacket(hostname string, port uint16, protocol int32) []byte {
	handshake := make([]byte, 0, 16+len(hostname))
	handshake = append(handshake, 0x00) // handshake packet id
	handshake = appendVarInt(handshake, protocol)
	handshake = appendVarInt(handshake, int32(len(hostname)))
	handshake = append(handshake, hostname...)
	handshake = append(handshake, byte(port>>8), byte(port))
	handshake = appendVarInt(handshake, nextStateStatus)

	statusRequest := []byte{0x00}

	full := make([]byte, 0, len(handshake)+len(statusRequest)+8)
	full = appendVarInt(full, int32(len(handshake)))
	full = append(full, handshake...)
	full = appendVarInt(full, int32(len(statusRequest)))
	full = append(full, statusRequest...)
	return full
}

// appendVarInt appends value encoded as a protocol VarInt: little-endian
// base-128, 7 data bits per byte, high bit set on every byte but the
// last. Zero encodes as a single zero byte.
func appendVarInt(dst []byte, value int32) []byte {
	v := uint32(value)
	if v == 0 {
		return append(dst, 0)
	}
	for v != 0 {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
	}
	return dst
}
