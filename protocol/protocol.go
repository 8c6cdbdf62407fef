// Package protocol declares the closed plug-in contract that scanner
// implementations dispatch against: exactly three wire protocols (query,
// raknet, slp) implement these interfaces, mirroring the original
// design's closed UdpProtocol/TcpProtocol enum rather than an open,
// user-extensible plug-in surface.
package protocol

import "github.com/soypat/badscan"

// Protocol is the common identity every plug-in exposes.
type Protocol interface {
	Name() string
	DefaultPort() uint16
}

// UDPProtocol is implemented by connectionless plug-ins: the scanner sends
// InitialPacket's result and hands every reply from target to
// HandlePacket, which may call sendBack to continue a multi-step
// exchange (e.g. the Query protocol's challenge/response).
type UDPProtocol interface {
	Protocol
	InitialPacket(target badscan.Target, cookie uint32) []byte
	HandlePacket(sendBack func([]byte), source badscan.Target, cookie uint32, packet []byte)
}

// TCPProtocol is implemented by plug-ins riding the shadow TCP handshake.
// InitialPacket returns the payload to push once the handshake completes;
// ok is false when the protocol expects the server to speak first (e.g.
// Minecraft SLP waits for nothing and always sends ok=true, but the
// contract allows a future protocol to stay silent after the handshake).
type TCPProtocol interface {
	Protocol
	InitialPacket(dest badscan.Target) (payload []byte, ok bool)
}
