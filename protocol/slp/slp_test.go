package slp

import (
	"net/netip"
	"testing"

	"github.com/soypat/badscan"
)

func TestAppendVarIntZero(t *testing.T) {
	got := appendVarInt(nil, 0)
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("zero should encode as a single zero byte, got %v", got)
	}
}

func TestAppendVarIntMultiByte(t *testing.T) {
	// 300 = 0b1_0010_1100 -> low 7 bits 0101100 with continuation, then 0000010
	got := appendVarInt(nil, 300)
	want := []byte{0xAC, 0x02}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestInitialPacketConcatenatesSubPackets(t *testing.T) {
	p := New("test", 3)
	payload, ok := p.InitialPacket(badscan.Target{IP: netip.MustParseAddr("192.0.2.1"), Port: 25565})
	if !ok {
		t.Fatal("SLP always has data to send after the handshake")
	}
	if len(payload) == 0 {
		t.Fatal("empty hello packet")
	}
	// first byte is the VarInt length of the handshake sub-packet.
	handshakeLen := int(payload[0])
	if handshakeLen >= 0x80 {
		t.Fatalf("unexpectedly large handshake length byte: %#x", handshakeLen)
	}
	handshake := payload[1 : 1+handshakeLen]
	if handshake[0] != 0x00 {
		t.Fatalf("handshake packet id should be 0x00, got %#x", handshake[0])
	}
	rest := payload[1+handshakeLen:]
	if len(rest) < 2 || rest[0] != 1 || rest[1] != 0x00 {
		t.Fatalf("status request sub-packet malformed: %v", rest)
	}
}

func TestDefaultPortAndName(t *testing.T) {
	p := New("test", 3)
	if p.Name() != "SLP" {
		t.Errorf("Name() = %q", p.Name())
	}
	if p.DefaultPort() != 25565 {
		t.Errorf("DefaultPort() = %d", p.DefaultPort())
	}
}
