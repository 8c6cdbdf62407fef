package raknet

import (
	"encoding/binary"
	"net/netip"
	"testing"

	"github.com/soypat/badscan"
)

func buildPong(cookie uint32, guid uint64, serverID string) []byte {
	buf := make([]byte, 1+8+8+16+2+len(serverID))
	buf[0] = idUnconnectedPong
	binary.BigEndian.PutUint32(buf[1:5], cookie)
	binary.BigEndian.PutUint32(buf[5:9], cookie)
	binary.BigEndian.PutUint64(buf[9:17], guid)
	copy(buf[17:33], magic[:])
	binary.BigEndian.PutUint16(buf[33:35], uint16(len(serverID)))
	copy(buf[35:], serverID)
	return buf
}

func TestInitialPacketEmbedsCookieTwice(t *testing.T) {
	p := New(nil, nil)
	target := badscan.Target{IP: netip.MustParseAddr("192.0.2.1"), Port: 19132}
	probe := p.InitialPacket(target, 0xDEADBEEF)
	if probe[0] != idUnconnectedPing {
		t.Fatalf("bad packet id: %x", probe[0])
	}
	if binary.BigEndian.Uint32(probe[1:5]) != 0xDEADBEEF || binary.BigEndian.Uint32(probe[5:9]) != 0xDEADBEEF {
		t.Error("cookie not embedded twice in timestamp field")
	}
}

func TestHandlePacketParsesPong(t *testing.T) {
	var got Response
	p := New(func(source badscan.Target, r Response) { got = r }, nil)
	target := badscan.Target{IP: netip.MustParseAddr("192.0.2.1"), Port: 19132}
	serverID := "MCPE;A Bedrock Server;575;1.19.0;3;20;1234567890;Sub MOTD;Survival;1;19132;19133;"
	pkt := buildPong(0x12345678, 1234567890, serverID)

	p.HandlePacket(func([]byte) {}, target, 0x12345678, pkt)
	if got.Edition != "MCPE" {
		t.Fatalf("parse failed, got %+v", got)
	}
	if got.PlayerCount != 3 || got.MaxPlayers != 20 {
		t.Errorf("player counts mismatch: %+v", got)
	}
	if got.PortIPv4 != 19132 {
		t.Errorf("port mismatch: %d", got.PortIPv4)
	}
}

func TestHandlePacketRejectsCookieMismatch(t *testing.T) {
	called := false
	p := New(func(badscan.Target, Response) { called = true }, nil)
	target := badscan.Target{IP: netip.MustParseAddr("192.0.2.1"), Port: 19132}
	pkt := buildPong(0xAAAAAAAA, 1, "MCPE;x;575;1.19.0;0;20;1;sub;Survival;1;19132;19133;")
	p.HandlePacket(func([]byte) {}, target, 0x12345678, pkt)
	if called {
		t.Error("callback should not fire on cookie mismatch")
	}
}

func TestHandlePacketExtraNilWhenNoTrailingFields(t *testing.T) {
	var got Response
	p := New(func(source badscan.Target, r Response) { got = r }, nil)
	target := badscan.Target{IP: netip.MustParseAddr("192.0.2.1"), Port: 19132}
	// trailing ';' with nothing after it: parts[12:] == [""]
	serverID := "MCPE;A Bedrock Server;575;1.19.0;3;20;1234567890;Sub MOTD;Survival;1;19132;19133;"
	pkt := buildPong(0x12345678, 1234567890, serverID)

	p.HandlePacket(func([]byte) {}, target, 0x12345678, pkt)
	if got.Extra != nil {
		t.Fatalf("expected Extra to be nil, got %q", *got.Extra)
	}
}

func TestHandlePacketExtraPopulatedWithTrailingFields(t *testing.T) {
	var got Response
	p := New(func(source badscan.Target, r Response) { got = r }, nil)
	target := badscan.Target{IP: netip.MustParseAddr("192.0.2.1"), Port: 19132}
	serverID := "MCPE;A Bedrock Server;575;1.19.0;3;20;1234567890;Sub MOTD;Survival;1;19132;19133;foo;bar"
	pkt := buildPong(0x12345678, 1234567890, serverID)

	p.HandlePacket(func([]byte) {}, target, 0x12345678, pkt)
	if got.Extra == nil || *got.Extra != "foo;bar" {
		t.Fatalf("expected Extra = %q, got %v", "foo;bar", got.Extra)
	}
}

func TestHandlePacketRejectsNonUTF8ServerID(t *testing.T) {
	called := false
	p := New(func(badscan.Target, Response) { called = true }, nil)
	target := badscan.Target{IP: netip.MustParseAddr("192.0.2.1"), Port: 19132}
	// 0xFF is not valid as a standalone UTF-8 byte.
	badServerID := "MCPE;\xff\xfe;575"
	pkt := buildPong(0x12345678, 1, badServerID)
	p.HandlePacket(func([]byte) {}, target, 0x12345678, pkt)
	if called {
		t.Error("callback should not fire on non-UTF-8 server id")
	}
}
