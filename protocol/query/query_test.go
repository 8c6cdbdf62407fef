package query

import (
	"net/netip"
	"testing"

	"github.com/soypat/badscan"
)

func TestInitialPacketHandshake(t *testing.T) {
	p := New(false, nil, nil)
	target := badscan.Target{IP: netip.MustParseAddr("192.0.2.10"), Port: 25565}
	probe := p.InitialPacket(target, 0xAABBCCDD)
	if len(probe) != 7 {
		t.Fatalf("expected 7-byte handshake probe, got %d", len(probe))
	}
	if probe[0] != 0xFE || probe[1] != 0xFD || probe[2] != 0x09 {
		t.Fatalf("bad probe header: % X", probe[:3])
	}
	id := getUint32BE(probe[3:7])
	if id != sessionID(0xAABBCCDD) {
		t.Errorf("id mismatch: got %08x want %08x", id, sessionID(0xAABBCCDD))
	}
	if id&0xF0F0F0F0 != 0 {
		t.Errorf("id has set high nibbles: %08x", id)
	}
}

func TestHandleChallengeTriggersFollowUp(t *testing.T) {
	p := New(true, nil, nil)
	target := badscan.Target{IP: netip.MustParseAddr("192.0.2.10"), Port: 25565}
	cookie := uint32(0x12345678)
	id := sessionID(cookie)

	challenge := make([]byte, 11)
	challenge[0] = 0x09
	putUint32BE(challenge[1:5], id)
	copy(challenge[5:], []byte("12345\x00"))

	var sent []byte
	p.HandlePacket(func(b []byte) { sent = b }, target, cookie, challenge)
	if sent == nil {
		t.Fatal("expected follow-up packet to be sent")
	}
	if sent[2] != 0x00 {
		t.Errorf("expected stat-request intention byte, got %x", sent[2])
	}
	token := getUint32BE(sent[7:11])
	if token != 12345 {
		t.Errorf("token mismatch: got %d want 12345", token)
	}
	if len(sent) != 15 {
		t.Fatalf("expected fullstat padding appended, got len %d", len(sent))
	}
}

func TestHandlePartialStatResponse(t *testing.T) {
	var got Response
	p := New(false, func(source badscan.Target, resp Response) { got = resp }, nil)
	target := badscan.Target{IP: netip.MustParseAddr("192.0.2.10"), Port: 25565}
	cookie := uint32(0x12345678)
	id := sessionID(cookie)

	packet := make([]byte, 5)
	packet[0] = 0x00
	putUint32BE(packet[1:5], id)
	packet = append(packet, []byte("A Minecraft Server\x00")...)
	packet = append(packet, []byte("SMP\x00")...)
	packet = append(packet, []byte("world\x00")...)
	packet = append(packet, []byte("3\x00")...)
	packet = append(packet, []byte("20\x00")...)
	packet = append(packet, 0x63, 0x00) // host port 99, little-endian
	packet = append(packet, []byte("192.0.2.10\x00")...)

	p.HandlePacket(func(b []byte) {}, target, cookie, packet)
	if got.Partial == nil {
		t.Fatal("expected partial response")
	}
	if got.Partial.MOTD != "A Minecraft Server" {
		t.Errorf("motd mismatch: %q", got.Partial.MOTD)
	}
	if got.Partial.HostPort != 99 {
		t.Errorf("host port mismatch: %d", got.Partial.HostPort)
	}
}

func TestRejectsMismatchedSessionID(t *testing.T) {
	called := false
	p := New(false, func(badscan.Target, Response) { called = true }, nil)
	target := badscan.Target{IP: netip.MustParseAddr("192.0.2.10"), Port: 25565}
	packet := make([]byte, 5)
	packet[0] = 0x00
	putUint32BE(packet[1:5], 0xFFFFFFFF)
	p.HandlePacket(func(b []byte) {}, target, 0x12345678, packet)
	if called {
		t.Error("callback should not fire on session id mismatch")
	}
}
