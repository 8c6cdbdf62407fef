package scanner

import (
	"net/netip"
	"testing"

	"github.com/soypat/badscan"
	"github.com/soypat/badscan/ethernet"
	"github.com/soypat/badscan/fingerprint"
	"github.com/soypat/badscan/ipv4"
	"github.com/soypat/badscan/udp"
)

// fakeInterface is an in-memory rawInterface stand-in: Write captures
// whatever WriteEthernet was called with, Read is not exercised by these
// tests (they drive handleFrame/transmit directly instead of the
// goroutine loops).
type fakeInterface struct {
	hw   [6]byte
	addr netip.Addr
	sent [][]byte
}

func (f *fakeInterface) Read(b []byte) (int, error) { select {} } // never called directly in these tests
func (f *fakeInterface) WriteEthernet(payload []byte, ethertype ethernet.Type) (int, error) {
	cp := append([]byte(nil), payload...)
	f.sent = append(f.sent, cp)
	return len(payload), nil
}
func (f *fakeInterface) HardwareAddr() [6]byte    { return f.hw }
func (f *fakeInterface) SourceAddr() netip.Addr    { return f.addr }

func newFakeInterface() *fakeInterface {
	return &fakeInterface{
		hw:   [6]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01},
		addr: netip.MustParseAddr("10.0.0.5"),
	}
}

func TestUDPScannerTransmitFraming(t *testing.T) {
	fp, err := fingerprint.New(fingerprint.ProfileNintendo3DS)
	if err != nil {
		t.Fatal(err)
	}
	fakeIfc := newFakeInterface()
	s := &UDPScanner{ifc: fakeIfc, sourceIP: fakeIfc.addr, fp: fp}

	dest := badscan.Target{IP: netip.MustParseAddr("192.0.2.10"), Port: 25565}
	err = s.transmit(badscan.SendItem{Dest: dest, Payload: []byte{0xFE, 0xFD, 0x09, 0, 0, 0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if len(fakeIfc.sent) != 1 {
		t.Fatalf("expected 1 transmitted packet, got %d", len(fakeIfc.sent))
	}
	buf := fakeIfc.sent[0]
	ifrm, err := ipv4.NewFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	if err := ifrm.ValidateSize(); err != nil {
		t.Fatalf("ipv4 frame invalid: %v", err)
	}
	if ifrm.TTL() != fp.InitialTTL {
		t.Errorf("TTL = %d, want %d", ifrm.TTL(), fp.InitialTTL)
	}
	if !ifrm.Flags().DontFragment() {
		t.Error("expected DF flag set")
	}
	if ifrm.ID() != 1 {
		t.Errorf("ID = %d, want 1", ifrm.ID())
	}
	if ifrm.Protocol() != ipv4.IPProtoUDP {
		t.Errorf("protocol = %v, want UDP", ifrm.Protocol())
	}
	ufrm, err := udp.NewFrame(ifrm.Payload())
	if err != nil {
		t.Fatal(err)
	}
	if ufrm.SourcePort() != sourcePort {
		t.Errorf("source port = %d, want %d", ufrm.SourcePort(), sourcePort)
	}
	if ufrm.DestinationPort() != dest.Port {
		t.Errorf("dest port = %d, want %d", ufrm.DestinationPort(), dest.Port)
	}
	if ufrm.CRC() == 0 {
		t.Error("expected non-zero UDP checksum")
	}
}

func TestUDPScannerHandleFrameDropsWrongMAC(t *testing.T) {
	fakeIfc := newFakeInterface()
	called := false
	fp, _ := fingerprint.New(fingerprint.ProfileNintendo3DS)
	s := &UDPScanner{
		ifc:      fakeIfc,
		sourceIP: fakeIfc.addr,
		fp:       fp,
		seed:     0,
		startMS:  0,
		proto:    fakeProto{fn: func() { called = true }},
	}
	wrongMAC := [6]byte{1, 2, 3, 4, 5, 6}
	frame := buildTestUDPFrame(t, wrongMAC, []byte("doesn't matter"))
	s.handleFrame(frame, fakeIfc.hw)
	if called {
		t.Error("handler should not fire for a frame addressed to a different MAC")
	}
}

// fakeProto is a minimal protocol.UDPProtocol for testing dispatch wiring.
type fakeProto struct{ fn func() }

func (fakeProto) Name() string               { return "fake" }
func (fakeProto) DefaultPort() uint16        { return 0 }
func (fakeProto) InitialPacket(badscan.Target, uint32) []byte { return nil }
func (f fakeProto) HandlePacket(sendBack func([]byte), source badscan.Target, cookie uint32, packet []byte) {
	f.fn()
}

func buildTestUDPFrame(t *testing.T, destMAC [6]byte, payload []byte) []byte {
	t.Helper()
	total := 20 + 8 + len(payload)
	ipbuf := make([]byte, total)
	ifrm, _ := ipv4.NewFrame(ipbuf)
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(uint16(total))
	ifrm.SetProtocol(ipv4.IPProtoUDP)
	*ifrm.SourceAddr() = [4]byte{192, 0, 2, 10}
	*ifrm.DestinationAddr() = [4]byte{10, 0, 0, 5}
	ufrm, _ := udp.NewFrame(ifrm.Payload())
	ufrm.SetSourcePort(25565)
	ufrm.SetDestinationPort(sourcePort)
	ufrm.SetLength(uint16(8 + len(payload)))
	copy(ufrm.Payload(), payload)

	ebuf := make([]byte, 14+total)
	efrm, _ := ethernet.NewFrame(ebuf)
	*efrm.DestinationHardwareAddr() = destMAC
	efrm.SetEtherType(ethernet.TypeIPv4)
	copy(efrm.Payload(), ipbuf)
	return ebuf
}
