package udp

import (
	"testing"

	"github.com/soypat/badscan/ipv4"
)

func TestFrameFieldsAndChecksum(t *testing.T) {
	payload := []byte("hello query")
	buf := make([]byte, sizeHeader+len(payload))
	ufrm, err := NewFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	ufrm.SetSourcePort(61000)
	ufrm.SetDestinationPort(25565)
	ufrm.SetLength(uint16(len(buf)))
	copy(ufrm.Payload(), payload)

	ibuf := make([]byte, 20)
	ifrm, err := ipv4.NewFrame(ibuf)
	if err != nil {
		t.Fatal(err)
	}
	ifrm.SetProtocol(ipv4.IPProtoUDP)
	*ifrm.SourceAddr() = [4]byte{192, 0, 2, 1}
	*ifrm.DestinationAddr() = [4]byte{192, 0, 2, 10}

	cs := ufrm.CalculateIPv4Checksum(ifrm)
	if cs == 0 {
		t.Fatal("checksum should never be zero (UDP reserves 0 for 'no checksum')")
	}
	ufrm.SetCRC(cs)
	if ufrm.CRC() != cs {
		t.Errorf("checksum field mismatch: got %04x, want %04x", ufrm.CRC(), cs)
	}
	if string(ufrm.Payload()) != string(payload) {
		t.Errorf("payload mismatch: got %q, want %q", ufrm.Payload(), payload)
	}
	if err := ufrm.ValidateSize(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestValidateSizeRejectsShortLength(t *testing.T) {
	buf := make([]byte, sizeHeader)
	ufrm, err := NewFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	ufrm.SetLength(4)
	if err := ufrm.ValidateSize(); err == nil {
		t.Error("expected error for length field below minimum header size")
	}
}
