package ipv4

import (
	"math"
	"math/rand"
	"testing"
)

func TestFrameFields(t *testing.T) {
	var buf [64]byte
	ifrm, err := NewFrame(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		wantIHL := uint8(5 + rng.Intn(5))
		ifrm.SetVersionAndIHL(4, wantIHL)
		wantTL := 4*uint16(wantIHL) + uint16(rng.Intn(10))
		ifrm.SetTotalLength(wantTL)
		wantTTL := uint8(rng.Intn(256))
		ifrm.SetTTL(wantTTL)
		wantID := uint16(rng.Intn(math.MaxUint16))
		ifrm.SetID(wantID)
		ifrm.SetProtocol(IPProtoUDP)

		if ver, ihl := ifrm.VersionAndIHL(); ver != 4 || ihl != wantIHL {
			t.Errorf("got version=%d ihl=%d, want 4,%d", ver, ihl, wantIHL)
		}
		if tl := ifrm.TotalLength(); tl != wantTL {
			t.Errorf("got total length %d, want %d", tl, wantTL)
		}
		if ttl := ifrm.TTL(); ttl != wantTTL {
			t.Errorf("got ttl %d, want %d", ttl, wantTTL)
		}
		if id := ifrm.ID(); id != wantID {
			t.Errorf("got id %d, want %d", id, wantID)
		}
		if p := ifrm.Protocol(); p != IPProtoUDP {
			t.Errorf("got protocol %v, want UDP", p)
		}
		if err := ifrm.ValidateSize(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
	}
}

func TestFrameValidateSize(t *testing.T) {
	var buf [20]byte
	ifrm, err := NewFrame(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(19) // below header size
	if err := ifrm.ValidateSize(); err == nil {
		t.Error("expected error for total length smaller than header")
	}
	ifrm.SetTotalLength(20)
	if err := ifrm.ValidateSize(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	ifrm.SetVersionAndIHL(4, 4) // below minimum IHL
	if err := ifrm.ValidateSize(); err == nil {
		t.Error("expected error for IHL < 5")
	}
}

func TestHeaderCRCRoundTrip(t *testing.T) {
	var buf [20]byte
	ifrm, err := NewFrame(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(20)
	ifrm.SetTTL(64)
	ifrm.SetProtocol(IPProtoTCP)
	*ifrm.SourceAddr() = [4]byte{192, 0, 2, 1}
	*ifrm.DestinationAddr() = [4]byte{192, 0, 2, 2}
	ifrm.SetCRC(0)
	got := ifrm.CalculateHeaderCRC()
	if got == 0 {
		t.Fatal("checksum should not be zero for this header")
	}
	ifrm.SetCRC(got)
	if ifrm.CalculateHeaderCRC() != got {
		t.Error("recomputed header checksum changed after writing it to the CRC field")
	}
}
