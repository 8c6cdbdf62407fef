package cookie

import (
	"net/netip"
	"testing"

	"github.com/soypat/badscan"
)

func TestComputeDeterministic(t *testing.T) {
	target := badscan.Target{IP: netip.MustParseAddr("192.168.1.10"), Port: 25565}
	a := Compute(target, 42, 1_700_000_000_000)
	b := Compute(target, 42, 1_700_000_000_000)
	if a != b {
		t.Fatalf("Compute not deterministic: %d != %d", a, b)
	}
}

func TestComputeSensitiveToEachInput(t *testing.T) {
	base := badscan.Target{IP: netip.MustParseAddr("10.0.0.1"), Port: 19132}
	c0 := Compute(base, 1, 1000)

	byPort := base
	byPort.Port = 19133
	if Compute(byPort, 1, 1000) == c0 {
		t.Error("cookie unchanged after port change")
	}

	byIP := base
	byIP.IP = netip.MustParseAddr("10.0.0.2")
	if Compute(byIP, 1, 1000) == c0 {
		t.Error("cookie unchanged after IP change")
	}

	if Compute(base, 2, 1000) == c0 {
		t.Error("cookie unchanged after seed change")
	}

	if Compute(base, 1, 1001) == c0 {
		t.Error("cookie unchanged after startMS change")
	}
}
