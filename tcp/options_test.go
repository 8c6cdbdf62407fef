package tcp

import "testing"

func TestPutAndForEachOption(t *testing.T) {
	var buf [16]byte
	var codec OptionCodec
	n := 0
	written, err := codec.PutOption16(buf[n:], OptMaxSegmentSize, 1360)
	if err != nil {
		t.Fatal(err)
	}
	n += written
	buf[n] = byte(OptNop)
	n++
	buf[n] = byte(OptNop)
	n++
	written, err = codec.PutOption(buf[n:], OptSACKPermitted)
	if err != nil {
		t.Fatal(err)
	}
	n += written

	var gotKinds []OptionKind
	var gotMSS uint16
	err = codec.ForEachOption(buf[:n], func(kind OptionKind, data []byte) error {
		gotKinds = append(gotKinds, kind)
		if kind == OptMaxSegmentSize {
			gotMSS = uint16(data[0])<<8 | uint16(data[1])
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(gotKinds) != 2 {
		t.Fatalf("expected 2 non-NOP options, got %d: %v", len(gotKinds), gotKinds)
	}
	if gotKinds[0] != OptMaxSegmentSize || gotKinds[1] != OptSACKPermitted {
		t.Errorf("unexpected option kinds: %v", gotKinds)
	}
	if gotMSS != 1360 {
		t.Errorf("MSS mismatch: got %d, want 1360", gotMSS)
	}
}

func TestPutOptionRejectsBareKinds(t *testing.T) {
	var buf [8]byte
	var codec OptionCodec
	if _, err := codec.PutOption(buf[:], OptNop); err == nil {
		t.Error("expected error encoding NOP via PutOption")
	}
	if _, err := codec.PutOption(buf[:], OptEnd); err == nil {
		t.Error("expected error encoding End via PutOption")
	}
}
