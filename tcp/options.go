package tcp

import "errors"

// OptionKind identifies a TCP option per the IANA TCP option registry.
type OptionKind uint8

const (
	OptEnd            OptionKind = 0
	OptNop            OptionKind = 1
	OptMaxSegmentSize OptionKind = 2
	OptWindowScale    OptionKind = 3
	OptSACKPermitted  OptionKind = 4
	OptSACK           OptionKind = 5
	OptTimestamps     OptionKind = 8
)

var obsoleteKinds = map[OptionKind]bool{
	6: true, // echo
	7: true, // echo reply
}

// IsObsolete reports whether kind is considered obsolete by newer TCP specs.
func (kind OptionKind) IsObsolete() bool { return obsoleteKinds[kind] }

var (
	errShortOptBuf = errors.New("tcp: short option buffer")
	errOptTooLarge = errors.New("tcp: option data too large")
	errBareKind    = errors.New("tcp: cannot encode End/Nop via PutOption")
)

// OptionCodec encodes and decodes the TLV-style TCP options section.
type OptionCodec struct {
	Flags OptionFlags
}

// OptionFlags tune OptionCodec's leniency.
type OptionFlags uint8

const (
	OptFlagSkipSizeValidation OptionFlags = 1 << iota
	OptFlagSkipObsolete
)

// HasAny reports whether any of ofTheseFlags is set.
func (flags OptionFlags) HasAny(ofTheseFlags OptionFlags) bool {
	return flags&ofTheseFlags != 0
}

// PutOption16 encodes a 2-byte big-endian option value.
func (op OptionCodec) PutOption16(dst []byte, kind OptionKind, v uint16) (int, error) {
	return op.PutOption(dst, kind, byte(v>>8), byte(v))
}

// PutOption writes kind, its TLV length byte, and data to dst, returning the
// number of bytes written.
func (op OptionCodec) PutOption(dst []byte, kind OptionKind, data ...byte) (int, error) {
	size := 2 + len(data)
	if len(dst) < size {
		return -1, errShortOptBuf
	} else if size > 255 {
		return -1, errOptTooLarge
	} else if kind == OptNop || kind == OptEnd {
		return -1, errBareKind
	}
	dst[0] = byte(kind)
	dst[1] = byte(size)
	copy(dst[2:], data)
	return size, nil
}

// ForEachOption walks the TLV-encoded options buffer, invoking fn with each
// option's kind and data slice. NOP bytes are skipped transparently; a zero
// (End) byte stops the walk.
func (op OptionCodec) ForEachOption(opts []byte, fn func(OptionKind, []byte) error) error {
	off := 0
	skipSizeValidation := op.Flags.HasAny(OptFlagSkipSizeValidation)
	skipObsolete := op.Flags.HasAny(OptFlagSkipObsolete)
	for off < len(opts) && opts[off] != byte(OptEnd) {
		kind := OptionKind(opts[off])
		off++
		if kind == OptNop {
			continue
		}
		if len(opts[off:]) < 1 {
			return errShortOptBuf
		}
		size := int(opts[off])
		off++
		dataLen := size - 2
		if dataLen < 0 || len(opts[off:]) < dataLen {
			return errShortOptBuf
		}
		if !skipSizeValidation {
			expectSize := -1
			switch kind {
			case OptTimestamps:
				expectSize = 10
			case OptMaxSegmentSize:
				expectSize = 4
			case OptWindowScale:
				expectSize = 3
			case OptSACKPermitted:
				expectSize = 2
			}
			if expectSize != -1 && size != expectSize {
				return errShortOptBuf
			}
		}
		if !(skipObsolete && kind.IsObsolete()) {
			if err := fn(kind, opts[off:off+dataLen]); err != nil {
				return err
			}
		}
		off += dataLen
	}
	return nil
}
