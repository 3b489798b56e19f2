package loader

import (
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/chazu/facet/pkg/geomerr"
)

const jtHeaderSize = 80

var jtVersion = regexp.MustCompile(`^Version (\d+\.\d+) JT`)

// JTHeader is the fixed file header of a JT file.
type JTHeader struct {
	Version   string
	BigEndian bool
	TOCOffset int64
}

// ReadJTHeader validates the version string, byte order and TOC offset.
func ReadJTHeader(r io.Reader, path string) (JTHeader, error) {
	buf := make([]byte, jtHeaderSize+1+4+8)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return JTHeader{}, &geomerr.ParseError{Path: path, Format: "JT", Err: err}
	}
	fail := func(off int64, format string, args ...any) error {
		return &geomerr.ParseError{Path: path, Format: "JT", Offset: off, Msg: fmt.Sprintf(format, args...)}
	}
	if n < jtHeaderSize+1+4+4 {
		return JTHeader{}, fail(int64(n), "truncated header")
	}

	text := strings.TrimRight(string(buf[:jtHeaderSize]), " \x00\n")
	m := jtVersion.FindStringSubmatch(text)
	if m == nil {
		return JTHeader{}, fail(0, "missing JT version string")
	}
	h := JTHeader{Version: m[1]}

	switch buf[jtHeaderSize] {
	case 0:
	case 1:
		h.BigEndian = true
	default:
		return JTHeader{}, fail(jtHeaderSize, "invalid byte order %d", buf[jtHeaderSize])
	}
	var order binary.ByteOrder = binary.LittleEndian
	if h.BigEndian {
		order = binary.BigEndian
	}
	// Version 10 widened the TOC offset to 64 bits.
	at := jtHeaderSize + 1 + 4
	if strings.HasPrefix(h.Version, "10.") && n >= at+8 {
		h.TOCOffset = int64(order.Uint64(buf[at:]))
	} else {
		h.TOCOffset = int64(order.Uint32(buf[at:]))
	}
	if h.TOCOffset < int64(at) {
		return JTHeader{}, fail(int64(at), "TOC offset %d points into the header", h.TOCOffset)
	}
	return h, nil
}

// readJT validates the header; the segment payload is not decoded, so a
// valid file still yields a GeometryLoadError.
func readJT(r io.Reader, path string) error {
	h, err := ReadJTHeader(r, path)
	if err != nil {
		return err
	}
	return &geomerr.GeometryLoadError{
		Path:  path,
		Stage: "jt",
		Err:   fmt.Errorf("JT %s: segment decoding is not supported", h.Version),
	}
}
