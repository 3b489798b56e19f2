package embed

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"
)

var npyMagic = []byte("\x93NUMPY")

// latentHeader is the dictionary numpy writes for a little-endian
// float32 C-order Tokens×Width array.
var latentHeader = fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", Tokens, Width)

var npyShape = regexp.MustCompile(`'shape':\s*\((\d+),\s*(\d+),?\s*\)`)

// WriteNPY writes l as a version 1.0 .npy file.
func WriteNPY(w io.Writer, l *Latent) error {
	if err := l.validate(); err != nil {
		return err
	}
	// The header block, including magic and length, is padded to 64 bytes
	// and ends in a newline.
	header := latentHeader
	pre := len(npyMagic) + 2 + 2
	pad := 64 - (pre+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)
	buf := make([]byte, 4*len(l.Data))
	for i, v := range l.Data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	bw.Write(buf)
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("embed: write npy: %w", err)
	}
	return nil
}

// ReadNPY reads a latent written by WriteNPY or numpy.save.
func ReadNPY(r io.Reader) (*Latent, error) {
	pre := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, pre); err != nil {
		return nil, fmt.Errorf("embed: read npy: %w", err)
	}
	if string(pre[:len(npyMagic)]) != string(npyMagic) {
		return nil, errors.New("embed: read npy: bad magic")
	}
	var hlen int
	switch pre[len(npyMagic)] {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("embed: read npy: %w", err)
		}
		hlen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("embed: read npy: %w", err)
		}
		hlen = int(n)
	default:
		return nil, fmt.Errorf("embed: read npy: unsupported version %d", pre[len(npyMagic)])
	}
	header := make([]byte, hlen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("embed: read npy: %w", err)
	}
	h := string(header)
	if !strings.Contains(h, "'<f4'") || !strings.Contains(h, "'fortran_order': False") {
		return nil, fmt.Errorf("embed: read npy: want C-order <f4, header %q", strings.TrimSpace(h))
	}
	m := npyShape.FindStringSubmatch(h)
	if m == nil || m[1] != fmt.Sprint(Tokens) || m[2] != fmt.Sprint(Width) {
		return nil, fmt.Errorf("embed: read npy: want shape (%d, %d), header %q", Tokens, Width, strings.TrimSpace(h))
	}

	buf := make([]byte, 4*Tokens*Width)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("embed: read npy: %w", err)
	}
	l := &Latent{Data: make([]float32, Tokens*Width)}
	for i := range l.Data {
		l.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return l, nil
}
