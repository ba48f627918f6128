package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	Magic   = "FEA1"
	Version = 1

	// HeaderSize is the size of the fixed file header. It is a multiple of
	// Alignment so the first block starts aligned.
	HeaderSize = 8

	// TrailerSize is the size of the footer length plus the trailing magic.
	// The footer length is fixed-width so the trailer can always be found in
	// the last TrailerSize bytes of a file.
	TrailerSize = 8

	// Alignment is the byte boundary every block starts on.
	Alignment = 8
)

var (
	ErrInvalidMagic       = errors.New("invalid magic number")
	ErrUnsupportedVersion = errors.New("unsupported format version")
)

type FileHeader struct {
	Magic    [4]byte
	Version  uint16
	Reserved uint16
}

func NewFileHeader() FileHeader {
	h := FileHeader{Version: Version}
	copy(h.Magic[:], Magic)
	return h
}

func WriteHeader(w io.Writer, header FileHeader) error {
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

func ReadHeader(r io.Reader) (FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return header, fmt.Errorf("reading header: %w", err)
	}

	if string(header.Magic[:]) != Magic {
		return header, fmt.Errorf("%w: expected %q, got %q", ErrInvalidMagic, Magic, header.Magic[:])
	}
	if header.Version != Version {
		return header, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header.Version)
	}

	return header, nil
}

// WriteTrailer writes the footer length followed by the trailing magic.
func WriteTrailer(w io.Writer, footerLen uint32) error {
	var buf [TrailerSize]byte
	binary.LittleEndian.PutUint32(buf[:4], footerLen)
	copy(buf[4:], Magic)
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("writing trailer: %w", err)
	}
	return nil
}

// ParseTrailer validates the last TrailerSize bytes of a file and returns
// the footer length.
func ParseTrailer(buf []byte) (uint32, error) {
	if len(buf) != TrailerSize {
		return 0, fmt.Errorf("trailer must be %d bytes, got %d", TrailerSize, len(buf))
	}
	if !bytes.Equal(buf[4:], []byte(Magic)) {
		return 0, fmt.Errorf("%w: expected %q, got %q", ErrInvalidMagic, Magic, buf[4:])
	}
	return binary.LittleEndian.Uint32(buf[:4]), nil
}

// Padding returns the number of zero bytes needed after n bytes to reach the
// next Alignment boundary.
func Padding(n int64) int64 {
	if rem := n % Alignment; rem != 0 {
		return Alignment - rem
	}
	return 0
}

var zeroPad [Alignment]byte

// WritePadding writes Padding(n) zero bytes to w and returns how many were
// written.
func WritePadding(w io.Writer, n int64) (int64, error) {
	pad := Padding(n)
	if pad == 0 {
		return 0, nil
	}
	written, err := w.Write(zeroPad[:pad])
	return int64(written), err
}
