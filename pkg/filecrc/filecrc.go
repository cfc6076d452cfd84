// Package filecrc computes STM32 CRC-32 checksums of files.
package filecrc

import (
	"errors"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/charlievieth/utils/stm32crc/pkg/stm32crc"
)

// BlockSize is the size of the read buffer.
const BlockSize = 256 * 1024

var (
	ErrShortRead  = errors.New("short read")
	ErrNotRegular = errors.New("not a regular file")
	ErrEmpty      = errors.New("empty file")
)

// A ReadError records a file that could not be fully read. No checksum is
// reported for such a file.
type ReadError struct {
	Op   string
	Path string
	Err  error
}

func (e *ReadError) Error() string { return e.Op + " " + e.Path + ": " + e.Err.Error() }

func (e *ReadError) Unwrap() error { return e.Err }

func readError(op, path string, err error) error {
	var perr *fs.PathError
	if errors.As(err, &perr) {
		err = perr.Err
	}
	return &ReadError{Op: op, Path: path, Err: err}
}

type Result struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	CRC  uint32 `json:"crc"`
}

func (r *Result) Hex() string { return stm32crc.Format(r.CRC) }

// A Hasher computes checksums of files one at a time. Its buffer and digest
// are reused between calls so a Hasher must not be used concurrently. The
// zero value starts each checksum from stm32crc.Init.
type Hasher struct {
	// AllowEmpty reports zero length input as the seed instead of ErrEmpty.
	AllowEmpty bool

	buf []byte
	h   hash.Hash32
}

// NewHasher returns a Hasher that starts each checksum from seed.
func NewHasher(seed uint32) *Hasher {
	return &Hasher{h: stm32crc.NewSeeded(seed)}
}

func (h *Hasher) init() {
	if cap(h.buf) < BlockSize {
		h.buf = slices.Grow(h.buf, BlockSize)
	}
	h.buf = h.buf[:cap(h.buf)]
	if h.h == nil {
		h.h = stm32crc.New()
	}
	h.h.Reset()
}

// Reader returns the checksum of the first size bytes of r. ErrShortRead is
// returned if r ends before size bytes are read. If size is negative r is
// read until EOF.
func (h *Hasher) Reader(r io.Reader, size int64) (uint32, int64, error) {
	h.init()
	if size >= 0 {
		r = io.LimitReader(r, size)
	}
	n, err := io.CopyBuffer(h.h, r, h.buf)
	if err != nil {
		return 0, n, err
	}
	if size >= 0 && n != size {
		return 0, n, ErrShortRead
	}
	if n == 0 && !h.AllowEmpty {
		return 0, n, ErrEmpty
	}
	return h.h.Sum32(), n, nil
}

// File returns the checksum of the named file. Any failure is reported as a
// *ReadError.
func (h *Hasher) File(name string) (*Result, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, readError("open", name, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, readError("stat", name, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, readError("open", name, ErrNotRegular)
	}
	crc, n, err := h.Reader(f, fi.Size())
	if err != nil {
		return nil, readError("read", name, err)
	}
	return &Result{Name: name, Size: n, CRC: crc}, nil
}

// Checksum returns the checksum of the named file. If buf is at least
// BlockSize bytes it is used as the read buffer.
func Checksum(name string, buf []byte) (*Result, error) {
	h := Hasher{buf: buf}
	return h.File(name)
}

// ChecksumReader is like Hasher.Reader using a new Hasher.
func ChecksumReader(r io.Reader, size int64, buf []byte) (uint32, int64, error) {
	h := Hasher{buf: buf}
	return h.Reader(r, size)
}

// Resolve returns name, or name with a ".bin" extension when name has no
// extension, does not exist, and the ".bin" file does.
func Resolve(name string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	if _, err := os.Stat(name); !errors.Is(err, fs.ErrNotExist) {
		return name
	}
	if fi, err := os.Stat(name + ".bin"); err == nil && fi.Mode().IsRegular() {
		return name + ".bin"
	}
	return name
}
