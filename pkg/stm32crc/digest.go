package stm32crc

import (
	"encoding/binary"
	"hash"
)

// digest buffers up to 3 bytes between writes so the checksum does not
// depend on how the input is split.
type digest struct {
	seed uint32
	crc  uint32
	n    int // number of buffered bytes
	buf  [4]byte
}

// New creates a new hash.Hash32 computing the STM32 CRC-32 checksum. Its Sum
// method will lay the value out in big-endian byte order.
func New() hash.Hash32 { return NewSeeded(Init) }

// NewSeeded is like New but starts from prev instead of Init, which allows
// resuming a checksum of word aligned input.
func NewSeeded(prev uint32) hash.Hash32 {
	return &digest{seed: prev, crc: prev}
}

func (d *digest) Size() int { return Size }

func (d *digest) BlockSize() int { return 4 }

func (d *digest) Reset() {
	d.crc = d.seed
	d.n = 0
}

func (d *digest) Write(p []byte) (int, error) {
	nn := len(p)
	if d.n > 0 {
		k := copy(d.buf[d.n:], p)
		d.n += k
		p = p[k:]
		if d.n < 4 {
			return nn, nil
		}
		d.crc = UpdateWord(d.crc, binary.LittleEndian.Uint32(d.buf[:]))
		d.n = 0
	}
	n := len(p) &^ 3
	d.crc = updateWords(d.crc, p[:n])
	d.n = copy(d.buf[:], p[n:])
	return nn, nil
}

func (d *digest) Sum32() uint32 {
	if d.n == 0 {
		return d.crc
	}
	return UpdateWord(d.crc, TailWord(d.buf[:d.n]))
}

func (d *digest) Sum(in []byte) []byte {
	return binary.BigEndian.AppendUint32(in, d.Sum32())
}
