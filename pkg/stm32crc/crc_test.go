package stm32crc

import (
	"bytes"
	"fmt"
	"hash"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Values computed with the reference software implementation, which is
// itself checked against STM32 hardware.
var golden = []struct {
	in  []byte
	out uint32
}{
	{nil, 0xFFFFFFFF},
	{[]byte{}, 0xFFFFFFFF},
	{[]byte{0x01, 0x02, 0x03, 0x04}, 0x1DABE74F},
	{[]byte{0x00, 0x00, 0x00, 0x00}, 0xC704DD7B},
	{[]byte{0x01}, 0x1B6947CC},
	{[]byte{0x01, 0x02}, 0x7AC65925},
	{[]byte{0x01, 0x02, 0x03}, 0x76DBF7C7},
	{[]byte{0x01, 0x02, 0x03, 0x04, 0x05}, 0x0D7EC63A},
	{[]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, 0x6BB36ACF},
	{[]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}, 0x228AE584},
	{[]byte{0xFF}, 0x48647D00},
	{[]byte("abc"), 0x61FACA29},
	{[]byte("123456789"), 0x61706427},
	{[]byte("hello, world"), 0x44A33686},
}

func makeTable(poly uint32) (t [256]uint32) {
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

func TestTable(t *testing.T) {
	if table[0] != 0x00000000 {
		t.Errorf("table[0] = %#08x; want: %#08x", table[0], 0)
	}
	if table[1] != Polynomial {
		t.Errorf("table[1] = %#08x; want: %#08x", table[1], Polynomial)
	}
	want := makeTable(Polynomial)
	for i := range want {
		if table[i] != want[i] {
			t.Errorf("table[%d] = %#08x; want: %#08x", i, table[i], want[i])
		}
	}
}

func TestChecksum(t *testing.T) {
	for _, g := range golden {
		if got := Checksum(g.in); got != g.out {
			t.Errorf("Checksum(% x) = %#08x; want: %#08x", g.in, got, g.out)
		}
	}
}

func TestChecksumEmpty(t *testing.T) {
	if got := Checksum(nil); got != Init {
		t.Errorf("Checksum(nil) = %#08x; want: %#08x", got, Init)
	}
	if got := Update(0x12345678, nil); got != 0x12345678 {
		t.Errorf("Update(0x12345678, nil) = %#08x; want: %#08x", got, 0x12345678)
	}
}

func TestSingleWord(t *testing.T) {
	words := []uint32{0, 1, 0x04030201, 0x80000000, 0xFFFFFFFF, 0xDEADBEEF}
	for _, w := range words {
		p := []byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}
		if got, want := Checksum(p), UpdateWord(Init, w); got != want {
			t.Errorf("Checksum(% x) = %#08x; want: %#08x", p, got, want)
		}
	}
}

func TestTailWord(t *testing.T) {
	tests := []struct {
		tail []byte
		word uint32
	}{
		{[]byte{0xAB}, 0xAB000000},
		{[]byte{0x05, 0x06}, 0x06050000},
		{[]byte{0x01, 0x02, 0x03}, 0x03020100},
		{[]byte{0xFF, 0x00, 0x80}, 0x8000FF00},
	}
	for _, test := range tests {
		if got := TailWord(test.tail); got != test.word {
			t.Errorf("TailWord(% x) = %#08x; want: %#08x", test.tail, got, test.word)
		}
	}
	for _, n := range []int{0, 4, 5} {
		assert.Panics(t, func() { TailWord(make([]byte, n)) }, "len: %d", n)
	}
}

func TestEndToEnd(t *testing.T) {
	in := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	crc := UpdateWord(Init, 0x04030201)
	crc = UpdateWord(crc, 0x06050000)
	assert.Equal(t, crc, Checksum(in))
	assert.Equal(t, uint32(0x6BB36ACF), crc)
}

func TestTailSensitivity(t *testing.T) {
	prefix := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	for n := 1; n <= 3; n++ {
		base := append(append([]byte(nil), prefix...), make([]byte, n)...)
		want := Checksum(base)
		for i := len(prefix); i < len(base); i++ {
			for bit := 0; bit < 8; bit++ {
				p := append([]byte(nil), base...)
				p[i] ^= 1 << bit
				if got := Checksum(p); got == want {
					t.Errorf("Checksum(% x) == Checksum(% x) = %#08x", p, base, got)
				}
			}
		}
	}
}

// All-zero tails pack to the same word regardless of their length.
func TestZeroTailCoincidence(t *testing.T) {
	want := Checksum([]byte{1, 2, 3, 4, 0})
	for _, p := range [][]byte{
		{1, 2, 3, 4, 0, 0},
		{1, 2, 3, 4, 0, 0, 0},
	} {
		if got := Checksum(p); got != want {
			t.Errorf("Checksum(% x) = %#08x; want: %#08x", p, got, want)
		}
	}
}

func TestChaining(t *testing.T) {
	a := []byte("0123456789abcdef")
	for _, b := range [][]byte{
		nil,
		[]byte("x"),
		[]byte("xy"),
		[]byte("xyz"),
		[]byte("wxyz"),
		[]byte("hello, world"),
	} {
		full := append(append([]byte(nil), a...), b...)
		if got, want := Update(Checksum(a), b), Checksum(full); got != want {
			t.Errorf("Update(Checksum(%q), %q) = %#08x; want: %#08x", a, b, got, want)
		}
	}
}

func TestDeterministic(t *testing.T) {
	p := patternData(4099)
	want := Checksum(p)
	for i := 0; i < 8; i++ {
		if got := Checksum(p); got != want {
			t.Fatalf("Checksum: got: %#08x want: %#08x", got, want)
		}
	}
}

func patternData(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + 3)
	}
	return p
}

var largeData struct {
	data []byte
	crc  uint32
}

func loadLargeData() ([]byte, uint32) {
	if largeData.data == nil {
		largeData.data = patternData(3*1024*1024 + 3)
		largeData.crc = 0x0DF6DCBC
	}
	return largeData.data, largeData.crc
}

func TestLargeChunked(t *testing.T) {
	data, want := loadLargeData()
	require.Equal(t, want, Checksum(data))

	for _, size := range []int{1024, 64 * 1024, len(data)} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			crc := Init
			for p := data; len(p) > 0; {
				n := min(size, len(p))
				crc = Update(crc, p[:n])
				p = p[n:]
			}
			if crc != want {
				t.Errorf("got: %#08x want: %#08x", crc, want)
			}
		})
	}
}

func TestDigestChunked(t *testing.T) {
	data, want := loadLargeData()
	for _, size := range []int{1, 3, 5, 1024, 4093, 64 * 1024, len(data)} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			h := New()
			for p := data; len(p) > 0; {
				n := min(size, len(p))
				h.Write(p[:n])
				p = p[n:]
			}
			if got := h.Sum32(); got != want {
				t.Errorf("got: %#08x want: %#08x", got, want)
			}
		})
	}
}

func TestDigest(t *testing.T) {
	for _, g := range golden {
		h := New()
		for i := range g.in {
			h.Write(g.in[i : i+1])
		}
		if got := h.Sum32(); got != g.out {
			t.Errorf("Sum32(% x) = %#08x; want: %#08x", g.in, got, g.out)
		}
		// Sum32 must not consume the pending tail.
		if got := h.Sum32(); got != g.out {
			t.Errorf("Sum32(% x) second call = %#08x; want: %#08x", g.in, got, g.out)
		}
	}
}

func TestDigestInterface(t *testing.T) {
	var h hash.Hash32 = New()
	assert.Equal(t, Size, h.Size())
	assert.Equal(t, 4, h.BlockSize())

	h.Write([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	assert.Equal(t, []byte{0xAA, 0x6B, 0xB3, 0x6A, 0xCF}, h.Sum([]byte{0xAA}))

	h.Reset()
	assert.Equal(t, Init, h.Sum32())
	h.Write([]byte{0x01, 0x02, 0x03})
	assert.Equal(t, uint32(0x76DBF7C7), h.Sum32())
}

func TestDigestSeeded(t *testing.T) {
	a := []byte("firmware")
	b := []byte("image.bin")
	h := NewSeeded(Checksum(a))
	h.Write(b)
	assert.Equal(t, Checksum(append(append([]byte(nil), a...), b...)), h.Sum32())

	h.Reset()
	assert.Equal(t, Checksum(a), h.Sum32())
}

func TestFormat(t *testing.T) {
	tests := map[uint32]string{
		0:          "0x00000000",
		0x1A2B3C4D: "0x1A2B3C4D",
		0xFFFFFFFF: "0xFFFFFFFF",
		0x6BB36ACF: "0x6BB36ACF",
	}
	for crc, want := range tests {
		if got := Format(crc); got != want {
			t.Errorf("Format(%d) = %q; want: %q", crc, got, want)
		}
		if got := fmt.Sprintf("0x%08X", crc); got != want {
			t.Errorf("Sprintf(%d) = %q; want: %q", crc, got, want)
		}
	}
}

func benchmarkChecksum(b *testing.B, size int) {
	p := bytes.Repeat([]byte{0x5A}, size)
	b.SetBytes(int64(size))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Checksum(p)
	}
}

func BenchmarkChecksum_1k(b *testing.B)   { benchmarkChecksum(b, 1024) }
func BenchmarkChecksum_64k(b *testing.B)  { benchmarkChecksum(b, 64*1024) }
func BenchmarkChecksum_1m(b *testing.B)   { benchmarkChecksum(b, 1024*1024) }
func BenchmarkChecksum_Tail(b *testing.B) { benchmarkChecksum(b, 1027) }
