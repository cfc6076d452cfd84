/*
Package stm32crc implements the CRC-32 checksum computed by the hardware CRC
unit of STM32 microcontrollers.

The unit uses the standard CRC-32 polynomial (0x04C11DB7) but is fed whole
32-bit little-endian words, most significant bit first, without input or
output reflection and without a final XOR. A trailing partial word of 1-3
bytes is packed into the high end of a synthetic word before it is folded.
*/
package stm32crc

import (
	"encoding/binary"
	"fmt"
)

// The size of a CRC-32 checksum in bytes.
const Size = 4

// Init is the initial value of the accumulator.
const Init uint32 = 0xFFFFFFFF

// Polynomial is the generator polynomial in normal (MSB first) form.
const Polynomial uint32 = 0x04C11DB7

// UpdateWord folds a single 32-bit word into crc.
func UpdateWord(crc, word uint32) uint32 {
	crc ^= word
	crc = crc<<8 ^ table[crc>>24]
	crc = crc<<8 ^ table[crc>>24]
	crc = crc<<8 ^ table[crc>>24]
	crc = crc<<8 ^ table[crc>>24]
	return crc
}

// TailWord packs the 1-3 trailing bytes of an input into the word that is
// folded in their place. It panics if len(tail) is not 1, 2 or 3.
func TailWord(tail []byte) uint32 {
	switch len(tail) {
	case 1:
		return uint32(tail[0]) << 24
	case 2:
		return uint32(binary.LittleEndian.Uint16(tail)) << 16
	case 3:
		return uint32(binary.LittleEndian.Uint16(tail))<<8 | uint32(tail[2])<<24
	}
	panic(fmt.Sprintf("stm32crc: invalid tail length: %d", len(tail)))
}

func updateWords(crc uint32, p []byte) uint32 {
	for len(p) >= 4 {
		crc = UpdateWord(crc, binary.LittleEndian.Uint32(p))
		p = p[4:]
	}
	return crc
}

// Update returns the result of adding the bytes in p to crc. Any trailing
// bytes that do not fill a word are packed with TailWord, so chaining calls
// only yields the same result as a single call when every call but the last
// is passed a multiple of 4 bytes.
func Update(crc uint32, p []byte) uint32 {
	n := len(p) &^ 3
	crc = updateWords(crc, p[:n])
	if n != len(p) {
		crc = UpdateWord(crc, TailWord(p[n:]))
	}
	return crc
}

// Checksum returns the STM32 CRC-32 checksum of data.
func Checksum(data []byte) uint32 { return Update(Init, data) }

// Format returns crc as "0x" followed by 8 uppercase hex digits.
func Format(crc uint32) string { return fmt.Sprintf("0x%08X", crc) }
