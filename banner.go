package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/charlievieth/utils/stm32crc/pkg/stm32crc"
)

const (
	ProgramName = "stm32crc"
	Version     = "1.0.0"
)

const bannerWidth = 78

func center(s string) string {
	if n := (bannerWidth - len(s)) / 2; n > 0 {
		return strings.Repeat(" ", n) + s
	}
	return s
}

func printBanner(w io.Writer) {
	rule := strings.Repeat("-", bannerWidth)
	title := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	fmt.Fprintln(w)
	dim.Fprintln(w, rule)
	title.Fprintln(w, center(fmt.Sprintf("STM32 CRC32 Calculator v%s", Version)))
	fmt.Fprintln(w)
	fmt.Fprintln(w, center(fmt.Sprintf("polynomial %s, init %s, 32-bit words",
		stm32crc.Format(stm32crc.Polynomial), stm32crc.Format(stm32crc.Init))))
	fmt.Fprintln(w, center("no reflection, no final XOR"))
	dim.Fprintln(w, rule)
	fmt.Fprintln(w)
}
