// Package bar draws the address scan progress on the terminal.
package bar

import (
	"fmt"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
)

// New returns a bar counting scanned addresses.
func New(addresses int, text string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		addresses,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("addr"),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription("[cyan]"+text+"[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(ansi.NewAnsiStdout())
		}),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Describe updates the text in front of the bar with the address being polled.
func Describe(b *progressbar.ProgressBar, text string, address int) {
	b.Describe(fmt.Sprintf("[cyan]%s[reset] %02X", text, address))
}
