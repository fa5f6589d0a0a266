// Package terminal provides terminal detection and capabilities.
//
// The dashboard needs a real terminal on both stdin and stdout; everything
// else degrades to plain line output when either side is redirected.
package terminal

import (
	"os"

	"golang.org/x/term"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// Info holds terminal capability information.
type Info struct {
	IsTTY      bool
	StdinIsTTY bool
	NoColor    bool
	Width      int
	Height     int
	ForceFlag  bool // Set when --no-color flag is used
}

// Detect returns terminal information for the current environment.
func Detect() *Info {
	stdoutFD := int(os.Stdout.Fd())
	isTTY := term.IsTerminal(stdoutFD)

	width, height := defaultWidth, defaultHeight

	if isTTY {
		if w, h, err := term.GetSize(stdoutFD); err == nil {
			width, height = w, h
		}
	}

	return &Info{
		IsTTY:      isTTY,
		StdinIsTTY: term.IsTerminal(int(os.Stdin.Fd())),
		NoColor:    noColorRequested(),
		Width:      width,
		Height:     height,
	}
}

// noColorRequested honours NO_COLOR (https://no-color.org/) and TERM=dumb.
func noColorRequested() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}

	return os.Getenv("TERM") == "dumb"
}

// ColorEnabled returns true if colored output should be used.
func (t *Info) ColorEnabled() bool {
	if t.ForceFlag {
		return false
	}

	return t.IsTTY && !t.NoColor
}

// InteractiveEnabled returns true if the full-screen dashboard can run.
func (t *Info) InteractiveEnabled() bool {
	return t.IsTTY && t.StdinIsTTY
}

// SpinnersEnabled returns true if spinners should be used.
func (t *Info) SpinnersEnabled() bool {
	return t.IsTTY && !t.NoColor
}
