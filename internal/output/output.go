// Package output writes command results to the terminal.
//
// Commands take the Writer from their context, so tests can swap in
// buffers. JSON and quiet modes are honored here.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/voxdash/voxctl/internal/terminal"
)

// Status symbols
const (
	CheckMark   = "✓"
	XMark       = "✗"
	WarningMark = "⚠"
	InfoMark    = "ℹ"
)

type contextKey struct{}

// Writer is the command-facing side of stdout and stderr.
type Writer struct {
	Out     io.Writer
	Err     io.Writer
	JSON    bool
	Quiet   bool
	NoInput bool

	terminal *terminal.Info
	palette  palette
}

type palette struct {
	success *color.Color
	failure *color.Color
	warning *color.Color
	info    *color.Color
	muted   *color.Color
	label   *color.Color
}

// Default returns a Writer on the process's stdout and stderr.
func Default() *Writer {
	return NewWriter(os.Stdout, os.Stderr, terminal.Detect())
}

// NewWriter creates a Writer over out and err for the given terminal.
func NewWriter(out, err io.Writer, term *terminal.Info) *Writer {
	if !term.ColorEnabled() {
		color.NoColor = true
	}

	return &Writer{
		Out:      out,
		Err:      err,
		terminal: term,
		palette: palette{
			success: color.New(color.FgGreen),
			failure: color.New(color.FgRed),
			warning: color.New(color.FgYellow),
			info:    color.New(color.FgCyan),
			muted:   color.New(color.FgHiBlack),
			label:   color.New(color.Bold),
		},
	}
}

// WithContext returns a copy of ctx carrying w.
func (w *Writer) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, w)
}

// FromContext returns the Writer stored in ctx, or Default().
func FromContext(ctx context.Context) *Writer {
	if w, ok := ctx.Value(contextKey{}).(*Writer); ok {
		return w
	}

	return Default()
}

// Terminal returns what was detected about the attached terminal.
func (w *Writer) Terminal() *terminal.Info {
	return w.terminal
}

// SetNoColor turns colors off for the rest of the process.
func (w *Writer) SetNoColor(disabled bool) {
	w.terminal.ForceFlag = disabled
	if disabled {
		color.NoColor = true
	}
}

// Print formats to stdout unless quiet.
func (w *Writer) Print(format string, args ...any) {
	if w.Quiet {
		return
	}

	fmt.Fprintf(w.Out, format, args...)
}

// Println writes a line to stdout unless quiet.
func (w *Writer) Println(args ...any) {
	if w.Quiet {
		return
	}

	fmt.Fprintln(w.Out, args...)
}

// PrintJSON writes v as indented JSON. Quiet does not apply.
func (w *Writer) PrintJSON(v any) error {
	enc := json.NewEncoder(w.Out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// Success reports a completed action.
func (w *Writer) Success(format string, args ...any) {
	if !w.Quiet {
		w.mark(w.Out, w.palette.success, CheckMark, format, args)
	}
}

// Failure reports an error on stderr, even when quiet.
func (w *Writer) Failure(format string, args ...any) {
	w.mark(w.Err, w.palette.failure, XMark, format, args)
}

// Warning reports something the user should look at.
func (w *Writer) Warning(format string, args ...any) {
	if !w.Quiet {
		w.mark(w.Out, w.palette.warning, WarningMark, format, args)
	}
}

// Info prints a hint or progress note.
func (w *Writer) Info(format string, args ...any) {
	if !w.Quiet {
		w.mark(w.Out, w.palette.info, InfoMark, format, args)
	}
}

// Muted prints de-emphasized text.
func (w *Writer) Muted(format string, args ...any) {
	if w.Quiet {
		return
	}

	w.paint(w.palette.muted, fmt.Sprintf(format, args...)+"\n")
}

// Field prints one "label value" row with the label padded to width.
func (w *Writer) Field(width int, label, value string) {
	if w.Quiet {
		return
	}

	w.paint(w.palette.label, fmt.Sprintf("%-*s", width, label))
	fmt.Fprintln(w.Out, " "+value)
}

func (w *Writer) mark(dst io.Writer, tone *color.Color, symbol, format string, args []any) {
	prefix := symbol + " "
	if w.terminal.ColorEnabled() {
		prefix = tone.Sprint(symbol) + " "
	}

	fmt.Fprintln(dst, prefix+fmt.Sprintf(format, args...))
}

func (w *Writer) paint(tone *color.Color, s string) {
	if w.terminal.ColorEnabled() {
		s = tone.Sprint(s)
	}

	fmt.Fprint(w.Out, s)
}

// Spinner shows progress while a backend command is in flight. Without a
// spinner-capable terminal it prints the message and a one-word outcome.
type Spinner struct {
	spin    *spinner.Spinner
	message string
	w       *Writer
}

// Spinner returns a stopped spinner labeled message.
func (w *Writer) Spinner(message string) *Spinner {
	s := &Spinner{message: message, w: w}
	if w.Quiet || !w.terminal.SpinnersEnabled() {
		return s
	}

	s.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.spin.Writer = w.Out
	s.spin.Suffix = " " + message

	return s
}

// Start begins the animation.
func (s *Spinner) Start() {
	if s.spin == nil {
		s.w.Print("%s... ", s.message)
		return
	}

	s.spin.Start()
}

// StopWithSuccess ends the animation and reports message as a success.
func (s *Spinner) StopWithSuccess(message string) {
	s.stop("done")

	if message != "" {
		s.w.Success("%s", message)
	}
}

// StopWithFailure ends the animation and reports message as a failure.
func (s *Spinner) StopWithFailure(message string) {
	s.stop("failed")

	if message != "" {
		s.w.Failure("%s", message)
	}
}

func (s *Spinner) stop(outcome string) {
	if s.spin == nil {
		s.w.Println(outcome)
		return
	}

	s.spin.Stop()
}
