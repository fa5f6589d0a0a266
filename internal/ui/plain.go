package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"github.com/fatih/color"

	"github.com/voxdash/voxctl/internal/dashboard"
)

// Printer writes view changes as plain lines, for pipes and the watch command:
//
//	[14:30:01] user: open chrome
//	-- status: processing (#e94560)
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	width int

	printed int
	status  dashboard.ConnectionStatus

	types  map[dashboard.MessageType]*color.Color
	muted  *color.Color
	failed *color.Color
}

// NewPrinter creates a printer. width > 0 truncates lines to that many
// columns; colorize enables ANSI colors.
func NewPrinter(w io.Writer, width int, colorize bool) *Printer {
	p := &Printer{
		w:      w,
		width:  width,
		status: dashboard.Idle,
		types: map[dashboard.MessageType]*color.Color{
			dashboard.MessageUser:      color.New(color.FgCyan, color.Bold),
			dashboard.MessageAssistant: color.New(color.FgGreen, color.Bold),
			dashboard.MessageSystem:    color.New(color.FgYellow),
		},
		muted:  color.New(color.FgHiBlack),
		failed: color.New(color.FgRed),
	}

	for _, c := range p.types {
		setColor(c, colorize)
	}

	setColor(p.muted, colorize)
	setColor(p.failed, colorize)

	return p
}

func setColor(c *color.Color, enabled bool) {
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
}

// Observe is a dashboard.Observer.
func (p *Printer) Observe(change dashboard.Change, v dashboard.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if change.Has(dashboard.ChangeStream) {
		if v.StreamConnected {
			p.line(p.muted.Sprint("-- event stream connected"))
		} else if v.StreamError != "" {
			p.line(p.muted.Sprint("-- event stream disconnected: " + sanitize(v.StreamError)))
		}
	}

	if change.Has(dashboard.ChangeStatus) && v.Status != p.status {
		p.status = v.Status
		p.line(p.muted.Sprintf("-- status: %s (%s)", sanitize(v.Status.Label), v.Status.Color))
	}

	if change.Has(dashboard.ChangeSession) {
		state := "stopped"
		if v.Running {
			state = "running"
		}

		p.line(p.muted.Sprint("-- assistant " + state))
	}

	if change.Has(dashboard.ChangeError) && v.LastError != "" {
		p.line(p.failed.Sprint("!! " + sanitize(v.LastError)))
	}

	if change.Has(dashboard.ChangeLogAppended) {
		p.printNew(v)
	}
}

func (p *Printer) printNew(v dashboard.View) {
	total := v.Evicted + len(v.Messages)

	fresh := total - p.printed
	if fresh > len(v.Messages) {
		fresh = len(v.Messages)
	}

	for _, msg := range v.Messages[len(v.Messages)-fresh:] {
		p.line(p.FormatMessage(msg))
	}

	p.printed = total
}

// FormatMessage renders one log entry as "[hh:mm:ss] type: content".
func (p *Printer) FormatMessage(msg dashboard.LogMessage) string {
	label := sanitize(string(msg.Type)) + ":"
	if msg.Type.Known() {
		label = p.types[msg.Type].Sprint(label)
	}

	return p.muted.Sprint("["+msg.Clock()+"]") + " " + label + " " + sanitize(msg.Content)
}

func (p *Printer) line(s string) {
	if p.width > 0 && ansi.StringWidth(s) > p.width {
		s = ansi.Truncate(s, p.width, "…")
	}

	fmt.Fprintln(p.w, s)
}
