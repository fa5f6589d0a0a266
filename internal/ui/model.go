// Package ui renders the live view model: a full-screen bubbletea dashboard
// and a plain line formatter for non-interactive output.
package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/voxdash/voxctl/internal/dashboard"
)

// ErrorTTL is how long a failed command stays visible in the status panel.
const ErrorTTL = 30 * time.Second

// Commander issues session commands and reports which ones are allowed.
type Commander interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	CanStart() bool
	CanStop() bool
}

// Options configures the dashboard model.
type Options struct {
	Store      *dashboard.Store
	Controller Commander
	// APIURL is shown in the header.
	APIURL string
	// Now overrides the clock used for relative times.
	Now func() time.Time
}

type tickMsg time.Time

type commandDoneMsg struct {
	command dashboard.Command
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	ctx    context.Context
	ctrl   Commander
	feed   *feed
	apiURL string
	now    func() time.Time

	view     dashboard.View
	keys     keyMap
	help     help.Model
	viewport viewport.Model
	width    int
	height   int
	ready    bool
}

// NewModel creates the dashboard model and subscribes it to the store. The
// returned function unsubscribes it.
func NewModel(ctx context.Context, opts Options) (*Model, func()) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	m := &Model{
		ctx:      ctx,
		ctrl:     opts.Controller,
		feed:     newFeed(),
		apiURL:   opts.APIURL,
		now:      now,
		view:     opts.Store.Snapshot(),
		keys:     newKeyMap(),
		help:     help.New(),
		viewport: viewport.New(0, 0),
	}

	m.keys.sync(m.ctrl)
	m.refreshLog(true)

	unsubscribe := opts.Store.Subscribe(m.feed.observe)

	return m, func() {
		unsubscribe()
		m.feed.close()
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.feed.next(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()

		return m, nil

	case viewMsg:
		m.apply(msg)
		return m, m.feed.next()

	case tickMsg:
		return m, tick()

	case commandDoneMsg:
		// The controller may refuse the next command until this one settles.
		m.keys.sync(m.ctrl)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)

	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Start):
		return m, m.command(dashboard.CommandStart, m.ctrl.Start)

	case key.Matches(msg, m.keys.Stop):
		return m, m.command(dashboard.CommandStop, m.ctrl.Stop)

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)

	return m, cmd
}

// command runs a session command off the UI goroutine. Failures reach the
// status panel through the store and rejections are silent, so the returned
// error is dropped.
func (m *Model) command(cmd dashboard.Command, run func(context.Context) error) tea.Cmd {
	ctx := m.ctx

	return func() tea.Msg {
		_ = run(ctx)

		return commandDoneMsg{command: cmd}
	}
}

func (m *Model) apply(msg viewMsg) {
	m.view = msg.view
	m.keys.sync(m.ctrl)

	if msg.change.Has(dashboard.ChangeLogAppended) {
		m.refreshLog(true)
	}
}

// refreshLog rebuilds the log pane; appends always scroll to the newest entry.
func (m *Model) refreshLog(scrollToEnd bool) {
	m.viewport.SetContent(renderLog(m.view.Messages, m.viewport.Width))

	if scrollToEnd {
		m.viewport.GotoBottom()
	}
}

func (m *Model) layout() {
	w, h := m.logSize()
	m.viewport.Width = w
	m.viewport.Height = h
	m.help.Width = m.width
	m.refreshLog(m.viewport.AtBottom() || len(m.view.Messages) == 0)
}

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Connecting..."
	}

	return renderScreen(m)
}

func (m *Model) wide() bool {
	return m.width >= wideLayoutWidth
}

func (m *Model) visibleError() string {
	if m.view.LastError == "" || m.now().Sub(m.view.LastErrorAt) >= ErrorTTL {
		return ""
	}

	return strings.TrimSpace(m.view.LastError)
}
