package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/voxdash/voxctl/internal/dashboard"
)

// viewMsg delivers the newest view with every change since the last delivery.
type viewMsg struct {
	change dashboard.Change
	view   dashboard.View
}

// feed coalesces store notifications so the store never blocks on the UI.
type feed struct {
	mu      sync.Mutex
	change  dashboard.Change
	view    dashboard.View
	signal  chan struct{}
	closing chan struct{}
	once    sync.Once
}

func newFeed() *feed {
	return &feed{
		signal:  make(chan struct{}, 1),
		closing: make(chan struct{}),
	}
}

// observe is a dashboard.Observer.
func (f *feed) observe(change dashboard.Change, view dashboard.View) {
	f.mu.Lock()
	f.change |= change
	f.view = view
	f.mu.Unlock()

	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// next waits for the next notification.
func (f *feed) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-f.signal:
		case <-f.closing:
			return nil
		}

		f.mu.Lock()
		defer f.mu.Unlock()

		msg := viewMsg{change: f.change, view: f.view}
		f.change = 0

		return msg
	}
}

func (f *feed) close() {
	f.once.Do(func() { close(f.closing) })
}
