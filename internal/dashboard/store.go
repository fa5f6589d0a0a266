package dashboard

import (
	"fmt"
	"sync"
	"time"
)

// Change is a bit set describing what a transition touched.
type Change uint16

// Change bits.
const (
	ChangeStatus Change = 1 << iota
	// ChangeLogAppended fires on every append; renderers scroll to the newest entry.
	ChangeLogAppended
	ChangeSystem
	ChangeSession
	ChangePending
	ChangeError
	ChangeStream
)

// Has reports whether c includes all bits of other.
func (c Change) Has(other Change) bool {
	return c&other == other
}

// Observer is notified after every transition that changed something.
// Observers run on the applying goroutine and must not call Apply.
type Observer func(Change, View)

// Store is the single owner of the live view model.
type Store struct {
	// applyMu serializes transitions and observer delivery so observers see
	// transitions in the order they were applied.
	applyMu sync.Mutex
	// mu guards state for concurrent Snapshot calls.
	mu sync.RWMutex

	state       View
	decided     bool
	maxMessages int
	now         func() time.Time

	observers []observerEntry
	nextID    int
}

type observerEntry struct {
	id int
	fn Observer
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithMaxMessages bounds the log; the oldest entry is evicted first.
// Zero or less keeps every message.
func WithMaxMessages(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxMessages = n
		}
	}
}

// NewStore returns a store in the initial state: idle status, empty log,
// empty snapshot, not running.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state: View{Status: Idle},
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Snapshot returns the current view.
func (s *Store) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.view()
}

// view must be called with mu held. The message slice is capped so a caller
// appending to it cannot write into the store's backing array.
func (s *Store) view() View {
	v := s.state
	v.Messages = v.Messages[:len(v.Messages):len(v.Messages)]

	return v
}

// Subscribe registers o and returns a function that removes it.
func (s *Store) Subscribe(o Observer) func() {
	s.applyMu.Lock()
	id := s.nextID
	s.nextID++
	s.observers = append(s.observers, observerEntry{id: id, fn: o})
	s.applyMu.Unlock()

	return func() {
		s.applyMu.Lock()
		defer s.applyMu.Unlock()

		for i, entry := range s.observers {
			if entry.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Apply performs one transition and notifies observers.
func (s *Store) Apply(e Event) Change {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	change := s.transition(e)
	view := s.view()
	s.mu.Unlock()

	if change == 0 {
		return 0
	}

	for _, entry := range s.observers {
		entry.fn(change, view)
	}

	return change
}

// transition must be called with mu held.
func (s *Store) transition(e Event) Change {
	st := &s.state

	switch ev := e.(type) {
	case StatusUpdated:
		color := ev.Color
		if color == "" {
			color = DefaultStatusColor
		}

		st.Status = ConnectionStatus{Label: ev.Label, Color: color}

		return ChangeStatus

	case MessageReceived:
		s.appendMessage(LogMessage{Type: ev.Type, Content: ev.Content, Timestamp: s.now()})
		return ChangeLogAppended

	case SystemFetched:
		st.System = ev.Snapshot
		st.SystemUpdatedAt = s.now()

		return ChangeSystem

	case CommandIssued:
		st.Pending = ev.Command
		return ChangePending

	case SessionStarted:
		s.decided = true
		st.Running = true
		st.Pending = ""
		st.LastError, st.LastErrorAt = "", time.Time{}

		return ChangeSession | ChangePending | ChangeError

	case SessionStopped:
		s.decided = true
		st.Running = false
		st.Pending = ""
		st.Status = Idle
		st.LastError, st.LastErrorAt = "", time.Time{}

		return ChangeSession | ChangePending | ChangeStatus | ChangeError

	case SessionSynced:
		if s.decided || st.Pending != "" || st.Running == ev.Running {
			return 0
		}

		st.Running = ev.Running

		return ChangeSession

	case CommandFailed:
		st.Pending = ""
		st.LastError = describeFailure(ev)
		st.LastErrorAt = s.now()

		return ChangePending | ChangeError

	case StreamConnected:
		st.StreamConnected = true
		st.StreamError = ""

		return ChangeStream

	case StreamDisconnected:
		st.StreamConnected = false
		if ev.Err != nil {
			st.StreamError = ev.Err.Error()
		}

		return ChangeStream

	default:
		return 0
	}
}

// appendMessage keeps earlier View slices valid: entries already handed out
// are never overwritten, only resliced away when the log is bounded.
func (s *Store) appendMessage(m LogMessage) {
	st := &s.state

	if s.maxMessages > 0 && len(st.Messages) >= s.maxMessages {
		drop := len(st.Messages) - s.maxMessages + 1
		st.Messages = st.Messages[drop:]
		st.Evicted += drop
	}

	st.Messages = append(st.Messages, m)
}

func describeFailure(ev CommandFailed) string {
	if ev.Err == nil {
		return fmt.Sprintf("Failed to %s assistant", ev.Command)
	}

	return fmt.Sprintf("Failed to %s assistant: %v", ev.Command, ev.Err)
}
