package dashboard

// Event is an input to Store.Apply.
type Event interface {
	isEvent()
}

// StatusUpdated carries a status_update push event.
type StatusUpdated struct {
	Label string
	Color string
}

// MessageReceived carries a message push event.
type MessageReceived struct {
	Type    MessageType
	Content string
}

// SystemFetched carries a successful system-info poll.
type SystemFetched struct {
	Snapshot SystemSnapshot
}

// CommandIssued marks a start or stop request as in flight.
type CommandIssued struct {
	Command Command
}

// SessionStarted records a successful start command.
type SessionStarted struct{}

// SessionStopped records a successful stop command.
type SessionStopped struct{}

// SessionSynced seeds Running from the backend when the view mounts. It is
// ignored once a command has completed.
type SessionSynced struct {
	Running bool
}

// CommandFailed records a failed start or stop request.
type CommandFailed struct {
	Command Command
	Err     error
}

// StreamConnected records a live push channel.
type StreamConnected struct{}

// StreamDisconnected records a dropped push channel.
type StreamDisconnected struct {
	Err error
}

func (StatusUpdated) isEvent()      {}
func (MessageReceived) isEvent()    {}
func (SystemFetched) isEvent()      {}
func (CommandIssued) isEvent()      {}
func (SessionStarted) isEvent()     {}
func (SessionStopped) isEvent()     {}
func (SessionSynced) isEvent()      {}
func (CommandFailed) isEvent()      {}
func (StreamConnected) isEvent()    {}
func (StreamDisconnected) isEvent() {}
