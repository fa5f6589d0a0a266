// Package dashboard holds the live view model of an assistant session and
// the pieces that feed it: the session controller, the system-info poller
// and the push channel bridge.
//
// Every mutation goes through Store.Apply as a typed Event. Readers take an
// immutable View with Store.Snapshot or receive one per transition by
// subscribing an Observer.
package dashboard

import (
	"time"

	"github.com/voxdash/voxctl/internal/client"
)

// DefaultStatusColor is used when the backend sends a status without a color.
const DefaultStatusColor = "#555555"

// NotAvailable is rendered for absent system-info fields.
const NotAvailable = "N/A"

// ConnectionStatus is the assistant's self-reported state. Label and Color
// always travel together.
type ConnectionStatus struct {
	Label string
	Color string
}

// Idle is the status before any push event and after a successful stop.
var Idle = ConnectionStatus{Label: "idle", Color: DefaultStatusColor}

// MessageType classifies a log entry.
type MessageType string

// Known message types. Anything else is kept verbatim and rendered unstyled.
const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageSystem    MessageType = "system"
)

// Known reports whether t is one of the styled message types.
func (t MessageType) Known() bool {
	switch t {
	case MessageUser, MessageAssistant, MessageSystem:
		return true
	default:
		return false
	}
}

// LogMessage is one entry in the append-only message log.
type LogMessage struct {
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// Clock renders the arrival time the way the log displays it.
func (m LogMessage) Clock() string {
	return m.Timestamp.Local().Format("15:04:05")
}

// Gauge names one field of a SystemSnapshot.
type Gauge int

// Gauges in display order.
const (
	GaugeCPU Gauge = iota
	GaugeMemory
	GaugeDisk
	GaugeAvailableMemory
)

// Gauges lists every gauge in display order.
var Gauges = []Gauge{GaugeCPU, GaugeMemory, GaugeDisk, GaugeAvailableMemory}

// Label is the human name of the gauge.
func (g Gauge) Label() string {
	switch g {
	case GaugeCPU:
		return "CPU Usage"
	case GaugeMemory:
		return "Memory Usage"
	case GaugeDisk:
		return "Disk Usage"
	case GaugeAvailableMemory:
		return "Available Memory"
	default:
		return "Unknown"
	}
}

// SystemSnapshot is the most recent successful system-info poll. An empty
// field means the backend did not report it.
type SystemSnapshot struct {
	CPUUsage        string `json:"cpu_usage"`
	MemoryUsage     string `json:"memory_usage"`
	DiskUsage       string `json:"disk_usage"`
	AvailableMemory string `json:"available_memory"`
}

// SnapshotFromInfo converts a backend response.
func SnapshotFromInfo(info client.SystemInfo) SystemSnapshot {
	return SystemSnapshot{
		CPUUsage:        info.CPUUsage,
		MemoryUsage:     info.MemoryUsage,
		DiskUsage:       info.DiskUsage,
		AvailableMemory: info.AvailableMemory,
	}
}

// Value returns the raw field for g.
func (s SystemSnapshot) Value(g Gauge) string {
	switch g {
	case GaugeCPU:
		return s.CPUUsage
	case GaugeMemory:
		return s.MemoryUsage
	case GaugeDisk:
		return s.DiskUsage
	case GaugeAvailableMemory:
		return s.AvailableMemory
	default:
		return ""
	}
}

// Display returns the field for g, or NotAvailable when absent.
func (s SystemSnapshot) Display(g Gauge) string {
	if v := s.Value(g); v != "" {
		return v
	}

	return NotAvailable
}

// Displayed returns a copy with every absent field replaced by NotAvailable.
func (s SystemSnapshot) Displayed() SystemSnapshot {
	return SystemSnapshot{
		CPUUsage:        s.Display(GaugeCPU),
		MemoryUsage:     s.Display(GaugeMemory),
		DiskUsage:       s.Display(GaugeDisk),
		AvailableMemory: s.Display(GaugeAvailableMemory),
	}
}

// Command names a session command.
type Command string

// Session commands.
const (
	CommandStart Command = "start"
	CommandStop  Command = "stop"
)

// View is an immutable snapshot of the live view model.
type View struct {
	Status   ConnectionStatus
	Messages []LogMessage
	// Evicted counts messages dropped by a bounded log.
	Evicted int

	System          SystemSnapshot
	SystemUpdatedAt time.Time

	Running bool
	Pending Command

	StreamConnected bool
	StreamError     string

	LastError   string
	LastErrorAt time.Time
}

// CanStart reports whether the start control is enabled.
func (v View) CanStart() bool {
	return !v.Running && v.Pending == ""
}

// CanStop reports whether the stop control is enabled.
func (v View) CanStop() bool {
	return v.Running && v.Pending == ""
}

// LastMessage returns the newest log entry.
func (v View) LastMessage() (LogMessage, bool) {
	if len(v.Messages) == 0 {
		return LogMessage{}, false
	}

	return v.Messages[len(v.Messages)-1], true
}
