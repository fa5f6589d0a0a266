// Package history persists the message log of each dashboard or watch session.
//
// Every session gets its own directory holding a gzip-compressed JSONL file,
// an uncompressed live copy that followers can tail, and a meta.json used for
// listing and pruning. If the process dies before Close, readers fall back to
// the live copy.
package history

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/voxdash/voxctl/internal/dashboard"
)

const (
	messagesFileName     = "messages.jsonl.gz"
	messagesLiveFileName = "messages.live.jsonl"
	metaFileName         = "meta.json"
)

// Record is one persisted log message.
type Record struct {
	SessionID string    `json:"sessionId"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
}

// Clock renders the arrival time the way the dashboard shows it.
func (r Record) Clock() string {
	return r.Timestamp.Local().Format("15:04:05")
}

// Meta describes a session for discovery and pruning.
type Meta struct {
	SessionID    string     `json:"sessionId"`
	APIURL       string     `json:"apiUrl,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	ClosedAt     *time.Time `json:"closedAt,omitempty"`
	MessageCount uint64     `json:"messageCount"`
}

// Options configures a Recorder.
type Options struct {
	SessionID string
	Dir       string
	APIURL    string
}

// Recorder appends one session's messages to disk.
type Recorder struct {
	mu sync.Mutex

	meta Meta
	dir  string
	seq  uint64

	file     *os.File
	gz       *gzip.Writer
	bw       *bufio.Writer
	liveFile *os.File
	liveBW   *bufio.Writer

	closed bool
	err    error
}

// NewRecorder creates the session directory and opens its files.
func NewRecorder(opts Options) (*Recorder, error) {
	if err := validateSessionID(opts.SessionID); err != nil {
		return nil, err
	}

	if opts.Dir == "" {
		return nil, errors.New("history directory is required")
	}

	sessionDir := filepath.Join(opts.Dir, opts.SessionID)
	if err := os.MkdirAll(sessionDir, 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(sessionDir, messagesFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // session id is validated
	if err != nil {
		return nil, fmt.Errorf("open history messages: %w", err)
	}

	liveFile, err := os.OpenFile(filepath.Join(sessionDir, messagesLiveFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // session id is validated
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open live history messages: %w", err)
	}

	gz := gzip.NewWriter(f)

	r := &Recorder{
		meta: Meta{
			SessionID: opts.SessionID,
			APIURL:    opts.APIURL,
			StartedAt: time.Now().UTC(),
		},
		dir:      sessionDir,
		file:     f,
		gz:       gz,
		bw:       bufio.NewWriterSize(gz, 64*1024),
		liveFile: liveFile,
		liveBW:   bufio.NewWriterSize(liveFile, 16*1024),
	}

	if err := r.writeMeta(); err != nil {
		_ = r.Close()
		return nil, err
	}

	return r, nil
}

// SessionID returns the recorded session's id.
func (r *Recorder) SessionID() string {
	return r.meta.SessionID
}

// Append writes one message to both files.
func (r *Recorder) Append(msg dashboard.LogMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New("history recorder is closed")
	}

	r.seq++

	line, err := json.Marshal(&Record{
		SessionID: r.meta.SessionID,
		Seq:       r.seq,
		Timestamp: msg.Timestamp.UTC(),
		Type:      string(msg.Type),
		Content:   msg.Content,
	})
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}

	line = append(line, '\n')

	if _, err := r.bw.Write(line); err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}

	if _, err := r.liveBW.Write(line); err != nil {
		return fmt.Errorf("encode live history record: %w", err)
	}

	if err := r.liveBW.Flush(); err != nil {
		return fmt.Errorf("flush live history record: %w", err)
	}

	return nil
}

// Observe is a dashboard.Observer that records every appended message. The
// first write error is kept and returned by Err; later appends are skipped.
func (r *Recorder) Observe(change dashboard.Change, view dashboard.View) {
	if !change.Has(dashboard.ChangeLogAppended) {
		return
	}

	msg, ok := view.LastMessage()
	if !ok {
		return
	}

	if r.Err() != nil {
		return
	}

	if err := r.Append(msg); err != nil {
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
	}
}

// Err returns the first error hit by Observe.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

// Close flushes the compressed file and stamps meta.json.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true

	now := time.Now().UTC()
	r.meta.ClosedAt = &now
	r.meta.MessageCount = r.seq

	errs := []error{
		r.writeMeta(),
		r.bw.Flush(),
		r.liveBW.Flush(),
		r.gz.Close(),
		r.file.Close(),
		r.liveFile.Close(),
	}

	return errors.Join(errs...)
}

func (r *Recorder) writeMeta() error {
	data, err := json.Marshal(&r.meta)
	if err != nil {
		return fmt.Errorf("marshal history meta: %w", err)
	}

	if err := os.WriteFile(filepath.Join(r.dir, metaFileName), data, 0o600); err != nil {
		return fmt.Errorf("write history meta: %w", err)
	}

	return nil
}

func validateSessionID(sessionID string) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}

	if sessionID != filepath.Base(sessionID) || strings.Contains(sessionID, "..") || strings.ContainsAny(sessionID, `/\`) {
		return fmt.Errorf("invalid session id %q", sessionID)
	}

	return nil
}
