package history

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrSessionNotFound is returned for a session id with no directory.
var ErrSessionNotFound = errors.New("history session not found")

// Session describes one stored session.
type Session struct {
	Meta
	Path string
}

// Closed reports whether the session finished cleanly.
func (s Session) Closed() bool {
	return s.ClosedAt != nil
}

// ListSessions returns sessions under rootDir, newest first. A missing root
// yields no sessions.
func ListSessions(rootDir string) ([]Session, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("list history sessions: %w", err)
	}

	sessions := make([]Session, 0, len(entries))

	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}

		dir := filepath.Join(rootDir, ent.Name())

		meta, err := readMeta(dir)
		if err != nil {
			continue
		}

		sessions = append(sessions, Session{Meta: meta, Path: dir})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})

	return sessions, nil
}

// FindSession resolves an id or unique id prefix to a session.
func FindSession(rootDir, idOrPrefix string) (Session, error) {
	sessions, err := ListSessions(rootDir)
	if err != nil {
		return Session{}, err
	}

	var matches []Session

	for _, s := range sessions {
		if s.SessionID == idOrPrefix {
			return s, nil
		}

		if idOrPrefix != "" && strings.HasPrefix(s.SessionID, idOrPrefix) {
			matches = append(matches, s)
		}
	}

	switch len(matches) {
	case 0:
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return Session{}, fmt.Errorf("session prefix %q is ambiguous (%d matches)", idOrPrefix, len(matches))
	}
}

func readMeta(dir string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFileName)) //nolint:gosec // controlled directory
	if err != nil {
		return Meta{}, err
	}

	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, err
	}

	return meta, nil
}

// ReadRecords reads every message of a session. A session that never closed
// is read from its live file.
func ReadRecords(rootDir, sessionID string) (records []Record, err error) {
	if validateErr := validateSessionID(sessionID); validateErr != nil {
		return nil, validateErr
	}

	sessionDir := filepath.Join(rootDir, sessionID)
	if _, statErr := os.Stat(sessionDir); os.IsNotExist(statErr) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	if meta, metaErr := readMeta(sessionDir); metaErr != nil || meta.ClosedAt == nil {
		return readLiveFile(filepath.Join(sessionDir, messagesLiveFileName))
	}

	file, err := os.Open(filepath.Join(sessionDir, messagesFileName)) //nolint:gosec // controlled path
	if err != nil {
		if os.IsNotExist(err) {
			return readLiveFile(filepath.Join(sessionDir, messagesLiveFileName))
		}

		return nil, fmt.Errorf("open history messages: %w", err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	return scanRecords(gzipReader)
}

func readLiveFile(path string) ([]Record, error) {
	file, err := os.Open(path) //nolint:gosec // controlled path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("open live history messages: %w", err)
	}
	defer file.Close()

	return scanRecords(file)
}

func scanRecords(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var records []Record

	for scanner.Scan() {
		trimmed := bytes.TrimSpace(scanner.Bytes())
		if len(trimmed) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			continue
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return records, fmt.Errorf("scan history messages: %w", err)
	}

	return records, nil
}

// ReadLiveFrom reads records appended to the live file after offset and
// returns the offset to resume from.
func ReadLiveFrom(rootDir, sessionID string, offset int64) (records []Record, nextOffset int64, err error) {
	if validateErr := validateSessionID(sessionID); validateErr != nil {
		return nil, offset, validateErr
	}

	if offset < 0 {
		return nil, offset, errors.New("offset must be >= 0")
	}

	file, err := os.Open(filepath.Join(rootDir, sessionID, messagesLiveFileName)) //nolint:gosec // controlled path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, offset, nil
		}

		return nil, offset, fmt.Errorf("open live history messages: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat live history file: %w", err)
	}

	if offset > stat.Size() {
		offset = stat.Size()
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek live history file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	nextOffset = offset

	for {
		line, readErr := reader.ReadBytes('\n')

		// A trailing line without a newline is still being written; resume
		// from before it on the next read.
		if len(line) > 0 && line[len(line)-1] == '\n' {
			nextOffset += int64(len(line))

			var rec Record
			if json.Unmarshal(bytes.TrimSpace(line), &rec) == nil {
				records = append(records, rec)
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return records, nextOffset, nil
			}

			return records, nextOffset, fmt.Errorf("read live history line: %w", readErr)
		}
	}
}

// Filter keeps records whose content or type contains query, case-insensitively.
func Filter(records []Record, query string) []Record {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return records
	}

	out := make([]Record, 0, len(records))

	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.Content), query) || strings.Contains(strings.ToLower(rec.Type), query) {
			out = append(out, rec)
		}
	}

	return out
}

// PruneOlderThan removes sessions that closed (or, if never closed, started)
// before cutoff.
func PruneOlderThan(rootDir string, cutoff time.Time) (int, error) {
	sessions, err := ListSessions(rootDir)
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, session := range sessions {
		reference := session.StartedAt
		if session.ClosedAt != nil {
			reference = *session.ClosedAt
		}

		if !reference.Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(session.Path); err != nil {
			return removed, fmt.Errorf("prune history session %q: %w", session.SessionID, err)
		}

		removed++
	}

	return removed, nil
}
