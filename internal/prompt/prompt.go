// Package prompt provides interactive prompts for the voxctl CLI.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/voxdash/voxctl/internal/history"
	"github.com/voxdash/voxctl/internal/output"
)

// errCanceled is returned when input ends before an answer is given.
var errCanceled = errors.New("prompt canceled")

// IsCanceled reports whether err came from closed input.
func IsCanceled(err error) bool {
	return errors.Is(err, errCanceled)
}

// Prompter handles interactive prompts.
type Prompter struct {
	out         *output.Writer
	reader      *bufio.Reader
	interactive bool
}

// New creates a Prompter reading from stdin.
func New(out *output.Writer) *Prompter {
	return &Prompter{
		out:         out,
		reader:      bufio.NewReader(os.Stdin),
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// NewWithReader creates a Prompter reading answers from r, treated as interactive.
func NewWithReader(out *output.Writer, r io.Reader) *Prompter {
	return &Prompter{
		out:         out,
		reader:      bufio.NewReader(r),
		interactive: true,
	}
}

// CanPrompt returns true if interactive prompts are available.
func (p *Prompter) CanPrompt() bool {
	return p.interactive && !p.out.NoInput && !p.out.JSON
}

// Confirm prompts for a yes/no confirmation.
func (p *Prompter) Confirm(message string, defaultValue bool) (bool, error) {
	defaultStr := "y/N"
	if defaultValue {
		defaultStr = "Y/n"
	}

	p.out.Print("%s [%s]: ", message, defaultStr)

	input, err := p.readLine()
	if err != nil {
		return defaultValue, err
	}

	input = strings.ToLower(input)
	if input == "" {
		return defaultValue, nil
	}

	return input == "y" || input == "yes", nil
}

// Select prompts the user to select from a list of options.
func (p *Prompter) Select(message string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, errors.New("nothing to select")
	}

	p.out.Println(message)

	for i, opt := range options {
		p.out.Print("  [%d] %s\n", i+1, opt)
	}

	p.out.Println()

	for {
		if len(options) == 1 {
			p.out.Print("Select [1]: ")
		} else {
			p.out.Print("Select [1-%d]: ", len(options))
		}

		input, err := p.readLine()
		if err != nil {
			return -1, err
		}

		if input == "" {
			continue
		}

		num, err := strconv.Atoi(input)
		if err != nil || num < 1 || num > len(options) {
			p.out.Warning("Invalid selection. Please enter a number between 1 and %d", len(options))
			continue
		}

		return num - 1, nil
	}
}

// SelectSession prompts the user to pick one of the recorded sessions.
func (p *Prompter) SelectSession(sessions []history.Session) (history.Session, error) {
	options := make([]string, len(sessions))

	for i, s := range sessions {
		state := "open"
		if s.Closed() {
			state = fmt.Sprintf("%d messages", s.MessageCount)
		}

		// Format: 3f2a9c1e  2026-03-14 14:30  12 messages
		options[i] = fmt.Sprintf("%-8.8s  %s  %s", s.SessionID, s.StartedAt.Local().Format("2006-01-02 15:04"), state)
	}

	idx, err := p.Select("Recorded sessions:", options)
	if err != nil {
		return history.Session{}, err
	}

	return sessions[idx], nil
}

func (p *Prompter) readLine() (string, error) {
	input, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(input) == "" {
			p.out.Println()
			return "", errCanceled
		}

		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
	}

	return strings.TrimSpace(input), nil
}
