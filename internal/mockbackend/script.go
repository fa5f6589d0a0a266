package mockbackend

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed scripts/demo.yaml
var demoScript []byte

// Step is one scripted push event. A step sets either a status (with an
// optional color) or a message (type and content), after waiting After.
type Step struct {
	After   time.Duration `yaml:"after,omitempty"`
	Status  string        `yaml:"status,omitempty"`
	Color   string        `yaml:"color,omitempty"`
	Type    string        `yaml:"type,omitempty"`
	Content string        `yaml:"content,omitempty"`
}

// IsStatus reports whether the step is a status update.
func (s Step) IsStatus() bool {
	return s.Status != ""
}

// Script is the sequence played while the assistant runs.
type Script struct {
	Loop  bool   `yaml:"loop"`
	Steps []Step `yaml:"steps"`
}

// ParseScript decodes and validates a YAML script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// LoadScript reads a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	return ParseScript(data)
}

// DefaultScript returns the built-in demo conversation.
func DefaultScript() *Script {
	s, err := ParseScript(demoScript)
	if err != nil {
		panic(fmt.Sprintf("embedded demo script: %v", err))
	}

	return s
}

func (s *Script) validate() error {
	if len(s.Steps) == 0 {
		return errors.New("script has no steps")
	}

	var total time.Duration

	for i, step := range s.Steps {
		switch {
		case step.After < 0:
			return fmt.Errorf("step %d: negative delay", i+1)
		case step.IsStatus() && step.Content != "":
			return fmt.Errorf("step %d: sets both a status and a message", i+1)
		case !step.IsStatus() && (step.Type == "" || step.Content == ""):
			return fmt.Errorf("step %d: needs a status or a message type and content", i+1)
		}

		total += step.After
	}

	// A zero-delay loop would flood every subscriber.
	if s.Loop && total == 0 {
		return errors.New("looping script needs at least one delay")
	}

	return nil
}
