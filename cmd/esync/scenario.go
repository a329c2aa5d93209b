package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario describes which members of a region fail and which of their
// errors refuse to be destroyed.
type Scenario struct {
	Threads     int   `yaml:"threads"`
	Raise       []int `yaml:"raise"`
	FailDestroy []int `yaml:"fail_destroy"`
	Repeat      int   `yaml:"repeat"`
}

var errInvalidScenario = errors.New("invalid scenario")

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	return ParseScenario(f)
}

// ParseScenario decodes a YAML scenario. Unknown keys are rejected.
// Repeat defaults to 1.
func ParseScenario(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", errInvalidScenario)
		}
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if s.Repeat == 0 {
		s.Repeat = 1
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that every referenced thread exists.
func (s *Scenario) Validate() error {
	if s.Threads < 1 {
		return fmt.Errorf("%w: threads must be >= 1, got %d", errInvalidScenario, s.Threads)
	}
	if s.Repeat < 1 {
		return fmt.Errorf("%w: repeat must be >= 1, got %d", errInvalidScenario, s.Repeat)
	}
	for _, id := range s.Raise {
		if id < 0 || id >= s.Threads {
			return fmt.Errorf("%w: raise: thread %d out of range [0, %d)", errInvalidScenario, id, s.Threads)
		}
	}
	for _, id := range s.FailDestroy {
		if !slices.Contains(s.Raise, id) {
			return fmt.Errorf("%w: fail_destroy: thread %d does not raise", errInvalidScenario, id)
		}
	}
	return nil
}

func (s *Scenario) raises(id int) bool {
	return slices.Contains(s.Raise, id)
}

func (s *Scenario) failsDestroy(id int) bool {
	return slices.Contains(s.FailDestroy, id)
}
