// Package check validates a selected dependency graph: tool-version
// compatibility predicates, yanked-version policy and the root module's
// direct dependency versions.
package check

import (
	"fmt"
	"strings"
)

// Mode says what a failed check does.
type Mode int

const (
	// Off skips the check.
	Off Mode = iota
	// Warning reports findings and lets resolution continue.
	Warning
	// Error aborts resolution on the first finding.
	Error
)

// ParseMode parses "off", "warning" or "error", in any case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return Off, nil
	case "warning":
		return Warning, nil
	case "error":
		return Error, nil
	}
	return Off, fmt.Errorf("invalid mode %q: must be one of off, warning, error", s)
}

func (m Mode) String() string {
	switch m {
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	}
	return "OFF"
}

// Set implements pflag.Value.
func (m *Mode) Set(s string) error {
	v, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Type implements pflag.Value.
func (m *Mode) Type() string { return "mode" }
