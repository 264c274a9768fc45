package lockfile

import (
	"fmt"
	"strings"
)

// Mode selects how the lockfile is used.
type Mode int

const (
	Off Mode = iota
	Update
	Error
)

// ParseMode parses "off", "update" or "error", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "off":
		return Off, nil
	case "update":
		return Update, nil
	case "error":
		return Error, nil
	}
	return Off, fmt.Errorf("invalid lockfile mode %q: must be one of off, update, error", s)
}

func (m Mode) String() string {
	switch m {
	case Update:
		return "update"
	case Error:
		return "error"
	default:
		return "off"
	}
}

// Set implements pflag.Value.
func (m *Mode) Set(s string) error {
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Type implements pflag.Value.
func (m *Mode) Type() string { return "mode" }
