package domain

import (
	"fmt"
	"strings"
)

// Status is the verdict a validator reports for a single check.
type Status string

const (
	StatusGood Status = "good"
	StatusBad  Status = "bad"
)

// ParseStatus accepts "good"/"bad" in any letter case ("Good"/"Bad" are
// what deployed validators send) and returns the canonical lowercase form.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusGood:
		return StatusGood, nil
	case StatusBad:
		return StatusBad, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// IsUp reports whether the status counts as the target being reachable.
func (s Status) IsUp() bool { return s == StatusGood }

func (s Status) String() string { return string(s) }
