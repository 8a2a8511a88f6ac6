// Package calc implements retention-expression time math: parsing
// "Ny Nm Nw Nd" durations and deriving a start timestamp from "now".
package calc

import (
	"regexp"
	"strconv"
	"time"

	"github.com/sapcc/alertmagnet/internal/errs"
)

const (
	daysPerYear  = 365
	daysPerMonth = 28
	daysPerWeek  = 7
)

var retentionPattern = regexp.MustCompile(`^(?:(\d+)y)?(?:(\d+)m)?(?:(\d+)w)?(?:(\d+)d)?$`)

// ParseRetention parses a retention expression of the form "Ny Nm Nw
// Nd" where every component is optional and, when present, components
// must appear in that order. An empty string yields a zero duration.
// Malformed input returns an errs.ErrConfig-wrapped error.
func ParseRetention(expr string) (time.Duration, error) {
	m := retentionPattern.FindStringSubmatch(expr)
	if m == nil {
		return 0, errs.Config("invalid retention expression %q", expr)
	}

	years, err := atoiDefault(m[1])
	if err != nil {
		return 0, errs.Config("invalid retention expression %q: %v", expr, err)
	}
	months, err := atoiDefault(m[2])
	if err != nil {
		return 0, errs.Config("invalid retention expression %q: %v", expr, err)
	}
	weeks, err := atoiDefault(m[3])
	if err != nil {
		return 0, errs.Config("invalid retention expression %q: %v", expr, err)
	}
	days, err := atoiDefault(m[4])
	if err != nil {
		return 0, errs.Config("invalid retention expression %q: %v", expr, err)
	}

	totalDays := years*daysPerYear + months*daysPerMonth + weeks*daysPerWeek + days

	return time.Duration(totalDays) * 24 * time.Hour, nil
}

func atoiDefault(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// ComputeStart returns now minus the parsed retention expression.
func ComputeStart(now time.Time, expr string) (time.Time, error) {
	d, err := ParseRetention(expr)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-d), nil
}
