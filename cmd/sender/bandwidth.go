package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var bandwidthRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-z/]*)$`)

// parseBandwidth parses bandwidth strings like "56kbit", "1mbit", "100KB"
// and returns bytes per second. Uses SI units (k=1000).
func parseBandwidth(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, nil
	}

	matches := bandwidthRe.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid bandwidth format: %s", s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}

	unit := matches[2]
	var multiplier float64 = 1
	isBytes := false

	switch unit {
	case "", "bps", "bit", "bits":
		multiplier = 1
	case "k", "kbit", "kbps":
		multiplier = 1000
	case "m", "mbit", "mbps":
		multiplier = 1000000
	case "g", "gbit", "gbps":
		multiplier = 1000000000
	case "b", "byte", "bytes":
		multiplier = 1
		isBytes = true
	case "kb", "kb/s":
		multiplier = 1000
		isBytes = true
	case "mb", "mb/s":
		multiplier = 1000000
		isBytes = true
	default:
		return 0, fmt.Errorf("unknown bandwidth unit: %s", unit)
	}

	bits := value * multiplier
	if isBytes {
		return int64(bits), nil // Already in bytes
	}
	return int64(bits / 8), nil // Convert bits to bytes
}
