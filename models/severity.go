package models

import "strings"

// SeverityLevel is the normalised severity of a vulnerability notification.
type SeverityLevel string

const (
	SeverityCritical SeverityLevel = "CRITICAL"
	SeverityHigh     SeverityLevel = "HIGH"
	SeverityMedium   SeverityLevel = "MEDIUM"
	SeverityLow      SeverityLevel = "LOW"
	SeverityInfo     SeverityLevel = "INFO"
	SeverityUnknown  SeverityLevel = "UNKNOWN"
)

// Weight returns a numeric weight for sorting (higher = more severe).
func (s SeverityLevel) Weight() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as min. An empty min matches everything.
func (s SeverityLevel) AtLeast(min SeverityLevel) bool {
	if min == "" {
		return true
	}
	return s.Weight() >= min.Weight()
}

func (s SeverityLevel) String() string {
	return string(s)
}

// MapSeverity normalises hub severity strings to SeverityLevel.
func MapSeverity(raw string) SeverityLevel {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CRITICAL":
		return SeverityCritical
	case "HIGH":
		return SeverityHigh
	case "MEDIUM", "MODERATE":
		return SeverityMedium
	case "LOW":
		return SeverityLow
	case "INFO", "NONE", "NEGLIGIBLE":
		return SeverityInfo
	default:
		return SeverityUnknown
	}
}
