package transit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// SecondsPerDay is the length of a service day used by opening hours.
	SecondsPerDay = 24 * 60 * 60

	// TimeNotSet marks an unreachable or unavailable time.
	TimeNotSet = math.MinInt32

	// CostUnitsPerSecond converts seconds into generalized cost units.
	CostUnitsPerSecond = 100

	// DefaultWalkReluctance is applied to walking legs built without an explicit cost.
	DefaultWalkReluctance = 2.0
)

// ParseTime parses a service-day time like "0:02", "00:02:11" or "25:10:00" into seconds.
func ParseTime(s string) (int, error) {
	s = strings.TrimSpace(s)
	sign := 1
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}

	total := 0
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time format: %q", s)
		}
		if i > 0 && v > 59 {
			return 0, fmt.Errorf("invalid time format: %q", s)
		}
		switch i {
		case 0:
			total += v * 3600
		case 1:
			total += v * 60
		case 2:
			total += v
		}
	}
	return sign * total, nil
}

// MustParseTime is ParseTime for fixtures and constants; it panics on bad input.
func MustParseTime(s string) int {
	t, err := ParseTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FormatTime renders seconds as "H:MM" or "H:MM:SS" when seconds are present.
func FormatTime(t int) string {
	if t == TimeNotSet {
		return "-"
	}
	sign := ""
	if t < 0 {
		sign = "-"
		t = -t
	}
	h, m, s := t/3600, (t%3600)/60, t%60
	if s == 0 {
		return fmt.Sprintf("%s%d:%02d", sign, h, m)
	}
	return fmt.Sprintf("%s%d:%02d:%02d", sign, h, m, s)
}

// ParseDuration parses a Go duration string like "4m20s" into whole seconds.
func ParseDuration(s string) (int, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %w", err)
	}
	return int(d / time.Second), nil
}

// FormatDuration renders seconds in compact form: "30s", "4m20s", "1h2m".
func FormatDuration(seconds int) string {
	if seconds == 0 {
		return "0s"
	}
	var b strings.Builder
	if seconds < 0 {
		b.WriteByte('-')
		seconds = -seconds
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		fmt.Fprintf(&b, "%dh", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dm", m)
	}
	if s > 0 {
		fmt.Fprintf(&b, "%ds", s)
	}
	return b.String()
}

// FormatCost renders cost units as seconds with thousands separators: "C₁1_510".
func FormatCost(cost int) string {
	sign := ""
	if cost < 0 {
		sign = "-"
		cost = -cost
	}
	whole, frac := cost/CostUnitsPerSecond, cost%CostUnitsPerSecond

	digits := strconv.Itoa(whole)
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('_')
		}
		b.WriteRune(c)
	}
	if frac != 0 {
		fmt.Fprintf(&b, ".%02d", frac)
	}
	return "C₁" + sign + b.String()
}

// WalkCost returns the generalized cost of walking for the given duration.
func WalkCost(duration int, reluctance float64) int {
	return int(math.Round(float64(duration) * reluctance * CostUnitsPerSecond))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
