package hostconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeSpan binds a YAML duration written in the host's native
// "HH:MM:SS[.fffffff]" textual form (the format host.json itself uses,
// inherited from the .NET TimeSpan type) rather than Go's
// time.ParseDuration format ("1h2m3s"). No library in the retrieval pack
// parses this format, so it is hand-rolled; see DESIGN.md.
type TimeSpan time.Duration

// Duration returns the span as a time.Duration.
func (t TimeSpan) Duration() time.Duration { return time.Duration(t) }

// UnmarshalYAML binds the "HH:MM:SS[.fffffff]" textual form. It uses the
// older callback-style unmarshaler signature, which yaml.v3 still honors,
// rather than yaml.v3's Node-based yaml.Unmarshaler.
func (t *TimeSpan) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var text string
	if err := unmarshal(&text); err != nil {
		return err
	}
	d, err := ParseTimeSpan(text)
	if err != nil {
		return err
	}
	*t = TimeSpan(d)
	return nil
}

// ParseTimeSpan parses "HH:MM:SS" or "HH:MM:SS.fffffff" into a
// time.Duration.
func ParseTimeSpan(text string) (time.Duration, error) {
	parts := strings.Split(text, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("hostconfig: invalid TimeSpan %q: expected HH:MM:SS", text)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("hostconfig: invalid TimeSpan hours in %q: %w", text, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("hostconfig: invalid TimeSpan minutes in %q: %w", text, err)
	}

	secondsText := parts[2]
	var whole, fracNanos int64
	if dot := strings.IndexByte(secondsText, '.'); dot >= 0 {
		wholeSeconds, err := strconv.Atoi(secondsText[:dot])
		if err != nil {
			return 0, fmt.Errorf("hostconfig: invalid TimeSpan seconds in %q: %w", text, err)
		}
		whole = int64(wholeSeconds)

		frac := secondsText[dot+1:]
		for len(frac) < 9 {
			frac += "0"
		}
		frac = frac[:9]
		fracVal, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("hostconfig: invalid TimeSpan fraction in %q: %w", text, err)
		}
		fracNanos = fracVal
	} else {
		wholeSeconds, err := strconv.Atoi(secondsText)
		if err != nil {
			return 0, fmt.Errorf("hostconfig: invalid TimeSpan seconds in %q: %w", text, err)
		}
		whole = int64(wholeSeconds)
	}

	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(whole)*time.Second +
		time.Duration(fracNanos)*time.Nanosecond
	return total, nil
}
