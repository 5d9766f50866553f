package domain

import (
	"strconv"
	"time"
)

// DurationField is a whole number of seconds as it appears in the routing
// document ("timeout: 30"), carried internally as a time.Duration. Kept
// distinct from time.Duration's own marshalling (which would round-trip
// as nanoseconds) since the config document is meant to be hand-edited.
type DurationField time.Duration

// Seconds returns the field as whole seconds.
func (d DurationField) Seconds() int { return int(time.Duration(d) / time.Second) }

// Duration returns the field as a time.Duration.
func (d DurationField) Duration() time.Duration { return time.Duration(d) }

// MarshalYAML emits the field as a bare integer number of seconds.
func (d DurationField) MarshalYAML() (interface{}, error) {
	return d.Seconds(), nil
}

// UnmarshalYAML accepts a bare integer number of seconds.
func (d *DurationField) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var seconds int
	if err := unmarshal(&seconds); err != nil {
		return err
	}
	*d = DurationField(time.Duration(seconds) * time.Second)
	return nil
}

// MarshalJSON emits the field as a bare integer number of seconds, matching
// the admin API's JSON view of the same document.
func (d DurationField) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(d.Seconds())), nil
}

// UnmarshalJSON accepts a bare integer number of seconds.
func (d *DurationField) UnmarshalJSON(b []byte) error {
	seconds, err := strconv.Atoi(string(b))
	if err != nil {
		return err
	}
	*d = DurationField(time.Duration(seconds) * time.Second)
	return nil
}
