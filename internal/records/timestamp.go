package records

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamps travel as dd-MM-yyyy__HH:mm:ss:micros, e.g. 14-03-2024__09:30:00:000123.
const timestampLayout = "02-01-2006__15:04:05"

// Timestamp is a microsecond precision UTC instant in the services' wire format.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Microsecond)}
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	u := t.UTC()
	return u.Format(timestampLayout) + ":" + fmt.Sprintf("%06d", u.Nanosecond()/int(time.Microsecond))
}

func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	idx := strings.LastIndex(s, ":")
	if idx < 0 || len(s)-idx-1 != 6 {
		return Timestamp{}, fmt.Errorf("timestamp %q: want dd-MM-yyyy__HH:mm:ss:SSSSSS", s)
	}
	base, err := time.ParseInLocation(timestampLayout, s[:idx], time.UTC)
	if err != nil {
		return Timestamp{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	frac := s[idx+1:]
	if strings.IndexFunc(frac, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return Timestamp{}, fmt.Errorf("timestamp %q: microseconds must be six digits", s)
	}
	micros, err := strconv.Atoi(frac)
	if err != nil {
		return Timestamp{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return Timestamp{Time: base.Add(time.Duration(micros) * time.Microsecond)}, nil
}

func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Timestamp) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON shadows the promoted time.Time encoding.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = Timestamp{}
		return nil
	}
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	return t.UnmarshalText([]byte(s))
}
