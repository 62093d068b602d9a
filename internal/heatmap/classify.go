package heatmap

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone lookups must not depend on the host's zoneinfo
)

// DefaultZone is the reference zone the dashboard is laid out in.
const DefaultZone = "America/Los_Angeles"

// ErrInvalidTimestamp is returned for missing or unparseable timestamps.
// Callers skip the record rather than failing the batch.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Slot is the (day, hour) bucket of an instant in the classifier's zone.
type Slot struct {
	DayOfWeek int // Sunday=0 … Saturday=6
	Hour      int // 0–23, zone-local
	Instant   time.Time
}

// Classifier resolves instants to slots in a fixed IANA zone.
type Classifier struct {
	loc *time.Location
}

func NewClassifier(zone string) (*Classifier, error) {
	if strings.TrimSpace(zone) == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", zone, err)
	}
	return &Classifier{loc: loc}, nil
}

// Zone returns the IANA name the classifier resolves in.
func (c *Classifier) Zone() string {
	return c.loc.String()
}

// Classify parses an ISO-8601 style timestamp and buckets it.
func (c *Classifier) Classify(ts string) (Slot, error) {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return Slot{}, err
	}
	return c.ClassifyTime(t), nil
}

// ClassifyTime buckets an already parsed instant.
func (c *Classifier) ClassifyTime(t time.Time) Slot {
	local := t.In(c.loc)
	return Slot{
		DayOfWeek: int(local.Weekday()),
		Hour:      local.Hour(),
		Instant:   t,
	}
}

// Layouts without an explicit offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02",
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
}

// Layouts carrying a zone abbreviation. time.Parse resolves those against
// time.Local, so the offset is fixed up from zoneAbbrevs afterwards.
var abbrevLayouts = []string{
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822,
	time.RFC850,
}

// zoneAbbrevs are the North American abbreviations RFC 822 defines, in
// seconds east of UTC. time.Parse reports GMT as UTC.
var zoneAbbrevs = map[string]int{
	"UTC": 0, "GMT": 0,
	"EST": -5 * 3600, "EDT": -4 * 3600,
	"CST": -6 * 3600, "CDT": -5 * 3600,
	"MST": -7 * 3600, "MDT": -6 * 3600,
	"PST": -8 * 3600, "PDT": -7 * 3600,
}

// ParseTimestamp accepts RFC 3339 and the handful of variants the ingestion
// sources emit (space separator, missing offset, RSS pubDate). The result
// does not depend on the host's local zone.
func ParseTimestamp(ts string) (time.Time, error) {
	s := strings.TrimSpace(ts)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range abbrevLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		name, _ := t.Zone()
		offset, ok := zoneAbbrevs[strings.ToUpper(name)]
		if !ok {
			return time.Time{}, fmt.Errorf("%w: unknown zone %q in %q", ErrInvalidTimestamp, name, ts)
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
			time.FixedZone(name, offset)), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
}
