package timeutil

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// TimestampLayout is the whole-seconds part of a dataset timestamp line.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrMalformedTimestamp is wrapped by every ParseTimestamp failure.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// Location is the zone the whole-seconds portion is read in. The digits are
// taken as standard (non-DST) local time and the zone's current standard
// offset is added back, so they land on the epoch unchanged unless the zone's
// standard offset has moved since the recording.
var Location = time.Local

// ParseTimestamp converts "YYYY-MM-DD HH:MM:SS.fffffffff" into milliseconds
// since the Unix epoch. The fraction may have any number of digits and is
// truncated, never rounded, to millisecond resolution.
func ParseTimestamp(text string) (int64, error) {
	text = strings.TrimSpace(text)
	whole, frac, _ := strings.Cut(text, ".")

	wall, err := time.ParseInLocation(TimestampLayout, whole, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrMalformedTimestamp, text, err)
	}
	// DST never applies, so times inside a spring-forward gap keep their digits.
	then := standardOffset(wall, Location)
	now := standardOffset(time.Now(), Location)
	secs := wall.Unix() - int64(then) + int64(now)

	var ms int64
	for i := 0; i < len(frac); i++ {
		c := frac[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w %q: bad fractional digit %q", ErrMalformedTimestamp, text, c)
		}
		if i < 3 {
			ms = ms*10 + int64(c-'0')
		}
	}
	for i := len(frac); i < 3; i++ {
		ms *= 10
	}

	return secs*1000 + ms, nil
}

// standardOffset returns the non-DST offset of loc around t, in seconds east
// of UTC.
func standardOffset(t time.Time, loc *time.Location) int {
	t = t.In(loc)
	for i := 0; i < 12 && t.IsDST(); i++ {
		t = t.AddDate(0, -1, 0)
	}
	_, offset := t.Zone()
	return offset
}

// ReadTimestamps parses one timestamp per non-blank line of r.
func ReadTimestamps(r io.Reader) ([]int64, error) {
	var out []int64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		ts, err := ParseTimestamp(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, ts)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read timestamps: %w", err)
	}
	return out, nil
}
