package core

import (
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// DisplayLayout is the default layout used when rendering agent timestamps.
const DisplayLayout = "Jan 2, 2006, 3:04:05 PM MST"

// FormatFileSize renders a byte count using base-1024 units with at most two
// decimals, e.g. 1536 -> "1.5 KB". Zero renders as "0 Bytes".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	unit := 0
	scale := 1.0
	for unit < len(sizeUnits)-1 && float64(bytes) >= scale*1024 {
		scale *= 1024
		unit++
	}
	value := math.Round(float64(bytes)/scale*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[unit]
}

// FormatTimestamp renders an ISO-8601 timestamp in loc. Values that do not
// parse are returned unchanged.
func FormatTimestamp(iso string, loc *time.Location) string {
	t, ok := parseTimestamp(iso)
	if !ok {
		return iso
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DisplayLayout)
}

// RelativeTimestamp renders how long ago the timestamp was, relative to now.
func RelativeTimestamp(iso string, now time.Time) string {
	t, ok := parseTimestamp(iso)
	if !ok {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func parseTimestamp(iso string) (time.Time, bool) {
	if iso == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.Parse(layout, iso); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
