package race

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// isoDuration accepts the time-based subset of ISO-8601 durations used for
// deadlines: PnW, PnD and the T-section with H, M and fractional S.
var isoDuration = regexp.MustCompile(`^P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

var isoUnits = []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}

// ParseISODuration parses strings such as "PT2H", "PT0.05S" or "P1DT30M".
// Year and month designators are rejected because their length is calendar dependent.
func ParseISODuration(s string) (time.Duration, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	m := isoDuration.FindStringSubmatch(raw)
	if m == nil || raw == "P" || strings.HasSuffix(raw, "T") {
		return 0, fmt.Errorf("race: invalid ISO-8601 duration %q", s)
	}
	var total float64
	for i, unit := range isoUnits {
		part := m[i+1]
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("race: invalid ISO-8601 duration %q: %w", s, err)
		}
		total += v * float64(unit)
	}
	if total > math.MaxInt64 {
		return 0, fmt.Errorf("race: ISO-8601 duration %q overflows", s)
	}
	return time.Duration(math.Round(total)), nil
}

// FormatISODuration renders d using hours, minutes and seconds ("PT2H", "PT0.05S").
func FormatISODuration(d time.Duration) string {
	if d <= 0 {
		return "PT0S"
	}
	var b strings.Builder
	b.WriteString("PT")
	if h := d / time.Hour; h > 0 {
		fmt.Fprintf(&b, "%dH", h)
		d -= h * time.Hour
	}
	if m := d / time.Minute; m > 0 {
		fmt.Fprintf(&b, "%dM", m)
		d -= m * time.Minute
	}
	if d > 0 {
		b.WriteString(strconv.FormatFloat(d.Seconds(), 'f', -1, 64))
		b.WriteString("S")
	}
	return b.String()
}
