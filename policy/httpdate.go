package policy

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Preferred HTTP-date format, RFC 9110 section 5.6.7:
// Sun, 06 Nov 1994 08:49:37 GMT
const imfDateLayout = "Mon, 02 Jan 2006 15:04:05 MST"

var errNotGMT = errors.New("http date zone is not GMT")

// parseHTTPDate parses an HTTP-date field value. All three formats of
// RFC 9110 are accepted (IMF-fixdate, obsolete RFC 850 and asctime).
// Matching is case-insensitive as allowed for cache recipients, but a zone
// abbreviation other than GMT is rejected as invalid for expiration
// calculation.
func parseHTTPDate(value string) (time.Time, error) {
	str := strings.ToUpper(strings.TrimSpace(value))
	if date, err := time.Parse(imfDateLayout, str); err == nil {
		return date, checkGMT(date)
	}
	if date, err := time.Parse(time.RFC850, str); err == nil {
		return date, checkGMT(date)
	}
	// asctime dates carry no zone and are assumed to be UTC
	return time.Parse(time.ANSIC, str)
}

func checkGMT(date time.Time) error {
	if date.Location().String() != "GMT" {
		return errNotGMT
	}
	return nil
}

// formatHTTPDate renders a timestamp in IMF-fixdate form, the only format
// a sender may generate.
func formatHTTPDate(date time.Time) string {
	return date.UTC().Format(http.TimeFormat)
}

// deltaSecondsCap is the value mandated by RFC 9111 section 1.2.2 for
// delta-seconds that overflow a 31-bit non-negative range. It is emitted
// literally rather than wrapped.
const deltaSecondsCap = 2147483648

// parseDeltaSeconds parses a delta-seconds value: a non-negative decimal
// integer number of seconds. Values too large to represent are capped
// rather than rejected.
func parseDeltaSeconds(value string) (time.Duration, error) {
	seconds, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, err
	}
	if seconds > deltaSecondsCap {
		seconds = deltaSecondsCap
	}
	return time.Duration(seconds) * time.Second, nil
}

// formatDeltaSeconds renders a duration as whole delta-seconds, capping at
// 2147483648 when the value would overflow a 32-bit signed integer.
func formatDeltaSeconds(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	if seconds >= deltaSecondsCap {
		return "2147483648"
	}
	return strconv.FormatInt(seconds, 10)
}
