package gtfs

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseGTFSTime converts a GTFS "HH:MM:SS" field into an offset from
// midnight of the service day. Hours may be 24 or more: "25:30:00" is
// 1:30am on the following calendar day, still belonging to the previous
// service day's schedule. The result is a duration, not a wall-clock time.
func ParseGTFSTime(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid GTFS time %q", s)
	}

	hours, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("invalid hours in GTFS time %q", s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minutes in GTFS time %q", s)
	}
	seconds, err := strconv.Atoi(parts[2])
	if err != nil || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("invalid seconds in GTFS time %q", s)
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second, nil
}
