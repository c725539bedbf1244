package main

import (
	"strconv"
	"time"

	"github.com/pingcap/errors"
)

// parseDuration accepts Go durations and bare seconds
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Errorf("invalid duration %q", s)
	}
	return d, nil
}
