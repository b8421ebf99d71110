package users

import "time"

// IsOutsideThresholdPeriod reports whether more time than the given duration
// expression has elapsed since the reference timestamp.
func IsOutsideThresholdPeriod(since time.Time, expression string) (bool, error) {
	window, err := time.ParseDuration(expression)
	if err != nil {
		return false, err
	}
	return time.Since(since) > window, nil
}
