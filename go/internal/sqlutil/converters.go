package sqlutil

import "time"

// Helper functions for moving between Go pointers and scanned nullable values.

// StringOrNil returns nil for the empty string so it scans as SQL NULL.
func StringOrNil(val string) *string {
	if val == "" {
		return nil
	}
	return &val
}

// StringOr returns the pointed-to string or a default when nil.
func StringOr(val *string, defaultVal string) string {
	if val == nil {
		return defaultVal
	}
	return *val
}

// TimeOrNil returns nil for the zero time so it scans as SQL NULL.
func TimeOrNil(val time.Time) *time.Time {
	if val.IsZero() {
		return nil
	}
	return &val
}
