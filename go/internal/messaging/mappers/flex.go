// Package mappers converts source-service payloads (camelCase, loosely
// typed) into the parameter structs of the local replica stores.
package mappers

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Bit is a "0"/"1" flag decoded from bool, string or numeric JSON values.
// Undecodable values stay empty so the caller can apply a field default.
type Bit string

func (b *Bit) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch s {
	case "null":
		*b = ""
		return nil
	case "true":
		*b = "1"
		return nil
	case "false":
		*b = "0"
		return nil
	}

	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		switch strings.ToLower(str) {
		case "true", "1", "yes", "y":
			*b = "1"
		case "false", "0", "no", "n":
			*b = "0"
		default:
			*b = ""
		}
		return nil
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if n != 0 {
			*b = "1"
		} else {
			*b = "0"
		}
		return nil
	}

	*b = ""
	return nil
}

// Or returns the decoded flag or def when the value was absent or unusable.
func (b Bit) Or(def string) string {
	if b == "" {
		return def
	}
	return string(b)
}

// flexTimeFormats are tried in order. Source services emit ISO timestamps
// with and without zone markers, plus bare dates.
var flexTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FlexTime decodes the timestamp formats used by upstream services.
// Unparseable values leave Valid false rather than failing the message.
type FlexTime struct {
	Time  time.Time
	Valid bool
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	t.Valid = false
	if string(data) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if s == "" {
		return nil
	}

	for _, format := range flexTimeFormats {
		if parsed, err := time.Parse(format, s); err == nil {
			t.Time = parsed
			t.Valid = true
			return nil
		}
	}
	return nil
}

// Or returns the parsed time or def when absent or unparseable.
func (t FlexTime) Or(def time.Time) time.Time {
	if !t.Valid {
		return def
	}
	return t.Time
}

// Ptr returns the parsed time or nil.
func (t FlexTime) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	tt := t.Time
	return &tt
}

// FlexString decodes a string from string or numeric JSON values, since
// upstream id fields arrive in either form.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*f = FlexString(str)
		return nil
	}
	*f = FlexString(s)
	return nil
}
