package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lherron/hmp/internal/domain"
)

var jsonNull = []byte("null")

// Text is a string field that clients sometimes store as a number
// (room numbers, floor labels, phone numbers).
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("text field: expected string or number, got %s", data)
	}
	*t = Text(n.String())
	return nil
}

// String returns the trimmed value.
func (t Text) String() string {
	return strings.TrimSpace(string(t))
}

// Num is an optional number that also accepts numeric strings. Empty
// strings and null decode to an invalid Num, which encodes as null.
type Num struct {
	Value float64
	Valid bool
}

// NumOf returns a valid Num.
func NumOf(v float64) Num {
	return Num{Value: v, Valid: true}
}

// NumFromInt converts an optional integer.
func NumFromInt(v *int64) Num {
	if v == nil {
		return Num{}
	}
	return NumOf(float64(*v))
}

// NumFromFloat converts an optional float.
func NumFromFloat(v *float64) Num {
	if v == nil {
		return Num{}
	}
	return NumOf(*v)
}

func (n *Num) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*n = Num{}
	if bytes.Equal(data, jsonNull) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			// Non-numeric strings are treated as absent.
			return nil
		}
		*n = NumOf(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("number field: %w", err)
	}
	*n = NumOf(v)
	return nil
}

func (n Num) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return jsonNull, nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
}

// Int returns the value rounded down.
func (n Num) Int() (int64, bool) {
	if !n.Valid {
		return 0, false
	}
	return int64(math.Floor(n.Value)), true
}

// IntPtr is Int as an optional value.
func (n Num) IntPtr() *int64 {
	if v, ok := n.Int(); ok {
		return &v
	}
	return nil
}

// FloatPtr returns the value as an optional float.
func (n Num) FloatPtr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// IntOr returns the integer value or def when absent or zero.
func (n Num) IntOr(def int64) int64 {
	if v, ok := n.Int(); ok && v != 0 {
		return v
	}
	return def
}

// FloatOr returns the value or def when absent.
func (n Num) FloatOr(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Value
}

// Instant is a point in time stored either as epoch milliseconds or as an
// ISO-8601 string. It encodes as epoch milliseconds, or null.
type Instant struct {
	Time  time.Time
	Valid bool
}

// InstantOf converts an optional time.
func InstantOf(t *time.Time) Instant {
	if t == nil {
		return Instant{}
	}
	return Instant{Time: t.UTC(), Valid: true}
}

func (i *Instant) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*i = Instant{}
	if bytes.Equal(data, jsonNull) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if t, ok := domain.ParseTime(s); ok {
			*i = Instant{Time: t, Valid: true}
		}
		return nil
	}
	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("instant field: %w", err)
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return nil
	}
	*i = Instant{Time: time.UnixMilli(int64(ms)).UTC(), Valid: true}
	return nil
}

func (i Instant) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return jsonNull, nil
	}
	return []byte(strconv.FormatInt(i.Time.UnixMilli(), 10)), nil
}

// Ptr returns the time as an optional value.
func (i Instant) Ptr() *time.Time {
	if !i.Valid {
		return nil
	}
	t := i.Time
	return &t
}
