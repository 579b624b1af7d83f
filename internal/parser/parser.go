package parser

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Fields is a decoded JSON object with decode-with-default accessors. Every
// variant reads through these so a missing or mistyped field resolves the
// same way everywhere: zero, empty, the supplied default, or nil for the
// *Null forms.
type Fields map[string]any

// Has reports whether key is present and not null.
func (f Fields) Has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

// Str returns the string at key, or "" when absent or not a string.
func (f Fields) Str(key string) string {
	s, _ := f[key].(string)
	return s
}

// StrDefault returns the string at key, or def when absent.
func (f Fields) StrDefault(key, def string) string {
	if s, ok := f[key].(string); ok {
		return s
	}
	return def
}

// StrNull returns nil when key is absent or not a string.
func (f Fields) StrNull(key string) *string {
	if s, ok := f[key].(string); ok {
		return &s
	}
	return nil
}

// Int returns the integer at key, or def.
func (f Fields) Int(key string, def int) int {
	if v, ok := toInt64(f[key]); ok {
		return int(v)
	}
	return def
}

// IntNull returns nil when key is absent or not an integer.
func (f Fields) IntNull(key string) *int {
	if v, ok := toInt64(f[key]); ok {
		i := int(v)
		return &i
	}
	return nil
}

// Long returns the 64-bit integer at key, or def.
func (f Fields) Long(key string, def int64) int64 {
	if v, ok := toInt64(f[key]); ok {
		return v
	}
	return def
}

// LongNull returns nil when key is absent or not an integer.
func (f Fields) LongNull(key string) *int64 {
	if v, ok := toInt64(f[key]); ok {
		return &v
	}
	return nil
}

// Double returns the number at key, or def.
func (f Fields) Double(key string, def float64) float64 {
	if v, ok := toFloat64(f[key]); ok {
		return v
	}
	return def
}

// DoubleNull returns nil when key is absent or not a number.
func (f Fields) DoubleNull(key string) *float64 {
	if v, ok := toFloat64(f[key]); ok {
		return &v
	}
	return nil
}

// Bool returns the boolean at key, or def.
func (f Fields) Bool(key string, def bool) bool {
	if b, ok := f[key].(bool); ok {
		return b
	}
	return def
}

// Object returns the nested object at key, or nil.
func (f Fields) Object(key string) Fields {
	if m, ok := f[key].(map[string]any); ok {
		return Fields(m)
	}
	return nil
}

// Array returns the array at key, or nil.
func (f Fields) Array(key string) []any {
	a, _ := f[key].([]any)
	return a
}

// Doubles returns the array at key as numbers, or nil when absent or when
// any element is not a number.
func (f Fields) Doubles(key string) []float64 {
	arr, ok := f[key].([]any)
	if !ok {
		return nil
	}
	out := make([]float64, len(arr))
	for i, v := range arr {
		fl, ok := toFloat64(v)
		if !ok {
			return nil
		}
		out[i] = fl
	}
	return out
}

// Objects returns the object elements of the array at key, skipping anything else.
func (f Fields) Objects(key string) []Fields {
	arr := f.Array(key)
	if arr == nil {
		return nil
	}
	out := make([]Fields, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, Fields(m))
		}
	}
	return out
}

// TimeUTC parses the timestamp at key. The zero time is returned when the
// field is absent or unparseable.
func (f Fields) TimeUTC(key string) time.Time {
	ts, err := FastTimestamp(f.Str(key))
	if err != nil {
		return time.Time{}
	}
	return ts
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if fl, err := n.Float64(); err == nil && fl == math.Trunc(fl) &&
			fl >= math.MinInt64 && fl <= math.MaxInt64 {
			return int64(fl), true
		}
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		// some older records carry numbers as strings
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		if fl, err := n.Float64(); err == nil {
			return fl, true
		}
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// FastTimestamp parses journal timestamps ("2006-01-02T15:04:05Z", optional
// fraction, 'T' or space separator, optional Z) as UTC. Anything else goes
// through time.Parse with RFC 3339 and is converted to UTC.
func FastTimestamp(ts string) (time.Time, error) {
	if len(ts) < 19 || (ts[10] != 'T' && ts[10] != ' ') || ts[4] != '-' || ts[7] != '-' ||
		ts[13] != ':' || ts[16] != ':' {
		return parseTimestampSlow(ts)
	}

	// Parse date components directly (avoid string allocations)
	year := parseInt4(ts[0:4])
	month := parseInt2(ts[5:7])
	day := parseInt2(ts[8:10])
	hour := parseInt2(ts[11:13])
	min := parseInt2(ts[14:16])
	sec := parseInt2(ts[17:19])

	if year < 0 || month < 1 || month > 12 || day < 1 || day > 31 ||
		hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 59 {
		return parseTimestampSlow(ts)
	}

	rest := ts[19:]
	var nsec int
	if len(rest) > 1 && rest[0] == '.' {
		end := 1
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		frac := rest[1:end]
		fracLen := len(frac)
		if fracLen > 9 {
			frac = frac[:9]
			fracLen = 9
		}
		nsec = parseIntN(frac, fracLen)
		for i := fracLen; i < 9; i++ {
			nsec *= 10
		}
		rest = rest[end:]
	}
	if rest != "" && rest != "Z" {
		return parseTimestampSlow(ts)
	}

	tm := time.Date(year, time.Month(month), day, hour, min, sec, nsec, time.UTC)
	if tm.Day() != day || tm.Month() != time.Month(month) {
		// time.Date normalises Feb 31 to Mar 2
		return parseTimestampSlow(ts)
	}
	return tm, nil
}

func parseTimestampSlow(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	return t.UTC(), nil
}

// parseInt2 parses a 2-digit decimal string. Returns -1 on error.
func parseInt2(s string) int {
	if len(s) != 2 {
		return -1
	}
	d1, d2 := s[0]-'0', s[1]-'0'
	if d1 > 9 || d2 > 9 {
		return -1
	}
	return int(d1)*10 + int(d2)
}

// parseInt4 parses a 4-digit decimal string. Returns -1 on error.
func parseInt4(s string) int {
	if len(s) != 4 {
		return -1
	}
	d1, d2, d3, d4 := s[0]-'0', s[1]-'0', s[2]-'0', s[3]-'0'
	if d1 > 9 || d2 > 9 || d3 > 9 || d4 > 9 {
		return -1
	}
	return int(d1)*1000 + int(d2)*100 + int(d3)*10 + int(d4)
}

// parseIntN parses an n-digit decimal string. Returns 0 on error.
func parseIntN(s string, n int) int {
	result := 0
	for i := 0; i < n; i++ {
		d := s[i] - '0'
		if d > 9 {
			return 0
		}
		result = result*10 + int(d)
	}
	return result
}
