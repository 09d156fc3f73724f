package sqlitestore

import (
	"math"
	"time"

	"github.com/tidwall/gjson"
)

// maxAgePath is where cookie-style session values keep their lifetime in ms
const maxAgePath = "cookie.maxAge"

// MaxAger lets a session value choose its own lifetime. ok == false (or a
// zero duration) falls back to the store default.
type MaxAger interface {
	SessionMaxAge() (maxAge time.Duration, ok bool)
}

// ttlFor resolves the lifetime of value. encode is only called when value is
// neither a MaxAger nor a generic map, and its output is only consulted when it
// is JSON, which covers struct values with a cookie.maxAge field.
func ttlFor(value any, encode func() ([]byte, error), fallback time.Duration) time.Duration {
	if m, ok := value.(MaxAger); ok {
		if d, ok := m.SessionMaxAge(); ok && d != 0 {
			return d
		}
		return fallback
	}

	if ms, ok := mapMaxAge(value); ok {
		return msDuration(ms, fallback)
	}

	if value == nil || encode == nil {
		return fallback
	}
	encoded, err := encode()
	if err != nil {
		return fallback
	}
	if len(encoded) > 0 && gjson.ValidBytes(encoded) {
		res := gjson.GetBytes(encoded, maxAgePath)
		if res.Type == gjson.Number {
			return msDuration(res.Float(), fallback)
		}
	}
	return fallback
}

func mapMaxAge(value any) (float64, bool) {
	root, ok := value.(map[string]any)
	if !ok {
		return 0, false
	}
	cookie, ok := root["cookie"].(map[string]any)
	if !ok {
		return 0, false
	}
	return toFloat(cookie["maxAge"])
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// maxHintMillis is the largest millisecond hint a time.Duration can hold
const maxHintMillis = float64(math.MaxInt64 / int64(time.Millisecond))

// msDuration converts a millisecond hint, saturating at the Duration range.
// NaN carries no usable lifetime and falls back like a zero hint.
func msDuration(ms float64, fallback time.Duration) time.Duration {
	switch {
	case ms == 0 || math.IsNaN(ms):
		return fallback
	case ms >= maxHintMillis:
		return time.Duration(math.MaxInt64)
	case ms <= -maxHintMillis:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// addMillis returns now+ttl clamped to the int64 range
func addMillis(now, ttl int64) int64 {
	switch {
	case ttl > 0 && now > math.MaxInt64-ttl:
		return math.MaxInt64
	case ttl < 0 && now < math.MinInt64-ttl:
		return math.MinInt64
	}
	return now + ttl
}
