package sqlitestore

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cookieSession struct {
	Cookie struct {
		MaxAge int64 `json:"maxAge"`
	} `json:"cookie"`
	User string `json:"user"`
}

type fixedAge time.Duration

func (f fixedAge) SessionMaxAge() (time.Duration, bool) {
	return time.Duration(f), true
}

type noAge struct{}

func (noAge) SessionMaxAge() (time.Duration, bool) {
	return 0, false
}

func jsonEncoder(v any) func() ([]byte, error) {
	return func() ([]byte, error) { return json.Marshal(v) }
}

func TestTTLFor(t *testing.T) {
	const fallback = 24 * time.Hour

	withCookie := cookieSession{User: "ada"}
	withCookie.Cookie.MaxAge = 5000
	longCookie := cookieSession{User: "ada"}
	longCookie.Cookie.MaxAge = 1 << 53

	tests := []struct {
		name  string
		value any
		want  time.Duration
	}{
		{name: "no hint", value: map[string]any{"data": "bar"}, want: fallback},
		{name: "map max age", value: map[string]any{"cookie": map[string]any{"maxAge": float64(60000)}}, want: time.Minute},
		{name: "map int max age", value: map[string]any{"cookie": map[string]any{"maxAge": 1500}}, want: 1500 * time.Millisecond},
		{name: "zero max age falls back", value: map[string]any{"cookie": map[string]any{"maxAge": float64(0)}}, want: fallback},
		{name: "negative max age honored", value: map[string]any{"cookie": map[string]any{"maxAge": float64(-1000)}}, want: -time.Second},
		{name: "non numeric max age", value: map[string]any{"cookie": map[string]any{"maxAge": "1000"}}, want: fallback},
		{name: "cookie not an object", value: map[string]any{"cookie": "yes"}, want: fallback},
		{name: "struct via encoded json", value: withCookie, want: 5 * time.Second},
		{name: "huge max age saturates", value: map[string]any{"cookie": map[string]any{"maxAge": 1e13}}, want: time.Duration(math.MaxInt64)},
		{name: "max safe integer saturates", value: map[string]any{"cookie": map[string]any{"maxAge": float64(9007199254740991)}}, want: time.Duration(math.MaxInt64)},
		{name: "huge negative max age saturates", value: map[string]any{"cookie": map[string]any{"maxAge": -1e13}}, want: time.Duration(math.MinInt64)},
		{name: "infinite max age saturates", value: map[string]any{"cookie": map[string]any{"maxAge": math.Inf(1)}}, want: time.Duration(math.MaxInt64)},
		{name: "NaN max age falls back", value: map[string]any{"cookie": map[string]any{"maxAge": math.NaN()}}, want: fallback},
		{name: "struct huge max age saturates", value: longCookie, want: time.Duration(math.MaxInt64)},
		{name: "MaxAger", value: fixedAge(time.Hour), want: time.Hour},
		{name: "MaxAger without hint", value: noAge{}, want: fallback},
		{name: "number", value: 42, want: fallback},
		{name: "string", value: "plain", want: fallback},
		{name: "nil", value: nil, want: fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ttlFor(tt.value, jsonEncoder(tt.value), fallback))
		})
	}
}

func TestTTLFor_EncodeFailureFallsBack(t *testing.T) {
	encode := func() ([]byte, error) { return nil, errors.New("nope") }
	assert.Equal(t, time.Hour, ttlFor(struct{}{}, encode, time.Hour))
}

func TestTTLFor_NonJSONPayloadIgnored(t *testing.T) {
	encode := func() ([]byte, error) { return []byte{0x81, 0xa6}, nil }
	assert.Equal(t, time.Hour, ttlFor(struct{}{}, encode, time.Hour))
}

func TestSet_UsesCookieMaxAge(t *testing.T) {
	s, clock := createTestStore(t, Options{})

	require.NoError(t, s.Set("short", map[string]any{
		"cookie": map[string]any{"maxAge": float64(1000)},
	}))
	assert.Equal(t, clock.Now().Add(time.Second).UnixMilli(), rawExpiresAt(t, s, "short"))

	clock.Advance(1500 * time.Millisecond)
	_, found, err := s.Get("short")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSet_StructValueMaxAge(t *testing.T) {
	s, clock := createTestStore(t, Options{})

	v := cookieSession{User: "ada"}
	v.Cookie.MaxAge = 120000
	require.NoError(t, s.Set("sid", v))

	assert.Equal(t, clock.Now().Add(2*time.Minute).UnixMilli(), rawExpiresAt(t, s, "sid"))

	got, found, err := s.Get("sid")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]any{
		"cookie": map[string]any{"maxAge": float64(120000)},
		"user":   "ada",
	}, got)
}

func TestAddMillis(t *testing.T) {
	tests := []struct {
		name     string
		now, ttl int64
		want     int64
	}{
		{name: "plain", now: 1000, ttl: 500, want: 1500},
		{name: "negative ttl", now: 1000, ttl: -500, want: 500},
		{name: "overflow saturates", now: 1717243200000, ttl: math.MaxInt64 - 10, want: math.MaxInt64},
		{name: "underflow saturates", now: -10, ttl: math.MinInt64, want: math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, addMillis(tt.now, tt.ttl))
		})
	}
}

func TestSet_HugeMaxAgeStaysActive(t *testing.T) {
	s, clock := createTestStore(t, Options{})
	maxMillis := time.Duration(math.MaxInt64).Milliseconds()

	for _, maxAge := range []float64{1e13, 9007199254740991} {
		value := map[string]any{"cookie": map[string]any{"maxAge": maxAge}}
		require.NoError(t, s.Set("long", value))
		assert.Equal(t, clock.Now().UnixMilli()+maxMillis, rawExpiresAt(t, s, "long"))

		got, found, err := s.Get("long")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, value, got)
	}

	clock.Advance(100 * 365 * 24 * time.Hour)
	_, found, err := s.Get("long")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestTouch_NaNMaxAgeUsesDefault(t *testing.T) {
	s, clock := createTestStore(t, Options{})

	require.NoError(t, s.Set("foo", map[string]any{"data": "bar"}))
	clock.Advance(time.Minute)
	require.NoError(t, s.Touch("foo", map[string]any{"cookie": map[string]any{"maxAge": math.NaN()}}))

	assert.Equal(t, clock.Now().Add(DefaultTTL).UnixMilli(), rawExpiresAt(t, s, "foo"))
	_, found, err := s.Get("foo")
	require.NoError(t, err)
	assert.True(t, found)
}
