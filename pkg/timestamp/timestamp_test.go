package timestamp

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa/GMSEC-API-sub012/errors"
)

var testTime = time.Date(2024, 3, 15, 13, 4, 5, 123000000, time.UTC)

func TestFormat(t *testing.T) {
	assert.Equal(t, "2024-075-13:04:05.123", Format(testTime))
	assert.Equal(t, "2024-075-13:04:05.123", Format(testTime.In(time.FixedZone("EST", -5*3600))))
	assert.Equal(t, "", Format(time.Time{}))
	assert.Equal(t, "2023-001-00:00:00.000", Format(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestNow(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{3}-\d{2}:\d{2}:\d{2}\.\d{3}$`), Now())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"gmsec", "2024-075-13:04:05.123", testTime},
		{"no milliseconds", "2024-075-13:04:05", testTime.Truncate(time.Second)},
		{"rfc3339", "2024-03-15T13:04:05.123Z", testTime},
		{"rfc3339 offset", "2024-03-15T08:04:05.123-05:00", testTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{"", "yesterday", "2024-400-13:04:05.000", "2024-075"} {
		_, err := Parse(input)
		assert.ErrorIs(t, err, errors.ErrInvalidData, input)
		assert.True(t, errors.IsInvalid(err))
	}
}

func TestRoundTrip(t *testing.T) {
	got, err := Parse(Format(testTime))
	require.NoError(t, err)
	assert.True(t, testTime.Equal(got))
}

func TestSince(t *testing.T) {
	d, err := Since(Format(time.Now().Add(-time.Minute)))
	require.NoError(t, err)
	assert.InDelta(t, time.Minute.Seconds(), d.Seconds(), 5)

	_, err = Since("bogus")
	assert.Error(t, err)
}

func TestUnixMs(t *testing.T) {
	ms := ToUnixMs(testTime)
	assert.Equal(t, int64(1710507845123), ms)
	assert.True(t, testTime.Equal(FromUnixMs(ms)))
	assert.Equal(t, int64(0), ToUnixMs(time.Time{}))
	assert.True(t, FromUnixMs(0).IsZero())
}
