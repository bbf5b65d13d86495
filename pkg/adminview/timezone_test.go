package adminview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWhenCreated_KievFixture(t *testing.T) {
	// midnight UTC on the 4th is already the 4th in Kiev (UTC+2)
	created := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "04.01.2024", WhenCreated(created, "Europe/Kiev"))

	// late evening UTC on the 3rd rolls forward to the 4th
	created = time.Date(2024, 1, 3, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "04.01.2024", WhenCreated(created, "Europe/Kiev"))
}

func TestConvertUTCToLocal_InvalidZoneFallsBackToUTC(t *testing.T) {
	ts := time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC)

	got := ConvertUTCToLocal(ts, "Mars/Olympus")
	assert.True(t, ts.Equal(got))
	assert.Equal(t, "UTC", got.Location().String())

	got = ConvertUTCToLocal(ts, "")
	assert.Equal(t, "UTC", got.Location().String())
}

func TestConvertUTCToLocal_NeverMutatesInstant(t *testing.T) {
	ts := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	got := ConvertUTCToLocal(ts, "Asia/Almaty")
	assert.True(t, ts.Equal(got))
	assert.Equal(t, 14, got.Hour()) // UTC+5 in 2024
}

func TestFormatScheduled(t *testing.T) {
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	// date only
	assert.Equal(t, "5 Mar", FormatScheduled(date, time.Time{}, "UTC"))

	// date with a planned time of day
	at := time.Date(0, 1, 1, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "5 Mar 14:30", FormatScheduled(date, at, "UTC"))

	// timezone shifts the rendered time
	assert.Equal(t, "5 Mar 19:30", FormatScheduled(date, at, "Asia/Almaty"))
}
