package adminview

import "time"

const (
	dateDisplayFormat   = "02.01.2006"
	shortDateFormat     = "2 Jan"
	shortDateTimeFormat = "2 Jan 15:04"
)

// ConvertUTCToLocal converts a UTC-stored timestamp to the user's
// display timezone. An empty or unknown zone name falls back to UTC.
// Stored data is never mutated; this is display-only.
func ConvertUTCToLocal(t time.Time, zone string) time.Time {
	loc, err := time.LoadLocation(zone)
	if err != nil || zone == "" {
		loc = time.UTC
	}
	return t.In(loc)
}

// WhenCreated renders a creation timestamp as dd.mm.yyyy in the user's
// timezone.
func WhenCreated(t time.Time, zone string) string {
	return ConvertUTCToLocal(t, zone).Format(dateDisplayFormat)
}

// FormatScheduled renders a scheduled date, with its time of day when
// one was planned. A zero scheduledTime means the operator picked a
// date only.
func FormatScheduled(scheduledDate, scheduledTime time.Time, zone string) string {
	if scheduledTime.IsZero() {
		return ConvertUTCToLocal(scheduledDate, zone).Format(shortDateFormat)
	}
	combined := time.Date(
		scheduledDate.Year(), scheduledDate.Month(), scheduledDate.Day(),
		scheduledTime.Hour(), scheduledTime.Minute(), 0, 0, time.UTC,
	)
	return ConvertUTCToLocal(combined, zone).Format(shortDateTimeFormat)
}
