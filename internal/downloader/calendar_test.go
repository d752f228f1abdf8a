package downloader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendar_Weekends(t *testing.T) {
	cal := NewCalendar(nil)

	assert.True(t, cal.IsTradingDay(time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)), "Friday")
	assert.False(t, cal.IsTradingDay(time.Date(2024, 4, 6, 0, 0, 0, 0, time.UTC)), "Saturday")
	assert.False(t, cal.IsTradingDay(time.Date(2024, 4, 7, 0, 0, 0, 0, time.UTC)), "Sunday")
}

func TestCalendar_Holidays(t *testing.T) {
	republicDay := time.Date(2024, 1, 26, 0, 0, 0, 0, time.UTC)
	cal := NewCalendar([]time.Time{republicDay})

	assert.False(t, cal.IsTradingDay(republicDay))
	assert.True(t, cal.IsTradingDay(republicDay.AddDate(0, 0, 3)), "following Monday")
}

func TestCalendar_TradingDays(t *testing.T) {
	holiday := time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC)
	cal := NewCalendar([]time.Time{holiday})

	days := cal.TradingDays(
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC))

	// Mon, Tue, Thu, Fri, next Mon; Wednesday is the holiday.
	require.Len(t, days, 5)
	assert.Equal(t, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), days[1])
	assert.Equal(t, time.Date(2024, 4, 4, 0, 0, 0, 0, time.UTC), days[2])
}

func TestSlot_KeepsLatest(t *testing.T) {
	slot := NewSlot()

	slot.Publish(Event{Status: "downloaded", Bytes: 1})
	slot.Publish(Event{Status: "downloaded", Bytes: 2})
	slot.Publish(Event{Status: "failed", Bytes: 3})

	select {
	case ev := <-slot.Events():
		assert.Equal(t, int64(3), ev.Bytes, "an unconsumed event is displaced by the newest")
	default:
		t.Fatal("expected a buffered event")
	}
}
