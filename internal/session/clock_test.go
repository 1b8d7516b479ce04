package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nse-mtf/core/internal/session"
)

func ist(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, session.IST)
}

func TestIsWithinSessionBoundaries(t *testing.T) {
	// Monday 2026-01-05
	assert.True(t, session.IsWithinSession(ist(2026, 1, 5, 9, 15, 0)), "B2: 09:15 IST is inside")
	assert.False(t, session.IsWithinSession(ist(2026, 1, 5, 15, 30, 0)), "B2: 15:30 IST is outside")
	assert.True(t, session.IsWithinSession(ist(2026, 1, 5, 15, 29, 59)))
	assert.False(t, session.IsWithinSession(ist(2026, 1, 5, 9, 14, 59)))
}

func TestIsWithinSessionRejectsWeekends(t *testing.T) {
	// 2026-01-03 is a Saturday, 2026-01-04 a Sunday.
	assert.False(t, session.IsWithinSession(ist(2026, 1, 3, 10, 0, 0)))
	assert.False(t, session.IsWithinSession(ist(2026, 1, 4, 10, 0, 0)))
}

func TestSessionCloseDistance(t *testing.T) {
	d := session.SessionCloseDistance(ist(2026, 1, 5, 15, 29, 0))
	assert.Equal(t, time.Minute, d)

	past := session.SessionCloseDistance(ist(2026, 1, 5, 15, 31, 0))
	assert.True(t, past < 0)
}

func TestFloorToMinuteBoundaryBelongsToNewBucket(t *testing.T) {
	ts := ist(2026, 1, 5, 9, 16, 0)
	assert.True(t, session.FloorToMinute(ts).Equal(ts), "B1: exact minute mark belongs to the bucket starting there")

	mid := ist(2026, 1, 5, 9, 16, 30)
	assert.True(t, session.FloorToMinute(mid).Equal(ts))
}

func TestFloorToIntervalFromSessionStart(t *testing.T) {
	open := session.SessionOpen(ist(2026, 1, 5, 9, 15, 0))

	first := session.FloorToIntervalFromSessionStart(ist(2026, 1, 5, 9, 30, 0), 25)
	assert.True(t, first.Equal(open), "first 25m bar starts at session open")

	second := session.FloorToIntervalFromSessionStart(ist(2026, 1, 5, 9, 40, 0), 25)
	assert.True(t, second.Equal(open.Add(25*time.Minute)))
}

func TestDateKeyIsISTCalendarDate(t *testing.T) {
	// 18:45 UTC on 2026-01-05 is past midnight IST (00:15 on 2026-01-06).
	utc := time.Date(2026, 1, 5, 18, 45, 0, 0, time.UTC)
	assert.Equal(t, "2026-01-06", session.DateKey(utc))
}
