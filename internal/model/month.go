package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// broadcastMonthLayout is the display format used as the period join key
// across closed_months, import batch summaries, and all month-scoped
// queries (e.g. "Jan-25").
const broadcastMonthLayout = "Jan-06"

// BroadcastMonth is the monthly accounting bucket a spot belongs to.
type BroadcastMonth struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// ParseBroadcastMonth parses a display key like "Jan-25".
func ParseBroadcastMonth(s string) (BroadcastMonth, error) {
	t, err := time.Parse(broadcastMonthLayout, s)
	if err != nil {
		return BroadcastMonth{}, eris.Wrapf(err, "month: parse %q", s)
	}
	return BroadcastMonth{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the broadcast month containing t.
func MonthOf(t time.Time) BroadcastMonth {
	return BroadcastMonth{Year: t.Year(), Month: t.Month()}
}

// String returns the display key, e.g. "Jan-25".
func (m BroadcastMonth) String() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format(broadcastMonthLayout)
}

// SortKey returns a numeric key that orders months chronologically.
// The display key alone sorts incorrectly across years ("Jan-25" < "Jan-24"
// lexicographically is false but "Apr-25" < "Jan-24" is true), so every
// month-scoped table persists this alongside the display key.
func (m BroadcastMonth) SortKey() int {
	return m.Year*100 + int(m.Month)
}

// IsZero reports whether m is the zero value.
func (m BroadcastMonth) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Next returns the month immediately after m.
func (m BroadcastMonth) Next() BroadcastMonth {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return BroadcastMonth{Year: t.Year(), Month: t.Month()}
}

// Before reports whether m is chronologically before other.
func (m BroadcastMonth) Before(other BroadcastMonth) bool {
	return m.SortKey() < other.SortKey()
}

// ClosedPeriod is a permanent lock on a broadcast month. Once a row
// exists, no import mode may insert or delete spots for that month
// (HISTORICAL's own closing action excepted).
type ClosedPeriod struct {
	Month    BroadcastMonth `json:"month"`
	ClosedBy string         `json:"closed_by"`
	ClosedAt time.Time      `json:"closed_at"`
	Notes    string         `json:"notes,omitempty"`
}
