package quota

import "time"

// MonthKey returns the calendar-month bucket for t, formatted "YYYY-MM".
//
// UTC governs rollovers everywhere in the engine: whatever timezone a
// request arrives from, its consumption lands in the UTC month, and every
// allowance resets at midnight UTC on the 1st.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
