package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthKey(t *testing.T) {
	utc := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08", MonthKey(utc))

	// Zero-padded months.
	assert.Equal(t, "2026-01", MonthKey(time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)))

	// UTC governs rollovers: local time already in the next month still
	// lands in the UTC month.
	tokyo := time.FixedZone("UTC+9", 9*3600)
	newYearLocal := time.Date(2027, time.January, 1, 3, 0, 0, 0, tokyo)
	assert.Equal(t, "2026-12", MonthKey(newYearLocal))

	// And local time still in the old month can land in the next UTC month.
	pacific := time.FixedZone("UTC-8", -8*3600)
	lateLocal := time.Date(2026, time.August, 31, 22, 0, 0, 0, pacific)
	assert.Equal(t, "2026-09", MonthKey(lateLocal))
}
