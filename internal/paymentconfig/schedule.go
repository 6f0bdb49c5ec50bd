package paymentconfig

import (
	"time"

	"github.com/angelmondragon/commission-engine/pkg/db/models"
	"github.com/angelmondragon/commission-engine/pkg/enums"
)

// Bi-weekly runs fall on even ISO weeks.
const biWeeklyParity = 0

// IsDue reports whether an autopay run should happen for cfg on the given day.
// Weekly payment days count Monday as 1 and Sunday as 7.
func IsDue(cfg models.PaymentConfiguration, day time.Time) bool {
	day = day.UTC()
	switch cfg.PaymentSchedule {
	case enums.PaymentScheduleWeekly:
		return isoWeekday(day) == cfg.PaymentDay
	case enums.PaymentScheduleBiWeekly:
		_, week := day.ISOWeek()
		return isoWeekday(day) == cfg.PaymentDay && week%2 == biWeeklyParity
	case enums.PaymentScheduleMonthly:
		return day.Day() == cfg.PaymentDay
	case enums.PaymentScheduleQuarterly:
		return day.Day() == cfg.PaymentDay && (int(day.Month())-1)%3 == 0
	}
	return false
}

func isoWeekday(day time.Time) int {
	wd := int(day.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
