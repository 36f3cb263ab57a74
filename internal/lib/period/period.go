// Package period считает границы оплаченного периода тарифа.
package period

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/inspectra/internal/models"
)

// End возвращает дату окончания периода, начатого в start.
// Месяц прибавляется с прижатием к последнему дню: 31 января -> 28/29 февраля.
func End(start time.Time, interval models.Interval) (time.Time, error) {
	switch interval {
	case models.IntervalMonthly:
		return addMonths(start, 1), nil
	case models.IntervalYearly:
		return addMonths(start, 12), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown interval %q", models.ErrValidation, interval)
	}
}

// Days возвращает окончание пробного периода длиной days суток.
func Days(start time.Time, days int) time.Time {
	return start.AddDate(0, 0, days)
}

func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
