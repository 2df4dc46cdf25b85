package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of minor-unit digits kept for money amounts.
const CurrencyPlaces = 2

// RoundCurrency rounds an amount to the currency's minor unit
func RoundCurrency(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(CurrencyPlaces)
}

// MinDecimal returns the smaller of two amounts
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// StartOfDay truncates t to midnight UTC
func StartOfDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// AddMonths adds months to date, clamping to the last day of the target month
// so that Jan 31 + 1 month is Feb 28/29 instead of rolling into March.
func AddMonths(date time.Time, months int) time.Time {
	y, m, d := date.Date()
	target := time.Date(y, m+time.Month(months), 1, date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
	last := target.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
}

// DaysBetween returns the number of whole days from `from` to `to`, negative when to is earlier
func DaysBetween(from, to time.Time) int {
	return int(StartOfDay(to).Sub(StartOfDay(from)).Hours() / 24)
}

// DaysPastDue returns whole days elapsed since dueDate, floored at zero
func DaysPastDue(dueDate, today time.Time) int {
	days := DaysBetween(dueDate, today)
	if days < 0 {
		return 0
	}
	return days
}

// IsDateOverdue checks if a due date is before today
func IsDateOverdue(dueDate, today time.Time) bool {
	return StartOfDay(today).After(StartOfDay(dueDate))
}
