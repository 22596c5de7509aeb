package mapping

import (
	"time"

	"patron-sync/internal/model"
)

const DateLayout = "2006-01-02"

// ExpirationDate computes when a patron account expires. ok is false when a
// faculty term end falls outside May, August or December and the one-year
// fallback was used.
func ExpirationDate(role model.Role, termEnd, today time.Time) (expiry time.Time, ok bool) {
	oneYear := today.AddDate(1, 0, 0)

	switch role {
	case model.RoleInstructor:
		return lastDayOfMonth(termEnd), true
	case model.RoleStaff, model.RoleContractor:
		return oneYear, true
	case model.RoleFaculty:
		switch termEnd.Month() {
		case time.May, time.August:
			return lastDayOfMonth(termEnd), true
		case time.December:
			return time.Date(termEnd.Year()+1, time.January, 31, 0, 0, 0, 0, termEnd.Location()), true
		default:
			return oneYear, false
		}
	case model.RoleUndergraduate, model.RoleGraduate, model.RolePreCollege:
		return termEnd, true
	}
	return oneYear, false
}

// lastDayOfMonth rolls from day 28 into the next month, then steps back by
// that month's day number.
func lastDayOfMonth(d time.Time) time.Time {
	next := time.Date(d.Year(), d.Month(), 28, 0, 0, 0, 0, d.Location()).AddDate(0, 0, 4)
	return next.AddDate(0, 0, -next.Day())
}
