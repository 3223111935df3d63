package catalog

import (
	"strings"
	"time"
)

var weekdayNames = [...]string{
	"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
}

// RestrictedDay reports the weekday an item is restricted to, derived from a
// weekday name embedded in the item name ("Saturday Special"). Items without a
// weekday in their name are available every day.
//
// Day encoding in display names is a compatibility shim carried over from the
// legacy menus; see DESIGN.md before extending it.
func RestrictedDay(itemName string) (time.Weekday, bool) {
	for i, day := range weekdayNames {
		if strings.Contains(itemName, day) {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// AvailableToday reports whether the item may be ordered at the given time.
// The second return value names the required day when the item is restricted
// and unavailable.
func AvailableToday(itemName string, now time.Time) (bool, string) {
	day, ok := RestrictedDay(itemName)
	if !ok {
		return true, ""
	}
	if now.Weekday() == day {
		return true, ""
	}
	return false, weekdayNames[day]
}
