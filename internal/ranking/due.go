package ranking

import (
	"fmt"
	"strings"
	"time"

	"planner/internal/domain"
)

// DueClass buckets a due date relative to the current calendar day.
type DueClass int

const (
	NoDueDate DueClass = iota
	Overdue
	Today
	Tomorrow
	Future
)

var dueClassNames = [...]string{"no_due_date", "overdue", "today", "tomorrow", "future"}

func (c DueClass) String() string {
	if c < NoDueDate || c > Future {
		return fmt.Sprintf("DueClass(%d)", int(c))
	}
	return dueClassNames[c]
}

func (c DueClass) MarshalText() ([]byte, error) {
	if c < NoDueDate || c > Future {
		return nil, fmt.Errorf("invalid due class %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *DueClass) UnmarshalText(b []byte) error {
	v, err := ParseDueClass(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseDueClass accepts the names produced by String, case-insensitively.
func ParseDueClass(s string) (DueClass, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range dueClassNames {
		if s == n {
			return DueClass(i), nil
		}
	}
	return NoDueDate, fmt.Errorf("unknown due class %q", s)
}

// Date truncates t to midnight of its calendar day in loc.
func Date(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Classify compares calendar days in now's location.
func Classify(due *time.Time, now time.Time) DueClass {
	if due == nil {
		return NoDueDate
	}
	loc := now.Location()
	today := Date(now, loc)
	d := Date(*due, loc)
	switch {
	case d.Before(today):
		return Overdue
	case d.Equal(today):
		return Today
	case d.Equal(today.AddDate(0, 0, 1)):
		return Tomorrow
	default:
		return Future
	}
}

// Suppressed reports whether a task in status is left out of due-date
// views and overdue counts.
func Suppressed(status domain.TaskStatus) bool {
	return status == domain.StatusDone || status == domain.StatusBlocked
}

func IsOverdue(due *time.Time, status domain.TaskStatus, now time.Time) bool {
	return !Suppressed(status) && Classify(due, now) == Overdue
}

func CountOverdue(tasks []domain.Task, now time.Time) int {
	n := 0
	for _, t := range tasks {
		if IsOverdue(t.Due, t.Status, now) {
			n++
		}
	}
	return n
}

// DaysUntil returns the number of calendar days from now's date to due's
// date. Negative values are in the past.
func DaysUntil(due time.Time, now time.Time) int {
	loc := now.Location()
	return int((civilDay(due.In(loc)) - civilDay(now)) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

// civilDay is the Unix time of t's calendar date at UTC midnight, which is
// always a whole multiple of a day.
func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}
