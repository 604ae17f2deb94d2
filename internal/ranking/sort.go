package ranking

import (
	"sort"

	"planner/internal/domain"
)

// Less orders by score descending, then earliest due with undated tasks
// last, then created_at ascending.
func Less(a, b domain.Task) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	switch {
	case a.Due != nil && b.Due == nil:
		return true
	case a.Due == nil && b.Due != nil:
		return false
	case a.Due != nil && b.Due != nil && !a.Due.Equal(*b.Due):
		return a.Due.Before(*b.Due)
	}
	return a.CreatedAt < b.CreatedAt
}

// Sort ranks tasks in place. Equal tasks keep their input order.
func Sort(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool { return Less(tasks[i], tasks[j]) })
}

// SortByDue orders by due ascending with undated tasks last, then by rank.
func SortByDue(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch {
		case a.Due != nil && b.Due == nil:
			return true
		case a.Due == nil && b.Due != nil:
			return false
		case a.Due != nil && b.Due != nil && !a.Due.Equal(*b.Due):
			return a.Due.Before(*b.Due)
		}
		return Less(a, b)
	})
}

// SortByPriority orders by priority descending, then by rank.
func SortByPriority(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority > tasks[j].Priority
		}
		return Less(tasks[i], tasks[j])
	})
}
