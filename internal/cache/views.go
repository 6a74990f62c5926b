package cache

import (
	"time"

	"example.com/activitysync/internal/domain"
)

// DayLayout is the label format of a day bucket, e.g. "07 Mar 2026".
const DayLayout = "02 Jan 2006"

// DayGroup holds the activities of one calendar day in ascending date order.
type DayGroup struct {
	Day        string
	Date       time.Time
	Activities []domain.Activity
}

// GroupedByDay partitions ListSorted into one bucket per distinct calendar day,
// in the registry's location. Buckets and their contents stay in ascending order.
func (r *Registry) GroupedByDay() []DayGroup {
	var groups []DayGroup
	for a := range r.ListSorted() {
		local := a.Date.In(r.location)
		label := local.Format(DayLayout)
		if n := len(groups); n > 0 && groups[n-1].Day == label {
			groups[n-1].Activities = append(groups[n-1].Activities, a)
			continue
		}
		y, m, d := local.Date()
		groups = append(groups, DayGroup{
			Day:        label,
			Date:       time.Date(y, m, d, 0, 0, 0, 0, r.location),
			Activities: []domain.Activity{a},
		})
	}
	return groups
}
