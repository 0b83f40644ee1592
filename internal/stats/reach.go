package stats

import (
	"sort"

	"gatebot/internal/state"
)

// DayCount is the number of distinct submitters seen on one day.
type DayCount struct {
	Day   string // "2006-01-02"
	Count int
}

// HourCount is the number of distinct submitters seen during one hour of day.
type HourCount struct {
	Hour  int
	Count int
}

// Reach summarizes who the bot has seen, for the control-chat status report.
type Reach struct {
	TotalUniqueUsers int
	PerDay           []DayCount  // newest day first
	PerHour          []HourCount // ascending hour
}

// ComputeReach walks the history and buckets distinct users per day and per
// hour of day. Records without a timestamp count toward the total only.
func ComputeReach(history map[string][]state.DeliveryRecord) Reach {
	perDay := map[string]map[int64]struct{}{}
	perHour := map[int]map[int64]struct{}{}
	all := map[int64]struct{}{}

	for _, entries := range history {
		for _, e := range entries {
			all[e.UserID] = struct{}{}
			if e.Timestamp.IsZero() {
				continue
			}
			day := e.Timestamp.UTC().Format("2006-01-02")
			if perDay[day] == nil {
				perDay[day] = map[int64]struct{}{}
			}
			perDay[day][e.UserID] = struct{}{}

			h := e.Timestamp.UTC().Hour()
			if perHour[h] == nil {
				perHour[h] = map[int64]struct{}{}
			}
			perHour[h][e.UserID] = struct{}{}
		}
	}

	days := make([]DayCount, 0, len(perDay))
	for d, users := range perDay {
		days = append(days, DayCount{Day: d, Count: len(users)})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day > days[j].Day })

	hours := make([]HourCount, 0, len(perHour))
	for h, users := range perHour {
		hours = append(hours, HourCount{Hour: h, Count: len(users)})
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Hour < hours[j].Hour })

	return Reach{TotalUniqueUsers: len(all), PerDay: days, PerHour: hours}
}
