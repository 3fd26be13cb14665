package slot

import (
	"sort"
)

// GroupByDate buckets slots by the local calendar date of StartAt. Each bucket
// is sorted by start time; equal starts keep their input order.
func GroupByDate(slots []AvailabilitySlot) map[DateKey][]AvailabilitySlot {
	groups := make(map[DateKey][]AvailabilitySlot)
	for _, s := range slots {
		k := s.Date()
		groups[k] = append(groups[k], s)
	}
	for k := range groups {
		bucket := groups[k]
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].StartAt.Before(bucket[j].StartAt)
		})
	}
	return groups
}

// Dates returns the keys of groups in ascending order.
func Dates(groups map[DateKey][]AvailabilitySlot) []DateKey {
	keys := make([]DateKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Flatten is the inverse of GroupByDate: dates ascending, each bucket in order.
func Flatten(groups map[DateKey][]AvailabilitySlot) []AvailabilitySlot {
	var out []AvailabilitySlot
	for _, k := range Dates(groups) {
		out = append(out, groups[k]...)
	}
	return out
}

// AvailableOnly keeps the slots a patient may still book.
func AvailableOnly(slots []AvailabilitySlot) []AvailabilitySlot {
	out := make([]AvailabilitySlot, 0, len(slots))
	for _, s := range slots {
		if !s.IsBooked {
			out = append(out, s)
		}
	}
	return out
}
