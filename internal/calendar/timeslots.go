package calendar

import "fmt"

// First and last hour labels of the bookable day, one slot per hour.
const (
	FirstHour = 7
	LastHour  = 18
)

// TimeLabels returns the fixed hour labels 07:00 through 18:00.
func TimeLabels() []string {
	labels := make([]string, 0, LastHour-FirstHour+1)
	for h := FirstHour; h <= LastHour; h++ {
		labels = append(labels, fmt.Sprintf("%02d:00", h))
	}
	return labels
}
