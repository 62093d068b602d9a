package heatmap

import "fmt"

const (
	Days  = 7
	Hours = 24

	// DefaultStartHour puts 06:00 in the first display column.
	DefaultStartHour = 6
)

// ValidateStartHour reports whether startHour can be used as a column origin.
func ValidateStartHour(startHour int) error {
	if startHour < 0 || startHour >= Hours {
		return fmt.Errorf("start hour %d out of range [0,%d]", startHour, Hours-1)
	}
	return nil
}

// ToColumn maps an hour of day to its display column.
func ToColumn(hour, startHour int) int {
	return (hour - startHour + Hours) % Hours
}

// ToHour is the inverse of ToColumn.
func ToHour(column, startHour int) int {
	return (column + startHour) % Hours
}

// DisplayHours lists the hours of day in column order, e.g. 6..23,0..5.
func DisplayHours(startHour int) []int {
	hours := make([]int, Hours)
	for col := range hours {
		hours[col] = ToHour(col, startHour)
	}
	return hours
}
