package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var countRegex = regexp.MustCompile(`(-?)(\d[\d,]*(?:\.\d+)?)(?:\s*([kKmM])\b)?`)

// CountFromString reads engagement counts such as "1,234", "1.2K" or
// "7 likes". Negative or unreadable values become 0.
func CountFromString(s string) int {
	m := countRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || m[1] == "-" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
	if err != nil {
		return 0
	}
	switch m[3] {
	case "k", "K":
		f *= 1e3
	case "m", "M":
		f *= 1e6
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}
