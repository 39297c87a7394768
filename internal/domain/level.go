package domain

import "math"

// Level maps cumulative points to a level: floor(sqrt(points/100)) + 1.
func Level(points int64) int {
	if points <= 0 {
		return 1
	}
	return int(math.Floor(math.Sqrt(float64(points)/100))) + 1
}

// PointsForLevel is the inverse used for display: n² * 100.
func PointsForLevel(n int) int64 {
	return int64(n) * int64(n) * 100
}

// NextLevelPoints is the display threshold for the level after current.
func NextLevelPoints(current int) int64 {
	return PointsForLevel(current + 1)
}
