package services

import "math"

// scoreMultiplier scales a confidence distance into score points.
const scoreMultiplier = 1000.0

// calculateScore converts one settled prediction into a score delta.
// Confident correct forecasts earn close to 1000, confident wrong ones
// close to 0, and a fence-sitting 0.5 earns 500 either way. The float
// result is truncated toward zero, not floored; the two differ for
// negative intermediates and clients were calibrated against
// truncation.
func calculateScore(confidence float64, correct bool) int64 {
	direction := -1.0
	if correct {
		direction = 1.0
	}
	return int64(math.Abs(0.5-confidence)*scoreMultiplier*direction + scoreMultiplier/2)
}

// majorityThreshold is the number of matching votes that settles an
// assertion in a chat with the given member count.
func majorityThreshold(members int) int {
	return (members + 1) / 2
}
