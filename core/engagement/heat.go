package engagement

import (
	"math"

	"EmberFM/model"
)

// HeatScore derives a track's popularity temperature from its vote
// counters. No votes means the 30-point baseline; otherwise the score is
// round(30 + 80·upvotes/total), which lands in [30,110] by construction.
func HeatScore(upvotes, downvotes int) int {
	total := upvotes + downvotes
	if total <= 0 {
		return model.HeatBaseline
	}
	return int(math.Round(30 + 80*float64(upvotes)/float64(total)))
}
