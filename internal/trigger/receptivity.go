package trigger

import "log"

// coldStartAdjustment is used for users with no feedback history.
const coldStartAdjustment = 0.7

// Receptivity estimates how open the user is to an interruption right
// now, in [0, 1]. A time-of-day base curve modeling knowledge worker
// engagement is scaled by the user's historical engagement rate.
func (s *Service) Receptivity(userID string, hour int) float64 {
	base := timeReceptivity(hour)

	stats, err := s.store.FeedbackStats(userID)
	if err != nil {
		log.Printf("[trigger] feedback stats failed for %s: %v", userID, err)
		return base * coldStartAdjustment
	}

	adjustment := coldStartAdjustment
	if stats.Total > 0 {
		engagementRate := float64(stats.Started) / float64(stats.Total)
		adjustment = 0.5 + 0.5*engagementRate
	}
	return base * adjustment
}

func timeReceptivity(hour int) float64 {
	switch {
	case hour >= 7 && hour < 9:
		return 0.6
	case hour >= 9 && hour < 12:
		return 0.9
	case hour >= 12 && hour < 14:
		return 0.5
	case hour >= 14 && hour < 17:
		return 0.85
	case hour >= 17 && hour < 20:
		return 0.6
	default:
		return 0.3
	}
}
