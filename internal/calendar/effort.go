package calendar

import "github.com/starford/gtdspace/internal/models"

// DefaultEffortMinutes is used for effort values outside the table.
const DefaultEffortMinutes = 30

var effortMinutes = map[models.Effort]int{
	models.EffortSmall:      30,
	models.EffortMedium:     60,
	models.EffortLarge:      120,
	models.EffortExtraLarge: 180,
}

// EffortMinutes returns the planned duration of an effort bucket.
func EffortMinutes(e models.Effort) int {
	if m, ok := effortMinutes[e]; ok {
		return m
	}
	return DefaultEffortMinutes
}

// EffortForMinutes maps a requested duration to the nearest effort bucket.
// Boundaries sit halfway between neighbouring buckets.
func EffortForMinutes(minutes int) models.Effort {
	switch {
	case minutes < 45:
		return models.EffortSmall
	case minutes < 90:
		return models.EffortMedium
	case minutes < 150:
		return models.EffortLarge
	default:
		return models.EffortExtraLarge
	}
}
