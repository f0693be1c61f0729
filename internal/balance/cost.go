package balance

import (
	"math"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
)

var baseCost = map[domain.OperationType]int{
	domain.OperationTextToImage:  5,
	domain.OperationImageToImage: 6,
	domain.OperationTextToVideo:  20,
	domain.OperationImageToVideo: 25,
}

// multiplierFactor scales the base cost. Unknown multiplier names count as
// 1.0 so a client sending a new label cannot zero out a charge.
var multiplierFactor = map[string]float64{
	"high-quality":  1.5,
	"ultra-quality": 2.0,
	"duration-5s":   1.0,
	"duration-10s":  1.5,
	"duration-15s":  2.0,
	"duration-30s":  3.0,
}

// Multipliers derives the cost multiplier labels for a request. quality is
// one of the known quality labels or empty; durationSeconds is zero for
// images. Durations snap up to the next priced tier.
func Multipliers(quality string, durationSeconds int) []string {
	var out []string
	if _, ok := multiplierFactor[quality]; ok {
		out = append(out, quality)
	}
	switch {
	case durationSeconds <= 0:
	case durationSeconds <= 5:
		out = append(out, "duration-5s")
	case durationSeconds <= 10:
		out = append(out, "duration-10s")
	case durationSeconds <= 15:
		out = append(out, "duration-15s")
	default:
		out = append(out, "duration-30s")
	}
	return out
}

// CategoryOf maps an operation type to its generation domain.
func CategoryOf(op domain.OperationType) domain.OperationCategory {
	switch op {
	case domain.OperationTextToVideo, domain.OperationImageToVideo:
		return domain.OperationCategoryVideo
	}
	return domain.OperationCategoryImage
}

// OperationCost computes base cost times the product of multiplier factors,
// rounded up. Unknown operation types cost the text-to-image base.
func OperationCost(op domain.OperationType, multipliers []string) int {
	base, ok := baseCost[op]
	if !ok {
		base = baseCost[domain.OperationTextToImage]
	}
	factor := 1.0
	for _, name := range multipliers {
		if f, ok := multiplierFactor[name]; ok {
			factor *= f
		}
	}
	return int(math.Ceil(float64(base) * factor))
}

// CheckResult is the outcome of a pure affordability check.
type CheckResult struct {
	HasEnough bool `json:"hasEnoughBalance"`
	Current   int  `json:"currentBalance"`
	Required  int  `json:"requiredBalance"`
	Shortfall int  `json:"shortfall,omitempty"`
}

// CheckOperationBalance compares a known balance against the cost of an
// operation. Pure: no reads, no writes.
func CheckOperationBalance(current int, op domain.OperationType, multipliers []string) CheckResult {
	required := OperationCost(op, multipliers)
	res := CheckResult{
		HasEnough: current >= required,
		Current:   current,
		Required:  required,
	}
	if !res.HasEnough {
		res.Shortfall = required - current
	}
	return res
}
