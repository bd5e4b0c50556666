package gradebook

import (
	"math"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// Normalize turns a raw obtained score into a scored result for subject in term.
// Remarks are carried over from prior when one is given.
func Normalize(subject, term string, raw float64, weights WeightsTable, prior *models.Result) models.Result {
	total := weights.ResolveTotal(subject, term)
	obtained := clamp(raw, total)
	pct := Percent(obtained, total)
	result := models.Result{
		Subject:    subject,
		Term:       term,
		Score:      models.ScoredPoints{Obtained: obtained, Total: total},
		Percentage: pct,
		Grade:      ClassifyExam(pct),
	}
	if prior != nil {
		result.Remarks = prior.Remarks
	}
	return result
}

// Percent returns round(obtained/total*100) bounded to [0,100]. A non-positive total yields 0.
func Percent(obtained, total float64) int {
	if total <= 0 || math.IsNaN(obtained) || math.IsInf(obtained, 0) {
		return 0
	}
	pct := int(math.Round(obtained / total * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func clamp(raw, total float64) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw < 0 {
		return 0
	}
	if raw > total {
		return total
	}
	return raw
}
