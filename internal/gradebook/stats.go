package gradebook

import (
	"math"
	"sort"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// OverallPercentage is the weighted aggregate: points obtained over maximum points,
// each resolved through weights. Legacy records contribute their percentage of the total.
func OverallPercentage(results []models.Result, weights WeightsTable) int {
	var obtained, max float64
	for _, r := range results {
		total := weights.ResolveTotal(r.Subject, r.Term)
		points := r.ObtainedOf(total)
		if math.IsNaN(points) || math.IsInf(points, 0) {
			points = 0
		}
		obtained += points
		max += total
	}
	if max <= 0 {
		return 0
	}
	return Percent(obtained, max)
}

// MeanPercentage averages per-subject percentages. It ignores totals and differs from
// OverallPercentage whenever subjects carry unequal totals.
func MeanPercentage(results []models.Result) int {
	if len(results) == 0 {
		return 0
	}
	sum := 0
	for _, r := range results {
		sum += r.Percentage
	}
	return int(math.Round(float64(sum) / float64(len(results))))
}

// StudentOverall is a student's weighted outcome for one term.
type StudentOverall struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Overall   int    `json:"overall"`
	Grade     string `json:"grade"`
	Passed    bool   `json:"passed"`
}

// Summary describes a class for one term.
type Summary struct {
	ClassLabel   string          `json:"class_label"`
	Term         string          `json:"term"`
	Appeared     int             `json:"appeared"`
	PassCount    int             `json:"pass_count"`
	FailCount    int             `json:"fail_count"`
	PassRate     int             `json:"pass_rate"`
	ClassAverage int             `json:"class_average"`
	TopStudent   *StudentOverall `json:"top_student,omitempty"`
}

// RankedStudent is a StudentOverall with its class position.
type RankedStudent struct {
	StudentOverall
	Position int `json:"position"`
}

// Appeared lists class students with at least one result for term, in roster order.
func Appeared(students []models.Student, classLabel, term string, weights WeightsTable) []StudentOverall {
	var out []StudentOverall
	for _, s := range students {
		if s.Grade != classLabel {
			continue
		}
		results := s.Results.ForTerm(term)
		if len(results) == 0 {
			continue
		}
		overall := OverallPercentage(results, weights)
		out = append(out, StudentOverall{
			StudentID: s.ID,
			Name:      s.Name,
			Overall:   overall,
			Grade:     ClassifyExam(overall),
			Passed:    Passed(overall),
		})
	}
	return out
}

// ClassSummary computes pass counts, the class average and the top student.
// Ties for top student go to the one listed first in students.
func ClassSummary(students []models.Student, classLabel, term string, weights WeightsTable) Summary {
	summary := Summary{ClassLabel: classLabel, Term: term}
	appeared := Appeared(students, classLabel, term, weights)
	summary.Appeared = len(appeared)
	if len(appeared) == 0 {
		return summary
	}
	sum := 0
	for i := range appeared {
		o := appeared[i]
		sum += o.Overall
		if o.Passed {
			summary.PassCount++
		} else {
			summary.FailCount++
		}
		if summary.TopStudent == nil || o.Overall > summary.TopStudent.Overall {
			top := o
			summary.TopStudent = &top
		}
	}
	summary.ClassAverage = int(math.Round(float64(sum) / float64(len(appeared))))
	summary.PassRate = int(math.Round(float64(summary.PassCount) / float64(len(appeared)) * 100))
	return summary
}

// Rankings orders appeared students by overall, highest first. Equal overalls share a
// position and keep roster order; the next position skips accordingly (1, 1, 3).
func Rankings(students []models.Student, classLabel, term string, weights WeightsTable) []RankedStudent {
	appeared := Appeared(students, classLabel, term, weights)
	sort.SliceStable(appeared, func(i, j int) bool { return appeared[i].Overall > appeared[j].Overall })
	ranked := make([]RankedStudent, len(appeared))
	for i, o := range appeared {
		position := i + 1
		if i > 0 && o.Overall == appeared[i-1].Overall {
			position = ranked[i-1].Position
		}
		ranked[i] = RankedStudent{StudentOverall: o, Position: position}
	}
	return ranked
}

// GradeDistribution counts appeared students per exam letter grade.
func GradeDistribution(students []models.Student, classLabel, term string, weights WeightsTable) map[string]int {
	dist := map[string]int{}
	for _, o := range Appeared(students, classLabel, term, weights) {
		dist[o.Grade]++
	}
	return dist
}
