package gradebook

import "github.com/noah-isme/school-portal-api/internal/models"

// MergeTerm applies the session's pending edits to every student in the session's class.
// Each candidate ends up with exactly one result per subject for the term, in subjects
// order, after its results for other terms. A subject missing from subjects is dropped
// from the term. The input slice and its students are not modified, so a failed save can
// retry with the same session. An empty session returns students unchanged and false.
func MergeTerm(students []models.Student, session *GradingSession, subjects []string, weights WeightsTable) ([]models.Student, bool) {
	if session.IsEmpty() {
		return students, false
	}
	out := make([]models.Student, len(students))
	for i, student := range students {
		if student.Grade != session.ClassLabel {
			out[i] = student
			continue
		}
		out[i] = mergeStudent(student, session, subjects, weights)
	}
	return out, true
}

func mergeStudent(student models.Student, session *GradingSession, subjects []string, weights WeightsTable) models.Student {
	term := session.Term
	merged := make(models.ResultList, 0, len(student.Results)+len(subjects))
	for _, r := range student.Results {
		if r.Term != term {
			merged = append(merged, r)
		}
	}
	for _, subject := range subjects {
		prior, hasPrior := student.Results.Find(subject, term)
		var raw float64
		if edit, ok := session.Edit(student.ID, subject); ok {
			raw = edit
		} else if hasPrior {
			raw = prior.ObtainedOf(weights.ResolveTotal(subject, term))
		}
		var priorRef *models.Result
		if hasPrior {
			priorRef = &prior
		}
		merged = append(merged, Normalize(subject, term, raw, weights, priorRef))
	}
	student.Results = merged
	return student
}
