package gradebook

import "github.com/noah-isme/school-portal-api/internal/models"

// ArchiveOptions tunes ArchiveTermWith.
type ArchiveOptions struct {
	// SkipEmpty leaves students with no results for the term untouched instead of
	// appending an empty snapshot.
	SkipEmpty bool
}

// ArchiveTerm moves each class student's results for term into a new history snapshot.
// A snapshot is appended even when the term has no results, so repeated calls add
// repeated entries.
func ArchiveTerm(students []models.Student, classLabel, term string) []models.Student {
	out, _ := ArchiveTermWith(students, classLabel, term, ArchiveOptions{})
	return out
}

// ArchiveTermWith is ArchiveTerm with options. It also returns the number of snapshots appended.
func ArchiveTermWith(students []models.Student, classLabel, term string, opts ArchiveOptions) ([]models.Student, int) {
	out := make([]models.Student, len(students))
	archived := 0
	for i, student := range students {
		if student.Grade != classLabel {
			out[i] = student
			continue
		}
		termResults := []models.Result{}
		remaining := make(models.ResultList, 0, len(student.Results))
		for _, r := range student.Results {
			if r.Term == term {
				termResults = append(termResults, r)
			} else {
				remaining = append(remaining, r)
			}
		}
		if opts.SkipEmpty && len(termResults) == 0 {
			out[i] = student
			continue
		}
		history := make(models.TermSnapshotList, len(student.PreviousResults), len(student.PreviousResults)+1)
		copy(history, student.PreviousResults)
		student.PreviousResults = append(history, models.TermSnapshot{Term: term, Results: termResults})
		student.Results = remaining
		out[i] = student
		archived++
	}
	return out, archived
}
