package gradebook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/models"
)

func scored(subject, term string, obtained, total float64, pct int, grade string) models.Result {
	return models.Result{
		Subject:    subject,
		Term:       term,
		Score:      models.ScoredPoints{Obtained: obtained, Total: total},
		Percentage: pct,
		Grade:      grade,
	}
}

func endToEndFixture() ([]models.Student, *GradingSession, []string, WeightsTable) {
	students := []models.Student{{ID: "S1", Name: "Asha", Grade: "10A"}}
	weights := WeightsTable{}
	weights.SetTotal("Term1", "Math", 50)
	weights.SetTotal("Term1", "Science", 100)
	session := NewSession("10A", "Term1")
	session.Stage("S1", "Math", 45)
	session.Stage("S1", "Science", 70)
	return students, session, []string{"Math", "Science"}, weights
}

func TestMergeTermEndToEnd(t *testing.T) {
	students, session, subjects, weights := endToEndFixture()

	merged, changed := MergeTerm(students, session, subjects, weights)
	require.True(t, changed)
	require.Len(t, merged, 1)

	results := merged[0].Results.ForTerm("Term1")
	require.Len(t, results, 2)
	assert.Equal(t, scored("Math", "Term1", 45, 50, 90, "A+"), results[0])
	assert.Equal(t, scored("Science", "Term1", 70, 100, 70, "B+"), results[1])
	assert.Equal(t, 77, OverallPercentage(results, weights))
}

func TestMergeTermPreservesOtherTerms(t *testing.T) {
	_, session, subjects, weights := endToEndFixture()
	term2 := []models.Result{
		scored("Math", "Term2", 30, 100, 30, "F"),
		{Subject: "History", Term: "Term2", Score: models.LegacyPercent{}, Percentage: 81, Grade: "B+", Remarks: "legacy"},
	}
	students := []models.Student{{
		ID:      "S1",
		Grade:   "10A",
		Results: models.ResultList{term2[0], scored("Math", "Term1", 10, 50, 20, "F"), term2[1]},
	}}
	before, err := json.Marshal(term2)
	require.NoError(t, err)

	merged, _ := MergeTerm(students, session, subjects, weights)

	after, err := json.Marshal(merged[0].Results.ForTerm("Term2"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.Equal(t, []models.Result(term2), []models.Result(merged[0].Results[:2]))
}

func TestMergeTermSubjectListIsAuthoritative(t *testing.T) {
	weights := WeightsTable{}
	students := []models.Student{{
		ID:    "S1",
		Grade: "10A",
		Results: models.ResultList{
			scored("Math", "Term1", 50, 100, 50, "C"),
			scored("Art", "Term1", 90, 100, 90, "A+"),
		},
	}}
	session := NewSession("10A", "Term1")
	session.Stage("S1", "Math", 60)

	merged, _ := MergeTerm(students, session, []string{"Math"}, weights)
	results := merged[0].Results.ForTerm("Term1")
	require.Len(t, results, 1)
	assert.Equal(t, "Math", results[0].Subject)
	_, found := merged[0].Results.Find("Art", "Term1")
	assert.False(t, found)
}

func TestMergeTermFallsBackToPriorThenZero(t *testing.T) {
	weights := WeightsTable{}
	weights.SetTotal("Term1", "Science", 50)
	students := []models.Student{{
		ID:    "S1",
		Grade: "10A",
		Results: models.ResultList{
			{Subject: "Science", Term: "Term1", Score: models.LegacyPercent{}, Percentage: 80, Remarks: "keep"},
			scored("English", "Term1", 33, 100, 33, "F"),
		},
	}}
	session := NewSession("10A", "Term1")
	session.Stage("S1", "Math", 72)

	merged, _ := MergeTerm(students, session, []string{"Math", "Science", "English", "Art"}, weights)
	results := merged[0].Results
	require.Len(t, results, 4)

	assert.Equal(t, 72, results[0].Percentage)

	science, ok := results[1].Points()
	require.True(t, ok)
	assert.Equal(t, 40.0, science.Obtained)
	assert.Equal(t, 80, results[1].Percentage)
	assert.Equal(t, "keep", results[1].Remarks)

	english, _ := results[2].Points()
	assert.Equal(t, 33.0, english.Obtained)

	art, _ := results[3].Points()
	assert.Equal(t, 0.0, art.Obtained)
	assert.Equal(t, "F", results[3].Grade)
}

func TestMergeTermOnlyTouchesClass(t *testing.T) {
	students := []models.Student{
		{ID: "S1", Grade: "10A"},
		{ID: "S2", Grade: "10B", Results: models.ResultList{scored("Math", "Term1", 5, 100, 5, "F")}},
	}
	session := NewSession("10A", "Term1")
	session.Stage("S2", "Math", 99)

	merged, _ := MergeTerm(students, session, []string{"Math"}, WeightsTable{})
	assert.Equal(t, students[1], merged[1])
	assert.Equal(t, 0, merged[0].Results[0].Percentage)
}

func TestMergeTermEmptySessionIsNoop(t *testing.T) {
	students, _, subjects, weights := endToEndFixture()

	merged, changed := MergeTerm(students, NewSession("10A", "Term1"), subjects, weights)
	assert.False(t, changed)
	assert.Equal(t, students, merged)

	merged, changed = MergeTerm(students, nil, subjects, weights)
	assert.False(t, changed)
	assert.Equal(t, students, merged)
}

func TestMergeTermDoesNotMutateInput(t *testing.T) {
	original := scored("Math", "Term1", 10, 50, 20, "F")
	students := []models.Student{{ID: "S1", Grade: "10A", Results: models.ResultList{original}}}
	session := NewSession("10A", "Term1")
	session.Stage("S1", "Math", 45)

	first, _ := MergeTerm(students, session, []string{"Math"}, WeightsTable{})
	second, _ := MergeTerm(students, session, []string{"Math"}, WeightsTable{})

	assert.Equal(t, original, students[0].Results[0])
	assert.Equal(t, first, second)
	assert.Equal(t, 1, session.Len())
}
