package gradebook

// PassThreshold is the minimum overall percentage counted as a pass.
const PassThreshold = 40

type band struct {
	min    int
	letter string
}

// examBands is the seven band scale used by the gradebook and report cards.
var examBands = []band{
	{90, "A+"},
	{80, "A"},
	{70, "B+"},
	{60, "B"},
	{50, "C"},
	{40, "D"},
}

// legacyBands is the nine band scale used for admissions and imported marks.
var legacyBands = []band{
	{90, "A"},
	{85, "A-"},
	{80, "B+"},
	{75, "B"},
	{70, "B-"},
	{65, "C+"},
	{60, "C"},
	{50, "D"},
}

func classify(bands []band, percentage int) string {
	for _, b := range bands {
		if percentage >= b.min {
			return b.letter
		}
	}
	return "F"
}

// ClassifyExam maps a percentage to the gradebook letter grade.
func ClassifyExam(percentage int) string {
	return classify(examBands, percentage)
}

// ClassifyLegacy maps a percentage to the admissions letter grade.
func ClassifyLegacy(percentage int) string {
	return classify(legacyBands, percentage)
}

// Passed reports whether an overall percentage meets PassThreshold.
func Passed(percentage int) bool {
	return percentage >= PassThreshold
}
