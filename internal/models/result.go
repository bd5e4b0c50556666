package models

import (
	"database/sql/driver"
	"encoding/json"
	"math"
)

// Score is the scored part of a Result. It is either ScoredPoints or LegacyPercent.
type Score interface {
	// ObtainedOf returns the obtained points measured against total.
	ObtainedOf(total float64, percentage int) float64
	isScore()
}

// ScoredPoints is a result produced by the normalizer with explicit points.
type ScoredPoints struct {
	Obtained float64
	Total    float64
}

// ObtainedOf returns the recorded points.
func (s ScoredPoints) ObtainedOf(float64, int) float64 { return s.Obtained }

func (ScoredPoints) isScore() {}

// LegacyPercent marks an imported record that only carries a percentage.
type LegacyPercent struct{}

// ObtainedOf derives points from the stored percentage.
func (LegacyPercent) ObtainedOf(total float64, percentage int) float64 {
	return math.Round(float64(percentage) / 100 * total)
}

func (LegacyPercent) isScore() {}

// Result is one subject's outcome in one term.
type Result struct {
	Subject    string
	Term       string
	Score      Score
	Percentage int
	Grade      string
	Remarks    string
}

// Points returns the scored variant when the result carries explicit points.
func (r Result) Points() (ScoredPoints, bool) {
	p, ok := r.Score.(ScoredPoints)
	return p, ok
}

// ObtainedOf resolves obtained points, falling back to the percentage for legacy records.
func (r Result) ObtainedOf(total float64) float64 {
	if r.Score == nil {
		return LegacyPercent{}.ObtainedOf(total, r.Percentage)
	}
	return r.Score.ObtainedOf(total, r.Percentage)
}

type resultJSON struct {
	Subject    string        `json:"subject"`
	Term       string        `json:"term"`
	Total      *LenientFloat `json:"total,omitempty"`
	Obtained   *LenientFloat `json:"obtained,omitempty"`
	Percentage LenientFloat  `json:"percentage"`
	Grade      string        `json:"grade"`
	Remarks    string        `json:"remarks"`
}

// MarshalJSON writes the flat record shape; legacy results omit total and obtained.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Subject:    r.Subject,
		Term:       r.Term,
		Percentage: LenientFloat(r.Percentage),
		Grade:      r.Grade,
		Remarks:    r.Remarks,
	}
	if p, ok := r.Points(); ok {
		total := LenientFloat(p.Total)
		obtained := LenientFloat(p.Obtained)
		out.Total = &total
		out.Obtained = &obtained
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both scored and percentage-only records.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	pct := int(math.Round(float64(in.Percentage)))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	*r = Result{
		Subject:    in.Subject,
		Term:       in.Term,
		Percentage: pct,
		Grade:      in.Grade,
		Remarks:    in.Remarks,
		Score:      LegacyPercent{},
	}
	if in.Obtained != nil {
		points := ScoredPoints{Obtained: float64(*in.Obtained)}
		if in.Total != nil {
			points.Total = float64(*in.Total)
		}
		r.Score = points
	}
	return nil
}

// ResultList is the JSONB encoded list of active results.
type ResultList []Result

// Value implements driver.Valuer.
func (l ResultList) Value() (driver.Value, error) {
	if l == nil {
		l = ResultList{}
	}
	return jsonValue([]Result(l), "results")
}

// Scan implements sql.Scanner.
func (l *ResultList) Scan(value interface{}) error {
	*l = ResultList{}
	return scanJSON(value, (*[]Result)(l), "results")
}

// ForTerm returns the results recorded for term in stored order.
func (l ResultList) ForTerm(term string) []Result {
	var out []Result
	for _, r := range l {
		if r.Term == term {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the first result for the subject and term pair.
func (l ResultList) Find(subject, term string) (Result, bool) {
	for _, r := range l {
		if r.Subject == subject && r.Term == term {
			return r, true
		}
	}
	return Result{}, false
}

// TermSnapshot is an archived copy of a term's results.
type TermSnapshot struct {
	Term    string   `json:"term"`
	Results []Result `json:"results"`
}

// TermSnapshotList is the JSONB encoded archive history.
type TermSnapshotList []TermSnapshot

// Value implements driver.Valuer.
func (l TermSnapshotList) Value() (driver.Value, error) {
	if l == nil {
		l = TermSnapshotList{}
	}
	return jsonValue([]TermSnapshot(l), "previous results")
}

// Scan implements sql.Scanner.
func (l *TermSnapshotList) Scan(value interface{}) error {
	*l = TermSnapshotList{}
	return scanJSON(value, (*[]TermSnapshot)(l), "previous results")
}

// Latest returns the most recent snapshot for term.
func (l TermSnapshotList) Latest(term string) (TermSnapshot, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].Term == term {
			return l[i], true
		}
	}
	return TermSnapshot{}, false
}
