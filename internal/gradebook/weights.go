// Package gradebook holds the scoring and term lifecycle rules applied to a roster.
// Everything here is pure: functions take the roster by value and return new slices.
package gradebook

import (
	"encoding/json"
	"fmt"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// DefaultTotal is the maximum score assumed for a subject without a configured weight.
const DefaultTotal = 100.0

// WeightsTable maps term -> subject -> total. Flat holds the older term-independent
// subject -> total shape, which may be mixed into the same document.
type WeightsTable struct {
	PerTerm map[string]map[string]float64
	Flat    map[string]float64
}

// ResolveTotal returns the maximum achievable score for subject in term.
func (w WeightsTable) ResolveTotal(subject, term string) float64 {
	if total, ok := w.PerTerm[term][subject]; ok && total > 0 {
		return total
	}
	if total, ok := w.Flat[subject]; ok && total > 0 {
		return total
	}
	return DefaultTotal
}

// SetTotal records a per-term total.
func (w *WeightsTable) SetTotal(term, subject string, total float64) {
	if w.PerTerm == nil {
		w.PerTerm = map[string]map[string]float64{}
	}
	if w.PerTerm[term] == nil {
		w.PerTerm[term] = map[string]float64{}
	}
	w.PerTerm[term][subject] = total
}

// Validate rejects non-positive totals, and flat subjects named like a term, which
// would collide with that term's object in the stored document.
func (w WeightsTable) Validate() error {
	for term, subjects := range w.PerTerm {
		if _, ok := w.Flat[term]; ok {
			return fmt.Errorf("flat total for %s collides with the term of the same name", term)
		}
		for subject, total := range subjects {
			if total <= 0 {
				return fmt.Errorf("total for %s in %s must be positive", subject, term)
			}
		}
	}
	for subject, total := range w.Flat {
		if total <= 0 {
			return fmt.Errorf("total for %s must be positive", subject)
		}
	}
	return nil
}

// MarshalJSON writes flat entries and term objects into one document.
func (w WeightsTable) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(w.PerTerm)+len(w.Flat))
	for subject, total := range w.Flat {
		out[subject] = total
	}
	for term, subjects := range w.PerTerm {
		out[term] = subjects
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both shapes. Values that are not positive numbers are dropped.
func (w *WeightsTable) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode weights table: %w", err)
	}
	table := WeightsTable{PerTerm: map[string]map[string]float64{}, Flat: map[string]float64{}}
	for key, value := range raw {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(value, &nested); err == nil && nested != nil {
			for subject, v := range nested {
				if total, ok := models.ParseLenientFloat(v); ok && total > 0 {
					table.SetTotal(key, subject, total)
				}
			}
			continue
		}
		if total, ok := models.ParseLenientFloat(value); ok && total > 0 {
			table.Flat[key] = total
		}
	}
	*w = table
	return nil
}

// SubjectsTable maps a class label to its ordered gradable subjects.
type SubjectsTable map[string][]string

// For returns a copy of the subject list for class.
func (t SubjectsTable) For(class string) []string {
	subjects := t[class]
	out := make([]string, len(subjects))
	copy(out, subjects)
	return out
}
