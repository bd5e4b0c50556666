package gradebook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTotalFallsBackTo100(t *testing.T) {
	var empty WeightsTable
	assert.Equal(t, 100.0, empty.ResolveTotal("Math", "Term1"))

	w := WeightsTable{PerTerm: map[string]map[string]float64{"Term1": {"Math": 50}}}
	assert.Equal(t, 100.0, w.ResolveTotal("Science", "Term1"))
	assert.Equal(t, 100.0, w.ResolveTotal("Math", "Term2"))
}

func TestResolveTotalPrefersTermThenFlat(t *testing.T) {
	w := WeightsTable{
		PerTerm: map[string]map[string]float64{"Term1": {"Math": 50, "Art": 0}},
		Flat:    map[string]float64{"Math": 80, "Art": 25},
	}
	assert.Equal(t, 50.0, w.ResolveTotal("Math", "Term1"))
	assert.Equal(t, 80.0, w.ResolveTotal("Math", "Term2"))
	assert.Equal(t, 25.0, w.ResolveTotal("Art", "Term1"))
}

func TestWeightsTableUnmarshalMixedShapes(t *testing.T) {
	doc := `{"Term1":{"Math":"50","Science":100,"Bad":"x","Neg":-3},"English":60,"Junk":"abc"}`
	var w WeightsTable
	require.NoError(t, json.Unmarshal([]byte(doc), &w))

	assert.Equal(t, 50.0, w.ResolveTotal("Math", "Term1"))
	assert.Equal(t, 100.0, w.ResolveTotal("Science", "Term1"))
	assert.Equal(t, 100.0, w.ResolveTotal("Bad", "Term1"))
	assert.Equal(t, 100.0, w.ResolveTotal("Neg", "Term1"))
	assert.Equal(t, 60.0, w.ResolveTotal("English", "Final"))
	assert.NotContains(t, w.Flat, "Junk")
}

func TestWeightsTableRoundTrip(t *testing.T) {
	w := WeightsTable{Flat: map[string]float64{"Art": 40}}
	w.SetTotal("Term1", "Math", 50)

	data, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Art":40,"Term1":{"Math":50}}`, string(data))

	var decoded WeightsTable
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, w.PerTerm, decoded.PerTerm)
	assert.Equal(t, w.Flat, decoded.Flat)
}

func TestWeightsTableValidate(t *testing.T) {
	w := WeightsTable{}
	w.SetTotal("Term1", "Math", 0)
	assert.Error(t, w.Validate())

	w.SetTotal("Term1", "Math", 10)
	assert.NoError(t, w.Validate())
}

func TestWeightsTableValidateRejectsSubjectNamedLikeTerm(t *testing.T) {
	w := WeightsTable{Flat: map[string]float64{"Term1": 80, "Math": 100}}
	w.SetTotal("Term1", "Math", 50)
	assert.ErrorContains(t, w.Validate(), "Term1")

	delete(w.Flat, "Term1")
	require.NoError(t, w.Validate())
	raw, err := json.Marshal(w)
	require.NoError(t, err)
	var back WeightsTable
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, 50.0, back.ResolveTotal("Math", "Term1"))
	assert.Equal(t, 100.0, back.ResolveTotal("Math", "Term2"))
}

func TestSubjectsTableForReturnsCopy(t *testing.T) {
	table := SubjectsTable{"10A": {"Math", "Science"}}
	subjects := table.For("10A")
	subjects[0] = "Changed"
	assert.Equal(t, []string{"Math", "Science"}, table["10A"])
	assert.Empty(t, table.For("9B"))
}
