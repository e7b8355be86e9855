package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gridiron-edge/internal/models"
)

func TestParseCanonicalForm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"already canonical",
			"elo_diff > 100 && home_favorite == 1",
			"elo_diff > 100 && home_favorite == 1",
		},
		{
			"unicode conjunction and comparison",
			"elo_diff > 100 ∧ home_favorite == 1",
			"elo_diff > 100 && home_favorite == 1",
		},
		{
			"clauses sort into stable order",
			"home_favorite == 1 && elo_diff > 100",
			"elo_diff > 100 && home_favorite == 1",
		},
		{
			"whitespace collapsed and lowercased",
			"  ELO_DIFF   >    100  ",
			"elo_diff > 100",
		},
		{
			"bare equals accepted",
			"divisional = 1",
			"divisional == 1",
		},
		{
			"unicode gte",
			"wind_mph ≥ 15",
			"wind_mph >= 15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Canonical())
		})
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	bad := []string{
		"",
		"elo_diff >",
		"closing_line > 3",
		"elo_diff beats 100",
		"elo_diff > 100 &&",
		"elo_diff > high",
	}
	for _, input := range bad {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) should fail", input)
		}
	}
}

func TestEvaluate(t *testing.T) {
	fv := &models.FeatureVector{
		HomeElo:    1640,
		AwayElo:    1520,
		WindMPH:    18,
		Divisional: true,
	}

	p, err := Parse("elo_diff > 100 && home_favorite == 1")
	require.NoError(t, err)
	assert.True(t, p.Evaluate(fv))

	p, err = Parse("elo_diff > 150")
	require.NoError(t, err)
	assert.False(t, p.Evaluate(fv))

	p, err = Parse("divisional == 1 && wind_mph >= 15")
	require.NoError(t, err)
	assert.True(t, p.Evaluate(fv))

	empty := &Predicate{}
	assert.False(t, empty.Evaluate(fv), "empty conjunction matches nothing")
}

func TestConjoin(t *testing.T) {
	a, err := Parse("elo_diff > 100")
	require.NoError(t, err)
	b, err := Parse("wind_mph >= 15")
	require.NoError(t, err)

	c := Conjoin(a, b)
	assert.Equal(t, "elo_diff > 100 && wind_mph >= 15", c.Canonical())

	// Conjoining with an overlapping clause must not duplicate it.
	again := Conjoin(c, a)
	assert.Equal(t, c.Canonical(), again.Canonical())
}

func TestSimilarity(t *testing.T) {
	identical := Similarity("elo_diff > 100 && home_favorite == 1", "ELO_DIFF > 100 ∧ home_favorite == 1")
	assert.InDelta(t, 1.0, identical, 1e-9, "same predicate in different spellings")

	near := Similarity("elo_diff > 100 && home_favorite == 1", "elo_diff > 110 && home_favorite == 1")
	assert.Greater(t, near, 0.85, "parameter tweak should read as near-duplicate")

	far := Similarity("elo_diff > 100", "precip_prob >= 0.7 && temp_f < 25")
	assert.Less(t, far, 0.85)

	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("elo_diff > 100", ""))
}

func TestFields(t *testing.T) {
	p, err := Parse("elo_diff > 100 && elo_diff < 300 && wind_mph >= 15")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"elo_diff", "wind_mph"}, p.Fields())
}
