package validate

import (
	"testing"

	"github.com/louisbranch/battlecore/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeciesClauseRejectsDuplicateSpecies(t *testing.T) {
	team := []TeamMember{
		{Species: catalog.NewId("bulbasaur"), SpeciesName: "Bulbasaur"},
		{Species: catalog.NewId("bulbasaur"), SpeciesName: "Bulbasaur"},
	}
	problems := SpeciesClause{}.Check(team)
	require.Len(t, problems, 1)
	assert.Equal(t, "Species Bulbasaur appears more than 1 time.", problems[0])
}

func TestSpeciesClauseAcceptsUniqueSpecies(t *testing.T) {
	team := []TeamMember{
		{Species: catalog.NewId("bulbasaur")},
		{Species: catalog.NewId("charmander")},
	}
	assert.Empty(t, SpeciesClause{}.Check(team))
}

func TestItemClauseRejectsDuplicateItems(t *testing.T) {
	team := []TeamMember{
		{Item: catalog.NewId("leftovers")},
		{Item: catalog.NewId("leftovers")},
	}
	problems := ItemClause{}.Check(team)
	require.Len(t, problems, 1)
}

func TestItemClauseIgnoresNoItem(t *testing.T) {
	team := []TeamMember{{}, {}}
	assert.Empty(t, ItemClause{}.Check(team))
}

func TestNicknameLengthClauseRejectsTooLong(t *testing.T) {
	clause := NicknameLengthClause{MaxLength: 5}
	problems := clause.Check([]TeamMember{{Nickname: "Waaaaaay Too Long"}})
	require.Len(t, problems, 1)
}

func TestLevelCapClauseRejectsAboveCap(t *testing.T) {
	clause := LevelCapClause{MaxLevel: 50}
	problems := clause.Check([]TeamMember{{Level: 100, SpeciesName: "Venusaur"}})
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "Venusaur")
}

func TestTeamSizeClauseEnforcesBounds(t *testing.T) {
	clause := TeamSizeClause{Min: 1, Max: 6}
	assert.Empty(t, clause.Check(make([]TeamMember, 3)))
	assert.Len(t, clause.Check(make([]TeamMember, 0)), 1)
	assert.Len(t, clause.Check(make([]TeamMember, 10)), 1)
}

func TestRulesetAggregatesProblemsAcrossClauses(t *testing.T) {
	rs := Ruleset{Clauses: []Clause{SpeciesClause{}, TeamSizeClause{Min: 2, Max: 6}}}
	team := []TeamMember{{Species: catalog.NewId("eevee")}}
	result := rs.Validate(team)
	assert.False(t, result.Legal())
	assert.Len(t, result.Problems, 1)
}
