// Package validate implements format clause evaluation of spec §4.11:
// team legality checks run before a battle starts, surfaced as an
// aggregate problem list rather than a single error.
package validate

import (
	"fmt"

	"github.com/louisbranch/battlecore/catalog"
)

// TeamMember is the minimal view of one roster entry a clause needs to
// judge legality; it mirrors the on-disk team JSON, not the in-battle Mon.
type TeamMember struct {
	Species     catalog.Id
	SpeciesName string
	Nickname    string
	Item        catalog.Id
	Moves       []catalog.Id
	Level       int
}

// Result is the outcome of validating one team: a non-empty Problems list
// means the team is illegal and start() must refuse to transition out of
// Preparing (spec §4.11, §4.12).
type Result struct {
	Problems []string
}

// Legal reports whether the team passed every clause with no problems.
func (r Result) Legal() bool { return len(r.Problems) == 0 }

func (m TeamMember) displayName() string {
	if m.SpeciesName != "" {
		return m.SpeciesName
	}
	return m.Species.String()
}

// Clause is one format rule. Each clause inspects the team independently
// and appends human-readable problems; clauses never share mutable state,
// so their order of evaluation does not affect the result (only the order
// problems are reported in).
type Clause interface {
	ID() catalog.Id
	Check(team []TeamMember) []string
}

// Ruleset is an ordered list of clauses evaluated together.
type Ruleset struct {
	Clauses []Clause
}

// Validate runs every clause in the ruleset against team and aggregates
// their problems in clause order.
func (rs Ruleset) Validate(team []TeamMember) Result {
	var problems []string
	for _, c := range rs.Clauses {
		problems = append(problems, c.Check(team)...)
	}
	return Result{Problems: problems}
}

// SpeciesClause rejects a team where any species appears more than once.
type SpeciesClause struct{}

func (SpeciesClause) ID() catalog.Id { return catalog.NewId("species-clause") }

func (SpeciesClause) Check(team []TeamMember) []string {
	counts := map[catalog.Id]int{}
	names := map[catalog.Id]string{}
	for _, m := range team {
		counts[m.Species]++
		name := m.SpeciesName
		if name == "" {
			name = m.Species.String()
		}
		names[m.Species] = name
	}
	var problems []string
	for id, n := range counts {
		if n > 1 {
			problems = append(problems, fmt.Sprintf("Species %s appears more than 1 time.", names[id]))
		}
	}
	return problems
}

// ItemClause rejects a team where any item appears more than once (most
// held-item formats allow at most one copy of a given item across a team).
type ItemClause struct{}

func (ItemClause) ID() catalog.Id { return catalog.NewId("item-clause") }

func (ItemClause) Check(team []TeamMember) []string {
	counts := map[catalog.Id]int{}
	for _, m := range team {
		if m.Item.IsEmpty() {
			continue
		}
		counts[m.Item]++
	}
	var problems []string
	for id, n := range counts {
		if n > 1 {
			problems = append(problems, fmt.Sprintf("Item %s appears more than 1 time.", id))
		}
	}
	return problems
}

// NicknameLengthClause caps nickname length.
type NicknameLengthClause struct{ MaxLength int }

func (NicknameLengthClause) ID() catalog.Id { return catalog.NewId("nickname-length-clause") }

func (c NicknameLengthClause) Check(team []TeamMember) []string {
	var problems []string
	for _, m := range team {
		if len(m.Nickname) > c.MaxLength {
			problems = append(problems, fmt.Sprintf("Nickname %q exceeds the maximum length of %d.", m.Nickname, c.MaxLength))
		}
	}
	return problems
}

// ForbiddenMovesClause rejects any team member knowing a banned move.
type ForbiddenMovesClause struct{ Banned map[catalog.Id]bool }

func (ForbiddenMovesClause) ID() catalog.Id { return catalog.NewId("forbidden-moves-clause") }

func (c ForbiddenMovesClause) Check(team []TeamMember) []string {
	var problems []string
	for _, m := range team {
		for _, mv := range m.Moves {
			if c.Banned[mv] {
				problems = append(problems, fmt.Sprintf("%s's move %s is banned.", m.displayName(), mv))
			}
		}
	}
	return problems
}

// LevelCapClause rejects any team member above the configured level cap.
type LevelCapClause struct{ MaxLevel int }

func (LevelCapClause) ID() catalog.Id { return catalog.NewId("level-cap-clause") }

func (c LevelCapClause) Check(team []TeamMember) []string {
	var problems []string
	for _, m := range team {
		if m.Level > c.MaxLevel {
			problems = append(problems, fmt.Sprintf("%s is above the level cap of %d.", m.displayName(), c.MaxLevel))
		}
	}
	return problems
}

// TeamSizeClause bounds the number of team members.
type TeamSizeClause struct{ Min, Max int }

func (TeamSizeClause) ID() catalog.Id { return catalog.NewId("team-size-clause") }

func (c TeamSizeClause) Check(team []TeamMember) []string {
	if len(team) < c.Min || len(team) > c.Max {
		return []string{fmt.Sprintf("Team size %d is outside the allowed range [%d, %d].", len(team), c.Min, c.Max)}
	}
	return nil
}
