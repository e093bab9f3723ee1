package catalog

import (
	"fmt"

	"github.com/louisbranch/battlecore/battleerr"
)

// maxAliasHops bounds transitive alias resolution; a chain longer than
// this is almost certainly a cycle in the data and is rejected rather than
// looped forever.
const maxAliasHops = 8

// Store is the read-only data catalog: move/species/ability/item/
// condition/clause tables plus the type chart and alias map, looked up by
// Id. A Store is safe for concurrent read access by multiple battles.
type Store struct {
	moves      map[Id]MoveData
	species    map[Id]SpeciesData
	abilities  map[Id]AbilityData
	items      map[Id]ItemData
	conditions map[Id]ConditionData
	clauses    map[Id]ClauseData
	typeChart  TypeChart
	aliases    map[Id]Id

	moveByName    map[string]Id
	speciesByName map[string]Id
}

// Builder accumulates records before producing an immutable Store.
type Builder struct {
	s *Store
}

// NewBuilder creates an empty catalog Builder.
func NewBuilder() *Builder {
	return &Builder{s: &Store{
		moves:         map[Id]MoveData{},
		species:       map[Id]SpeciesData{},
		abilities:     map[Id]AbilityData{},
		items:         map[Id]ItemData{},
		conditions:    map[Id]ConditionData{},
		clauses:       map[Id]ClauseData{},
		aliases:       map[Id]Id{},
		moveByName:    map[string]Id{},
		speciesByName: map[string]Id{},
	}}
}

func (b *Builder) AddMove(m MoveData) *Builder {
	b.s.moves[m.ID] = m
	b.s.moveByName[m.Name] = m.ID
	return b
}

func (b *Builder) AddSpecies(s SpeciesData) *Builder {
	b.s.species[s.ID] = s
	b.s.speciesByName[s.Name] = s.ID
	return b
}

func (b *Builder) AddAbility(a AbilityData) *Builder {
	b.s.abilities[a.ID] = a
	return b
}

func (b *Builder) AddItem(i ItemData) *Builder {
	b.s.items[i.ID] = i
	return b
}

func (b *Builder) AddCondition(c ConditionData) *Builder {
	b.s.conditions[c.ID] = c
	return b
}

func (b *Builder) AddClause(c ClauseData) *Builder {
	b.s.clauses[c.ID] = c
	return b
}

func (b *Builder) SetTypeChart(tc TypeChart) *Builder {
	b.s.typeChart = tc
	return b
}

// AddAlias registers from as an alias that resolves to to. Cycles are
// rejected by Build, not here, since a cycle may only become apparent once
// all aliases are registered.
func (b *Builder) AddAlias(from, to Id) *Builder {
	b.s.aliases[from] = to
	return b
}

// Build validates alias resolution terminates and returns the immutable
// Store. A cycle among aliases is a data error (battleerr.CodeValidation),
// not a panic, since catalogs are normally loaded from untrusted data
// files.
func (b *Builder) Build() (*Store, error) {
	for from := range b.s.aliases {
		if _, err := b.s.TranslateAlias(from); err != nil {
			return nil, err
		}
	}
	return b.s, nil
}

// TranslateAlias resolves id transitively through the alias map, capped at
// maxAliasHops. Returns id unchanged if it is not an alias.
func (s *Store) TranslateAlias(id Id) (Id, error) {
	seen := id
	for hop := 0; hop < maxAliasHops; hop++ {
		next, ok := s.aliases[seen]
		if !ok {
			return seen, nil
		}
		seen = next
	}
	return "", battleerr.Newf(battleerr.CodeValidation, "alias cycle or chain too long starting at %q", id)
}

func (s *Store) Move(id Id) (MoveData, bool, error) {
	resolved, err := s.TranslateAlias(id)
	if err != nil {
		return MoveData{}, false, err
	}
	m, ok := s.moves[resolved]
	return m, ok, nil
}

func (s *Store) Species(id Id) (SpeciesData, bool, error) {
	resolved, err := s.TranslateAlias(id)
	if err != nil {
		return SpeciesData{}, false, err
	}
	sp, ok := s.species[resolved]
	return sp, ok, nil
}

func (s *Store) Ability(id Id) (AbilityData, bool, error) {
	resolved, err := s.TranslateAlias(id)
	if err != nil {
		return AbilityData{}, false, err
	}
	a, ok := s.abilities[resolved]
	return a, ok, nil
}

func (s *Store) Item(id Id) (ItemData, bool, error) {
	resolved, err := s.TranslateAlias(id)
	if err != nil {
		return ItemData{}, false, err
	}
	it, ok := s.items[resolved]
	return it, ok, nil
}

func (s *Store) Condition(id Id) (ConditionData, bool, error) {
	resolved, err := s.TranslateAlias(id)
	if err != nil {
		return ConditionData{}, false, err
	}
	c, ok := s.conditions[resolved]
	return c, ok, nil
}

func (s *Store) Clause(id Id) (ClauseData, bool) {
	c, ok := s.clauses[id]
	return c, ok
}

func (s *Store) TypeChart() TypeChart { return s.typeChart }

func (s *Store) MoveByName(name string) (MoveData, bool, error) {
	id, ok := s.moveByName[name]
	if !ok {
		return MoveData{}, false, nil
	}
	return s.Move(id)
}

func (s *Store) SpeciesByName(name string) (SpeciesData, bool, error) {
	id, ok := s.speciesByName[name]
	if !ok {
		return SpeciesData{}, false, nil
	}
	return s.Species(id)
}

// String-based convenience wrappers, since the rest of the engine usually
// works with raw names/IDs from choice text rather than a pre-normalized Id.
func (s *Store) MoveByID(name string) (MoveData, bool, error) { return s.Move(NewId(name)) }

func (s *Store) describe() string {
	return fmt.Sprintf("moves=%d species=%d abilities=%d items=%d conditions=%d clauses=%d",
		len(s.moves), len(s.species), len(s.abilities), len(s.items), len(s.conditions), len(s.clauses))
}
