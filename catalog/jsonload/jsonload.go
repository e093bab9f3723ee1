// Package jsonload reads a catalog.Store from on-disk JSON. Each record
// kind is stored as a JSON array of records that each carry their own "id"
// field (the type chart and aliases are objects), and is read with gjson
// rather than a full struct unmarshal up front: a data file is usually one
// big document with move/species/ability/item/condition/clause/typechart/
// alias sections, and gjson lets each section get its own array walk
// without committing to a single top-level schema for the whole file.
package jsonload

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/louisbranch/battlecore/battleerr"
	"github.com/louisbranch/battlecore/catalog"
	"github.com/louisbranch/battlecore/fxlang"
)

// Load parses doc (a full catalog JSON document) and returns the built
// Store. doc is expected to have top-level arrays "moves", "species",
// "abilities", "items", "conditions", "clauses", and objects "typeChart",
// "aliases"; any of these may be absent.
func Load(doc []byte) (*catalog.Store, error) {
	if !gjson.ValidBytes(doc) {
		return nil, battleerr.New(battleerr.CodeValidation, "catalog document is not valid JSON")
	}
	root := gjson.ParseBytes(doc)
	b := catalog.NewBuilder()

	var loadErr error
	fail := func(kind string, id string, err error) {
		if loadErr == nil {
			loadErr = battleerr.Wrap(battleerr.CodeValidation, err, fmt.Sprintf("loading %s %q", kind, id))
		}
	}

	root.Get("moves").ForEach(func(_, v gjson.Result) bool {
		m, err := parseMove(v)
		if err != nil {
			fail("move", v.Get("id").String(), err)
			return false
		}
		b.AddMove(m)
		return true
	})
	if loadErr != nil {
		return nil, loadErr
	}

	root.Get("species").ForEach(func(_, v gjson.Result) bool {
		s, err := parseSpecies(v)
		if err != nil {
			fail("species", v.Get("id").String(), err)
			return false
		}
		b.AddSpecies(s)
		return true
	})
	if loadErr != nil {
		return nil, loadErr
	}

	root.Get("abilities").ForEach(func(_, v gjson.Result) bool {
		a, err := parseAbility(v)
		if err != nil {
			fail("ability", v.Get("id").String(), err)
			return false
		}
		b.AddAbility(a)
		return true
	})
	if loadErr != nil {
		return nil, loadErr
	}

	root.Get("items").ForEach(func(_, v gjson.Result) bool {
		it, err := parseItem(v)
		if err != nil {
			fail("item", v.Get("id").String(), err)
			return false
		}
		b.AddItem(it)
		return true
	})
	if loadErr != nil {
		return nil, loadErr
	}

	root.Get("conditions").ForEach(func(_, v gjson.Result) bool {
		c := catalog.ConditionData{
			ID:        catalog.NewId(v.Get("id").String()),
			Name:      v.Get("name").String(),
			Duration:  int(v.Get("duration").Int()),
			Layerable: v.Get("layerable").Bool(),
			MaxLayers: int(v.Get("maxLayers").Int()),
		}
		callbacks, err := parseCallbacks(v.Get("callbacks"))
		if err != nil {
			fail("condition", v.Get("id").String(), err)
			return false
		}
		c.Callbacks = callbacks
		b.AddCondition(c)
		return true
	})
	if loadErr != nil {
		return nil, loadErr
	}

	root.Get("clauses").ForEach(func(_, v gjson.Result) bool {
		b.AddClause(catalog.ClauseData{
			ID:   catalog.NewId(v.Get("id").String()),
			Name: v.Get("name").String(),
		})
		return true
	})

	if tc := root.Get("typeChart"); tc.Exists() {
		b.SetTypeChart(parseTypeChart(tc))
	}

	root.Get("aliases").ForEach(func(key, v gjson.Result) bool {
		b.AddAlias(catalog.NewId(key.String()), catalog.NewId(v.String()))
		return true
	})

	return b.Build()
}

func parseMove(v gjson.Result) (catalog.MoveData, error) {
	callbacks, err := parseCallbacks(v.Get("callbacks"))
	if err != nil {
		return catalog.MoveData{}, err
	}
	m := catalog.MoveData{
		ID:              catalog.NewId(v.Get("id").String()),
		Name:            v.Get("name").String(),
		Type:            catalog.Type(v.Get("type").String()),
		BasePower:       int(v.Get("basePower").Int()),
		PP:              int(v.Get("pp").Int()),
		Priority:        int(v.Get("priority").Int()),
		Target:          catalog.TargetKind(v.Get("target").String()),
		CritRatio:       int(v.Get("critRatio").Int()),
		SecondaryChance: int(v.Get("secondaryChance").Int()),
		FixedDamage:     int(v.Get("fixedDamage").Int()),
		SelfDestruct:    v.Get("selfDestruct").Bool(),
		Callbacks:       callbacks,
	}
	switch v.Get("category").String() {
	case "Special":
		m.Category = catalog.CategorySpecial
	case "Status":
		m.Category = catalog.CategoryStatus
	default:
		m.Category = catalog.CategoryPhysical
	}
	if acc := v.Get("accuracy"); acc.Type == gjson.String && acc.String() == "exempt" {
		m.Accuracy = catalog.AccuracyExempt
	} else {
		m.Accuracy = catalog.AccuracyChance(uint8(acc.Int()))
	}
	v.Get("flags").ForEach(func(_, f gjson.Result) bool {
		m.Flags = append(m.Flags, f.String())
		return true
	})
	if min, max := v.Get("multiHit.0"), v.Get("multiHit.1"); min.Exists() && max.Exists() {
		m.MultiHit = [2]int{int(min.Int()), int(max.Int())}
	}
	if d := v.Get("drain"); d.Exists() {
		m.Drain = &catalog.Fraction{Num: int(d.Get("num").Int()), Den: int(d.Get("den").Int())}
	}
	if r := v.Get("recoil"); r.Exists() {
		m.Recoil = &catalog.Fraction{Num: int(r.Get("num").Int()), Den: int(r.Get("den").Int())}
	}
	return m, nil
}

func parseSpecies(v gjson.Result) (catalog.SpeciesData, error) {
	s := catalog.SpeciesData{
		ID:   catalog.NewId(v.Get("id").String()),
		Name: v.Get("name").String(),
		BaseStats: catalog.BaseStats{
			HP:  int(v.Get("baseStats.hp").Int()),
			Atk: int(v.Get("baseStats.atk").Int()),
			Def: int(v.Get("baseStats.def").Int()),
			SpA: int(v.Get("baseStats.spa").Int()),
			SpD: int(v.Get("baseStats.spd").Int()),
			Spe: int(v.Get("baseStats.spe").Int()),
		},
	}
	v.Get("types").ForEach(func(_, t gjson.Result) bool {
		s.Types = append(s.Types, catalog.Type(t.String()))
		return true
	})
	v.Get("abilities").ForEach(func(_, a gjson.Result) bool {
		s.Abilities = append(s.Abilities, catalog.NewId(a.String()))
		return true
	})
	if h := v.Get("hiddenAbility"); h.Exists() {
		s.HiddenAbility = catalog.NewId(h.String())
	}
	return s, nil
}

func parseAbility(v gjson.Result) (catalog.AbilityData, error) {
	callbacks, err := parseCallbacks(v.Get("callbacks"))
	if err != nil {
		return catalog.AbilityData{}, err
	}
	a := catalog.AbilityData{
		ID:        catalog.NewId(v.Get("id").String()),
		Name:      v.Get("name").String(),
		Callbacks: callbacks,
	}
	v.Get("flags").ForEach(func(_, f gjson.Result) bool {
		a.Flags = append(a.Flags, catalog.AbilityFlag(f.String()))
		return true
	})
	return a, nil
}

func parseItem(v gjson.Result) (catalog.ItemData, error) {
	callbacks, err := parseCallbacks(v.Get("callbacks"))
	if err != nil {
		return catalog.ItemData{}, err
	}
	it := catalog.ItemData{
		ID:        catalog.NewId(v.Get("id").String()),
		Name:      v.Get("name").String(),
		Target:    catalog.ItemTarget(v.Get("target").String()),
		Callbacks: callbacks,
	}
	v.Get("flags").ForEach(func(_, f gjson.Result) bool {
		it.Flags = append(it.Flags, catalog.ItemFlag(f.String()))
		return true
	})
	return it, nil
}

func parseCallbacks(v gjson.Result) (catalog.EffectCallbacks, error) {
	if !v.Exists() {
		return nil, nil
	}
	callbacks := catalog.EffectCallbacks{}
	var err error
	v.ForEach(func(event, source gjson.Result) bool {
		prog, progErr := fxlang.NewProgram(source.String())
		if progErr != nil {
			err = fmt.Errorf("callback %q: %w", event.String(), progErr)
			return false
		}
		callbacks[event.String()] = prog
		return true
	})
	if err != nil {
		return nil, err
	}
	return callbacks, nil
}

func parseTypeChart(v gjson.Result) catalog.TypeChart {
	tc := catalog.TypeChart{Effectiveness: map[catalog.Type]map[catalog.Type]uint8{}}
	v.ForEach(func(attacking, row gjson.Result) bool {
		defRow := map[catalog.Type]uint8{}
		row.ForEach(func(defending, mult gjson.Result) bool {
			defRow[catalog.Type(defending.String())] = uint8(mult.Int())
			return true
		})
		tc.Effectiveness[catalog.Type(attacking.String())] = defRow
		return true
	})
	return tc
}

// PatchField rewrites a single field of one record's raw JSON before it is
// parsed, without touching the rest of the document. Used to apply a test
// fixture override (e.g. "give Bulbasaur's Tackle 100 base power") or an
// alias rewrite against a catalog document already read from disk.
func PatchField(doc []byte, path string, value any) ([]byte, error) {
	patched, err := sjson.SetBytes(doc, path, value)
	if err != nil {
		return nil, battleerr.Wrap(battleerr.CodeValidation, err, "patching catalog document")
	}
	return patched, nil
}
