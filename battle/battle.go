package battle

import (
	"sync"

	"github.com/google/uuid"
	"github.com/louisbranch/battlecore/arena"
	"github.com/louisbranch/battlecore/battleerr"
	"github.com/louisbranch/battlecore/battlelog"
	"github.com/louisbranch/battlecore/catalog"
	"github.com/louisbranch/battlecore/enginelog"
	"github.com/louisbranch/battlecore/event"
	"github.com/louisbranch/battlecore/internal/telemetry"
	"github.com/louisbranch/battlecore/prng"
	"github.com/louisbranch/battlecore/request"
	"github.com/louisbranch/battlecore/state"
	"github.com/louisbranch/battlecore/validate"
)

// TeamMemberInput is the on-disk team JSON shape for one roster entry,
// used by UpdateTeam before a battle starts.
type TeamMemberInput struct {
	Species  string
	Nickname string
	Level    int
	Gender   string
	Nature   string
	Item     string
	Ability  string
	Moves    []string
	IVs      state.IVs
	EVs      state.EVs
}

// Battle is one running engine instance: the only type the facade
// (Create/Start/MakeChoice/...) operates on. Per spec §5 it is
// single-threaded and cooperative; the mutex here guards only the fields
// multiple goroutines might race to read (log/status), not the turn loop
// itself, which the engine's own calling convention guarantees is never
// reentered concurrently.
type Battle struct {
	mu sync.Mutex

	id      ID
	options Options
	engOpts EngineOptions
	store   *catalog.Store

	state   State
	outcome *Outcome

	mons  *arena.Arena[arena.MonHandle, state.Mon]
	sides []*state.Side
	field *state.Field

	rng *prng.LCG
	log *battlelog.Log

	dispatcher *event.Dispatcher
	tracer     telemetry.Tracer

	pendingTeams map[int][]TeamMemberInput
	teamOrder    map[int][]int

	requests map[int]*request.Request
	choices  map[int][]request.SlotChoice
}

// Create constructs a new Battle in the Preparing state. The catalog store
// is shared read-only across battles, per spec §5's shared-resource
// policy.
func Create(store *catalog.Store, options Options, engOpts EngineOptions) (*Battle, error) {
	if len(options.Sides) < 2 {
		return nil, battleerr.New(battleerr.CodeValidation, "a battle requires at least two sides")
	}
	var rng *prng.LCG
	if options.HasSeed {
		rng = prng.New(options.Seed)
	} else {
		var err error
		rng, err = prng.NewRandomSeed()
		if err != nil {
			return nil, battleerr.Wrap(battleerr.CodeInternalInvariant, err, "failed to seed prng")
		}
	}

	b := &Battle{
		id:           ID(catalog.NewId(options.Format).String() + "-battle"),
		options:      options,
		engOpts:      engOpts,
		store:        store,
		state:        StatePreparing,
		mons:         arena.New[arena.MonHandle, state.Mon](),
		field:        state.NewField(state.Environment(options.Environment)),
		rng:          rng,
		log:          battlelog.NewWithCorrelationID(uuid.NewString()),
		dispatcher:   event.NewDispatcher(rng, engOpts.TieResolution),
		tracer:       telemetry.NewTracer(engOpts.TracerProvider),
		pendingTeams: map[int][]TeamMemberInput{},
		teamOrder:    map[int][]int{},
		requests:     map[int]*request.Request{},
		choices:      map[int][]request.SlotChoice{},
	}
	for i, sideSetup := range options.Sides {
		side := state.NewSide(i)
		for pi, name := range sideSetup.Players {
			side.Players = append(side.Players, state.NewPlayer(pi, name))
		}
		b.sides = append(b.sides, side)
	}
	return b, nil
}

// ID returns the Battle's identifier.
func (b *Battle) ID() ID { return b.id }

// Delete releases the Battle. The engine holds no external resources, so
// this only exists to make the facade's lifecycle explicit (spec §6).
func (b *Battle) Delete() {}

// UpdateTeam stores team as player's pending roster, prior to Start.
func (b *Battle) UpdateTeam(playerGlobalIndex int, team []TeamMemberInput) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StatePreparing {
		return battleerr.New(battleerr.CodeInvalidChoice, "teams can only be updated while Preparing")
	}
	b.pendingTeams[playerGlobalIndex] = team
	return nil
}

// ValidatePlayer runs the configured clauses against a player's pending
// team, per spec §4.11.
func (b *Battle) ValidatePlayer(playerGlobalIndex int) validate.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ruleset().Validate(b.teamMembers(b.pendingTeams[playerGlobalIndex]))
}

// teamMembers converts the on-disk team shape into validate.TeamMember,
// resolving species names/IDs through the catalog where possible so
// clause problem text uses display names rather than normalized IDs.
func (b *Battle) teamMembers(team []TeamMemberInput) []validate.TeamMember {
	members := make([]validate.TeamMember, 0, len(team))
	for _, m := range team {
		sp, ok, err := b.store.SpeciesByName(m.Species)
		name := m.Species
		id := catalog.NewId(m.Species)
		if err == nil && ok {
			id = sp.ID
			name = sp.Name
		}
		moveIDs := make([]catalog.Id, 0, len(m.Moves))
		for _, mv := range m.Moves {
			moveIDs = append(moveIDs, catalog.NewId(mv))
		}
		members = append(members, validate.TeamMember{
			Species:     id,
			SpeciesName: name,
			Nickname:    m.Nickname,
			Item:        catalog.NewId(m.Item),
			Moves:       moveIDs,
			Level:       m.Level,
		})
	}
	return members
}

// ruleset builds the validate.Ruleset named by the battle's configured
// RuleClauses.
func (b *Battle) ruleset() validate.Ruleset {
	rs := validate.Ruleset{}
	for _, clauseID := range b.options.RuleClauses {
		switch clauseID {
		case catalog.NewId("species-clause"):
			rs.Clauses = append(rs.Clauses, validate.SpeciesClause{})
		case catalog.NewId("item-clause"):
			rs.Clauses = append(rs.Clauses, validate.ItemClause{})
		}
	}
	return rs
}

// PublicStatus returns the cross-side-visible battle snapshot (spec §6
// `battle(battle)`).
func (b *Battle) PublicStatus() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	players := 0
	for _, s := range b.sides {
		players += len(s.Players)
	}
	return Status{
		State:   b.state,
		Turn:    b.field.Turn,
		Sides:   len(b.sides),
		Players: players,
		Outcome: b.outcome,
	}
}

// FullLog returns the log filtered to side (or the whole log if side < 0).
func (b *Battle) FullLog(side int) []string { return b.log.FullLog(side) }

// FullLogPage returns one page of the log filtered to side, per spec §6's
// full_log extended with paging for battles whose log has grown too large
// to return in a single call.
func (b *Battle) FullLogPage(side int, req request.LogPageRequest) (request.LogPage, error) {
	b.mu.Lock()
	lines := b.log.FullLog(side)
	b.mu.Unlock()
	return request.PageLog(lines, req)
}

// LastLogEntry returns the most recent entry visible to side.
func (b *Battle) LastLogEntry(side int) (battlelog.Entry, bool) { return b.log.LastEntry(side) }

// Subscribe streams log entries visible to side as they are produced.
func (b *Battle) Subscribe(side int) (<-chan battlelog.Entry, func()) { return b.log.Subscribe(side) }

func (b *Battle) warnf(format string, args ...any) { enginelog.Warnf(format, args...) }
