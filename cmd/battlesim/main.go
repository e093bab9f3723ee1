// Command battlesim runs one scripted battle from the command line: a
// small demonstration harness for the engine, not a production service.
// Every mon on both sides always picks its first move until the battle
// ends or a turn cap is hit, and the resulting log is printed to stdout.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/caarlos0/env/v11"

	"github.com/louisbranch/battlecore/battle"
	"github.com/louisbranch/battlecore/catalog"
	"github.com/louisbranch/battlecore/catalog/jsonload"
	"github.com/louisbranch/battlecore/internal/replaylog"
	"github.com/louisbranch/battlecore/state"
)

// RunConfig is the environment-driven configuration for one simulation
// run, following the teacher's cmd/.../Config convention of env tags plus
// envDefault, layered under flag overrides.
type RunConfig struct {
	Seed        uint64 `env:"BATTLESIM_SEED" envDefault:"1"`
	Format      string `env:"BATTLESIM_FORMAT" envDefault:"battlesim-demo"`
	CatalogPath string `env:"BATTLESIM_CATALOG_PATH"`
	ReplayDBPath string `env:"BATTLESIM_REPLAY_DB_PATH"`
	MaxTurns    int    `env:"BATTLESIM_MAX_TURNS" envDefault:"50"`
}

func parseConfig(fs *flag.FlagSet, args []string) (RunConfig, error) {
	var cfg RunConfig
	if err := env.Parse(&cfg); err != nil {
		return RunConfig{}, fmt.Errorf("parse env: %w", err)
	}
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "deterministic PRNG seed")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "battle format label")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "path to a catalog JSON document; built-in fixture if empty")
	fs.StringVar(&cfg.ReplayDBPath, "replay-db", cfg.ReplayDBPath, "optional sqlite path to persist the finished log")
	fs.IntVar(&cfg.MaxTurns, "max-turns", cfg.MaxTurns, "give up after this many turns")
	if err := fs.Parse(args); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

func main() {
	cfg, err := parseConfig(flag.NewFlagSet("battlesim", flag.ExitOnError), os.Args[1:])
	if err != nil {
		log.Fatalf("battlesim: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("battlesim: %v", err)
	}
}

func run(cfg RunConfig) error {
	store, err := loadStore(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	options := battle.Options{
		BattleType: battle.TypeSingles,
		Format:     cfg.Format,
		Seed:       cfg.Seed,
		HasSeed:    true,
		Sides: []battle.SideSetup{
			{Name: "Side A", Players: []string{"Player 1"}},
			{Name: "Side B", Players: []string{"Player 2"}},
		},
	}
	b, err := battle.Create(store, options, battle.DefaultEngineOptions())
	if err != nil {
		return fmt.Errorf("create battle: %w", err)
	}

	member := defaultTeamMember()
	if err := b.UpdateTeam(0, []battle.TeamMemberInput{member}); err != nil {
		return fmt.Errorf("update team 0: %w", err)
	}
	if err := b.UpdateTeam(1, []battle.TeamMemberInput{member}); err != nil {
		return fmt.Errorf("update team 1: %w", err)
	}
	if err := b.Start(); err != nil {
		return fmt.Errorf("start battle: %w", err)
	}

	for turn := 0; turn < cfg.MaxTurns; turn++ {
		status := b.PublicStatus()
		if status.State == battle.StateEnded {
			break
		}
		if err := b.MakeChoice(0, "move 0"); err != nil {
			return fmt.Errorf("turn %d: player 0 choice: %w", turn, err)
		}
		if err := b.MakeChoice(1, "move 0"); err != nil {
			return fmt.Errorf("turn %d: player 1 choice: %w", turn, err)
		}
	}

	lines := b.FullLog(-1)
	for _, line := range lines {
		fmt.Println(line)
	}

	if cfg.ReplayDBPath != "" {
		store, err := replaylog.Open(cfg.ReplayDBPath)
		if err != nil {
			return fmt.Errorf("open replay log: %w", err)
		}
		defer store.Close()
		if err := store.AppendLog(string(b.ID()), lines); err != nil {
			return fmt.Errorf("persist replay log: %w", err)
		}
	}

	return nil
}

func loadStore(path string) (*catalog.Store, error) {
	if path == "" {
		return builtinFixtureStore()
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return jsonload.Load(doc)
}

// builtinFixtureStore provides a minimal one-species, one-move catalog so
// battlesim runs out of the box without a data file.
func builtinFixtureStore() (*catalog.Store, error) {
	builder := catalog.NewBuilder()
	builder.AddSpecies(catalog.SpeciesData{
		ID:        catalog.NewId("Bulbasaur"),
		Name:      "Bulbasaur",
		Types:     []catalog.Type{"Grass", "Poison"},
		BaseStats: catalog.BaseStats{HP: 45, Atk: 49, Def: 49, SpA: 65, SpD: 65, Spe: 45},
		Abilities: []catalog.Id{catalog.NewId("Overgrow")},
	})
	builder.AddMove(catalog.MoveData{
		ID:        catalog.NewId("Tackle"),
		Name:      "Tackle",
		Type:      "Normal",
		Category:  catalog.CategoryPhysical,
		BasePower: 40,
		Accuracy:  catalog.AccuracyChance(100),
		PP:        35,
		Priority:  0,
		Target:    catalog.TargetAdjacentFoe,
	})
	return builder.Build()
}

func defaultTeamMember() battle.TeamMemberInput {
	return battle.TeamMemberInput{
		Species:  "Bulbasaur",
		Nickname: "Bulbasaur",
		Level:    100,
		IVs:      state.IVs{HP: 31, Atk: 31, Def: 31, SpA: 31, SpD: 31, Spe: 31},
		Moves:    []string{"Tackle"},
	}
}
