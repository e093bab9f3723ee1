package state

import (
	"github.com/louisbranch/battlecore/arena"
	"github.com/louisbranch/battlecore/catalog"
)

// Environment is the battle's fixed terrain backdrop (cave, ice cavern,
// etc.), distinct from the transient weather/terrain conditions layered on
// top of it.
type Environment string

const (
	EnvironmentNone  Environment = ""
	EnvironmentCave  Environment = "cave"
	EnvironmentIce   Environment = "ice"
	EnvironmentSand  Environment = "sand"
	EnvironmentWater Environment = "water"
)

// LastDamage records the most recent damage dealt, for moves like
// Counter/Mirror Coat/Metal Burst that reference it.
type LastDamage struct {
	Amount int
	Source arena.MonHandle
	Move   catalog.Id
}

// Field is the shared environment every Mon and Side sits in.
type Field struct {
	Weather         catalog.Id
	WeatherDuration int
	WeatherSource   arena.MonHandle

	Terrain         catalog.Id
	TerrainDuration int

	PseudoWeather map[catalog.Id]*ConditionInstance

	Environment Environment
	Turn        int
	LastDamage  *LastDamage
}

// NewField creates an empty Field with no weather/terrain and turn 1.
func NewField(env Environment) *Field {
	return &Field{
		PseudoWeather: map[catalog.Id]*ConditionInstance{},
		Environment:   env,
		Turn:          1,
	}
}

// SetWeather installs id as the current weather, replacing any prior
// weather (weather is single-valued, unlike pseudo-weathers which stack by
// ID).
func (f *Field) SetWeather(id catalog.Id, duration int, source arena.MonHandle) {
	f.Weather = id
	f.WeatherDuration = duration
	f.WeatherSource = source
}

// ClearWeather removes the current weather.
func (f *Field) ClearWeather() {
	f.Weather = ""
	f.WeatherDuration = 0
	f.WeatherSource = 0
}

// HasWeather reports whether id is the active weather.
func (f *Field) HasWeather(id catalog.Id) bool {
	return f.Weather != "" && f.Weather == id
}
