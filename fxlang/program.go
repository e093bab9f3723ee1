package fxlang

import (
	"fmt"

	lua "github.com/Shopify/go-lua"
)

// Program is a parsed callback body attached to an effect for one event
// name. The engine embeds Lua source directly in data records; Program
// wraps that source once NewProgram has checked that it compiles, so a
// syntax error is caught at catalog-load time rather than the first time
// the callback fires mid-battle. Only the source is kept; each Invoke
// compiles it again.
type Program struct {
	Source string
}

// NewProgram validates source as a loadable Lua chunk and returns a
// Program wrapping it. A syntax error here is a data error, not a
// ScriptError: it must fail catalog loading outright.
func NewProgram(source string) (Program, error) {
	state := lua.NewState()
	if err := lua.LoadString(state, source); err != nil {
		return Program{}, fmt.Errorf("fxlang: invalid program: %w", err)
	}
	return Program{Source: source}, nil
}

// MustProgram panics on a syntax error. Used by in-repo data tables where
// the source is a compile-time constant and a syntax error is a bug.
func MustProgram(source string) Program {
	p, err := NewProgram(source)
	if err != nil {
		panic(err)
	}
	return p
}

// IsZero reports whether the effect declares no callback for this event.
func (p Program) IsZero() bool { return p.Source == "" }
