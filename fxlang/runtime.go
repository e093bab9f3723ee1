// Package fxlang implements the battle engine's embedded effect-scripting
// DSL ("fxlang"). Effect callbacks are Lua chunks, interpreted with
// github.com/Shopify/go-lua — the one ecosystem library in the reference
// corpus built for embedding a scripting language in Go, already used by
// the teacher to run scenario scripts (internal/test/game, "scenario" and
// "gm_action" Lua userdata types). Each invocation gets a fresh Lua state
// seeded with a fixed builtin function library and a handful of global
// values describing the current dispatch context; it returns a typed
// fxlang.Value as the event's output.
package fxlang

import (
	"fmt"

	lua "github.com/Shopify/go-lua"
)

// instructionCapPreamble installs a Lua-side instruction counter that
// aborts the chunk if it runs away. It is wrapped in pcall because not
// every go-lua build exposes a fully-featured debug library; if sethook is
// unavailable the preamble silently no-ops rather than failing the whole
// invocation, and the chunk then runs with no execution bound (Invoke
// takes no context and sets no time limit).
const instructionCapPreamble = `
pcall(function()
	local count = 0
	debug.sethook(function()
		count = count + 1
		if count > 200000 then
			error("fxlang: instruction cap exceeded")
		end
	end, "", 1000)
end)
`

// Host is the set of effectful operations an fxlang program may invoke.
// It is implemented by the battle/event packages so that fxlang itself
// never imports battle state types, avoiding an import cycle between the
// scripting layer and the state it mutates.
type Host interface {
	Damage(ctx *Context, target uint64, amount int64, sourceEffect string) (int64, error)
	Heal(ctx *Context, target uint64, amount int64) (int64, error)
	Boost(ctx *Context, target uint64, stat string, stages int64) (int64, error)
	AddVolatile(ctx *Context, target uint64, volatileID string) (bool, error)
	RemoveVolatile(ctx *Context, target uint64, volatileID string) (bool, error)
	HasVolatile(ctx *Context, target uint64, volatileID string) bool
	SetStatus(ctx *Context, target uint64, statusID string) (bool, error)
	CureStatus(ctx *Context, target uint64) error
	Flinch(ctx *Context, target uint64) error
	Log(ctx *Context, tag string, parts map[string]string)
	TypeEffectiveness(ctx *Context, attackingType string, defendingTypes []string) (num, den int64)
	Chance(ctx *Context, num, den int64) bool
	RandomRange(ctx *Context, lo, hi int64) int64
	Stat(ctx *Context, target uint64, stat string) int64
}

// Context scopes one dispatch of one effect's callback: which effect owns
// the program, the mon/side/field/active-move it is running against, and
// the Host used for effectful builtins.
type Context struct {
	EffectID   string
	Source     uint64
	HasSource  bool
	Target     uint64
	HasTarget  bool
	ActiveMove uint64
	HasMove    bool
	Side       int
	Field      bool
	Host       Host

	// Failed is set by a script calling fail() or stop(); dispatch treats
	// this as the event's documented "fail/stop" short-circuit signal.
	Failed bool
	// FailReason is an optional human-readable reason passed to stop().
	FailReason string
}

// Runtime executes Program callbacks against a Context.
type Runtime struct{}

// NewRuntime constructs an fxlang Runtime. It holds no state of its own;
// every invocation builds a fresh Lua VM so callbacks cannot leak state
// between unrelated dispatches.
func NewRuntime() *Runtime { return &Runtime{} }

// Invoke runs program's callback with the given context and input value,
// returning the program's output value. A runtime (not syntax) error is
// returned to the caller, which per spec §7 is caught per-callback, logged
// as debug_event_failure, and treated as a no-op — Invoke itself does not
// swallow errors; that policy lives in the event dispatcher.
func (r *Runtime) Invoke(program Program, ctx *Context, input Value) (output Value, err error) {
	if program.IsZero() {
		return input, nil
	}
	state := lua.NewState()
	lua.OpenLibraries(state)

	if err := lua.LoadString(state, instructionCapPreamble); err != nil {
		return Nil, fmt.Errorf("fxlang: load instruction cap preamble: %w", err)
	}
	if err := state.ProtectedCall(0, 0, 0); err != nil {
		return Nil, fmt.Errorf("fxlang: install instruction cap: %w", err)
	}

	registerBuiltins(state, ctx)
	pushContextGlobals(state, ctx)
	pushValue(state, input)
	state.SetGlobal("input")

	if err := lua.LoadString(state, program.Source); err != nil {
		return Nil, fmt.Errorf("fxlang: invalid program: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return Nil, fmt.Errorf("fxlang: runtime error: %w", err)
	}
	output = toValue(state, -1)
	state.Pop(1)
	return output, nil
}

func pushContextGlobals(state *lua.State, ctx *Context) {
	if ctx.HasSource {
		state.PushInteger(int(ctx.Source))
	} else {
		state.PushNil()
	}
	state.SetGlobal("source")

	if ctx.HasTarget {
		state.PushInteger(int(ctx.Target))
	} else {
		state.PushNil()
	}
	state.SetGlobal("target")

	if ctx.HasMove {
		state.PushInteger(int(ctx.ActiveMove))
	} else {
		state.PushNil()
	}
	state.SetGlobal("active_move")

	state.PushString(ctx.EffectID)
	state.SetGlobal("effect_id")
}
